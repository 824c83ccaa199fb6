package observability

import (
	"regexp"
	"strings"
)

var (
	rePassword = regexp.MustCompile(`(?i)(password=)([^\s;&]+)`)
	reToken    = regexp.MustCompile(`(?i)(token=|bearer\s+)([A-Za-z0-9._~+/-]+)`)
	reURLCreds = regexp.MustCompile(`(?i)(://)([^:/@\s]+):([^@\s]+)(@)`)
	reAPIKey   = regexp.MustCompile(`(?i)(apikey=|api_key=|key=)([^\s;&]+)`)
)

// MaskSecrets hides passwords, tokens and API keys in free text such as
// database URLs and provider error bodies.
func MaskSecrets(s string) string {
	out := reURLCreds.ReplaceAllString(s, "$1$2:***$4")
	out = rePassword.ReplaceAllString(out, "$1***")
	out = reToken.ReplaceAllString(out, "$1***")
	out = reAPIKey.ReplaceAllString(out, "$1***")
	return out
}

// MaskSecret keeps the first four characters of a short secret.
func MaskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if len(secret) <= 4 {
		return "***"
	}
	return secret[:4] + "***"
}
