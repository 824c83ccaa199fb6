package auth

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

const (
	ScopeAsk  = "ask"
	ScopeRead = "read"
)

// Identity is the API client a key belongs to.
type Identity struct {
	Client string
	Scopes []string
}

func (i Identity) HasScope(scope string) bool {
	for _, candidate := range i.Scopes {
		if candidate == scope {
			return true
		}
	}
	return false
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticAPIKeyValidator holds keys by SHA-256 digest so the raw keys are not
// kept in memory after startup.
type StaticAPIKeyValidator struct {
	keys map[[sha256.Size]byte]Identity
}

// NewStaticAPIKeyValidator parses "key:client[:scope|scope]" entries separated
// by commas. Entries without scopes get every scope.
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[[sha256.Size]byte]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:client[:scope|scope]", entry)
		}
		key := strings.TrimSpace(parts[0])
		client := strings.TrimSpace(parts[1])
		if key == "" || client == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key/client", entry)
		}

		scopes := []string{ScopeAsk, ScopeRead}
		if len(parts) == 3 {
			scopes = nil
			for _, scope := range strings.Split(parts[2], "|") {
				scope = strings.TrimSpace(scope)
				switch scope {
				case "":
					continue
				case ScopeAsk, ScopeRead:
					scopes = append(scopes, scope)
				default:
					return nil, fmt.Errorf("invalid static key entry %q: unknown scope %q", entry, scope)
				}
			}
			if len(scopes) == 0 {
				return nil, fmt.Errorf("invalid static key entry %q: at least one scope is required", entry)
			}
		}
		sort.Strings(scopes)
		digest := sha256.Sum256([]byte(key))
		if existing, ok := validator.keys[digest]; ok {
			return nil, fmt.Errorf("invalid static key entry %q: key already assigned to client %q", entry, existing.Client)
		}
		validator.keys[digest] = Identity{Client: client, Scopes: scopes}
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[sha256.Sum256([]byte(apiKey))]
	return identity, ok
}

func (v *StaticAPIKeyValidator) Len() int {
	return len(v.keys)
}
