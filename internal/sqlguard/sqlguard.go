package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

type Reason string

const (
	NotASelect         Reason = "not_a_select"
	UnsafeKeyword      Reason = "unsafe_keyword"
	MultipleStatements Reason = "multiple_statements"
)

// Matched as plain substrings, so identifiers such as created_at are rejected too.
var bannedKeywords = []string{"insert", "update", "delete", "drop", "alter", "create"}

var fencedBlockPattern = regexp.MustCompile("(?s)```(.*?)```")

var fenceLanguages = map[string]struct{}{
	"sql": {}, "postgresql": {}, "postgres": {}, "pgsql": {}, "plpgsql": {}, "tsql": {},
	"mysql": {}, "sqlite": {}, "duckdb": {}, "hana": {},
}

type Rejection struct {
	Reason  Reason
	Keyword string
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case NotASelect:
		return "Only SELECT queries are allowed for safety."
	case UnsafeKeyword:
		return fmt.Sprintf("Unsafe SQL detected (keyword %q)! Only SELECT queries are permitted.", r.Keyword)
	case MultipleStatements:
		return "Multiple SQL statements are not allowed."
	default:
		return "SQL rejected"
	}
}

// ValidatedQuery is SQL that passed Validate. The zero value holds no query.
type ValidatedQuery struct {
	sql string
}

func (q ValidatedQuery) SQL() string {
	return q.sql
}

func (q ValidatedQuery) String() string {
	return q.sql
}

func (q ValidatedQuery) IsZero() bool {
	return q.sql == ""
}

func Validate(raw string) (ValidatedQuery, error) {
	normalized := strings.TrimSpace(raw)
	if strings.HasSuffix(normalized, ";") {
		normalized = strings.TrimSpace(strings.TrimSuffix(normalized, ";"))
	}

	lowered := strings.ToLower(normalized)
	if !strings.HasPrefix(lowered, "select") {
		return ValidatedQuery{}, &Rejection{Reason: NotASelect}
	}
	for _, keyword := range bannedKeywords {
		if strings.Contains(lowered, keyword) {
			return ValidatedQuery{}, &Rejection{Reason: UnsafeKeyword, Keyword: keyword}
		}
	}
	if strings.Contains(lowered, ";") {
		return ValidatedQuery{}, &Rejection{Reason: MultipleStatements}
	}
	return ValidatedQuery{sql: normalized}, nil
}

func MustValidate(raw string) ValidatedQuery {
	q, err := Validate(raw)
	if err != nil {
		panic(fmt.Sprintf("sqlguard: %q: %v", raw, err))
	}
	return q
}

func Keywords() []string {
	out := make([]string, len(bannedKeywords))
	copy(out, bannedKeywords)
	return out
}

// StripCodeFences removes markdown code fences that models wrap around SQL.
// When the text holds a fenced block, only the body of the first block is kept.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	switch {
	case fencedBlockPattern.MatchString(trimmed):
		trimmed = fencedBlockPattern.FindStringSubmatch(trimmed)[1]
	case strings.HasPrefix(trimmed, "```"):
		trimmed = strings.TrimPrefix(trimmed, "```")
	default:
		return strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}
	return dropFenceLanguage(strings.TrimSpace(trimmed))
}

func dropFenceLanguage(body string) string {
	idx := strings.IndexAny(body, " \t\r\n")
	if idx < 0 {
		if _, ok := fenceLanguages[strings.ToLower(body)]; ok {
			return ""
		}
		return body
	}
	if _, ok := fenceLanguages[strings.ToLower(body[:idx])]; ok {
		return strings.TrimSpace(body[idx:])
	}
	return body
}
