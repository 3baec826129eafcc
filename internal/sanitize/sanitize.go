// Package sanitize strips personally identifying fields and
// secret-shaped tokens from log entry payloads before they leave the
// machine. Sanitization is idempotent: replacement tokens are fixed
// points of every pattern, so entries may pass through the sanitizer
// any number of times.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/flowguard/flowguard/internal/model"
)

// RedactedValue replaces the values of sensitive keys.
const RedactedValue = "[REDACTED]"

// sensitiveKeys name payload fields whose values are dropped outright.
// A key matches on equality or on an "_<name>" suffix, so user_email
// matches but total_tokens does not.
var sensitiveKeys = []string{
	"password", "passwd", "secret", "token",
	"api_key", "apikey", "access_key", "secret_key",
	"authorization", "credential", "credentials",
	"private_key", "session_token",
	"email", "phone", "ssn", "address",
}

// Pattern pairs a regexp with its replacement token. Replacements must
// not produce new matches for any pattern, or sanitization stops being
// idempotent.
type Pattern struct {
	Regexp      *regexp.Regexp
	Replacement string
}

// defaultPatterns run in order; bearer must precede the assignment
// pattern so "Authorization: Bearer x" redacts the token, not just
// the first word of the value.
var defaultPatterns = []Pattern{
	{
		// Email addresses.
		Regexp:      regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`),
		Replacement: "[REDACTED_EMAIL]",
	},
	{
		// Bearer and token-prefixed credentials.
		Regexp:      regexp.MustCompile(`(?i)\b(?:bearer|token)\s+[A-Za-z0-9._\-]+`),
		Replacement: "[REDACTED_TOKEN]",
	},
	{
		// AWS-style access key ids.
		Regexp:      regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		Replacement: "[REDACTED_KEY]",
	},
	{
		// key=value assignments where the key suggests a secret.
		Regexp:      regexp.MustCompile(`(?i)(password|passwd|secret|token|api[_-]?key|access[_-]?key|authorization)[ \t]*[=:][ \t]*[^\s,;]+`),
		Replacement: "${1}=[REDACTED]",
	},
	{
		// Long hex blobs look like keys or signatures.
		Regexp:      regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`),
		Replacement: "[REDACTED_HEX]",
	},
}

// Sanitizer redacts sensitive material from log entry payloads.
type Sanitizer struct {
	patterns []Pattern
}

// New creates a Sanitizer with the default patterns plus any extras.
func New(extra ...Pattern) *Sanitizer {
	patterns := make([]Pattern, 0, len(defaultPatterns)+len(extra))
	patterns = append(patterns, defaultPatterns...)
	patterns = append(patterns, extra...)
	return &Sanitizer{patterns: patterns}
}

// Sanitize redacts the entry's data payload in place. Typed fields are
// left alone: the normalizer fills them from a fixed key set and the
// pipeline needs them downstream.
func (s *Sanitizer) Sanitize(entry *model.LogEntry) {
	if entry == nil || entry.Data == nil {
		return
	}
	s.sanitizeMap(entry.Data)
}

func (s *Sanitizer) sanitizeMap(m map[string]any) {
	for k, v := range m {
		if sensitiveKey(k) {
			m[k] = RedactedValue
			continue
		}
		m[k] = s.sanitizeValue(v)
	}
}

func (s *Sanitizer) sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return s.sanitizeString(val)
	case map[string]any:
		s.sanitizeMap(val)
		return val
	case []any:
		for i, item := range val {
			val[i] = s.sanitizeValue(item)
		}
		return val
	default:
		return v
	}
}

func (s *Sanitizer) sanitizeString(text string) string {
	for _, p := range s.patterns {
		text = p.Regexp.ReplaceAllString(text, p.Replacement)
	}
	return text
}

func sensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, name := range sensitiveKeys {
		if k == name || strings.HasSuffix(k, "_"+name) {
			return true
		}
	}
	return false
}
