// Package sensitive holds the shared deny-list of field names that must never
// appear in plaintext in audit details or scan output. The audit redactor and
// the credential leak scanner both consult the same policy so a field treated
// as secret in one place is secret everywhere.
package sensitive

import (
	"regexp"
	"strings"
)

// RedactionMarker replaces the value of any sensitive field.
const RedactionMarker = "***REDACTED***"

// defaultFields are substrings that mark a field name as sensitive.
var defaultFields = []string{
	"password", "passwd", "secret", "token", "key", "credential",
	"api_key", "apikey", "private_key", "auth", "bearer",
	"access_token", "refresh_token", "client_secret",
}

// Policy decides whether a field name refers to sensitive data.
// The zero value is not usable; construct with NewPolicy.
type Policy struct {
	fields []string
}

// NewPolicy creates a policy from the default deny-list plus any extra field
// name substrings. Matching is case-insensitive.
func NewPolicy(extraFields ...string) *Policy {
	fields := make([]string, 0, len(defaultFields)+len(extraFields))
	for _, f := range defaultFields {
		fields = append(fields, strings.ToLower(f))
	}
	for _, f := range extraFields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			fields = append(fields, f)
		}
	}
	return &Policy{fields: fields}
}

// IsSensitiveField reports whether the field name matches the deny-list.
func (p *Policy) IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, f := range p.fields {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// Redact walks a details map and replaces the value of every sensitive field
// with the redaction marker, recursing into nested maps and slices. The input
// is not modified; a redacted copy is returned.
func (p *Policy) Redact(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for key, value := range details {
		if p.IsSensitiveField(key) {
			out[key] = RedactionMarker
			continue
		}
		out[key] = p.redactValue(value)
	}
	return out
}

func (p *Policy) redactValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return p.Redact(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = p.redactValue(item)
		}
		return out
	default:
		return value
	}
}

// TokenPattern builds a regexp matching `name = <long token>` style
// assignments for a credential name, as they would appear in a leaked log
// line or config dump. Tokens of 20+ charset characters count as suspicious.
func TokenPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name) + `\s*=\s*["']?([a-zA-Z0-9_\-]{20,})`)
}
