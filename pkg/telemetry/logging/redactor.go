package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces the value of a sensitive key.
const Redacted = "***"

// defaultSensitiveKeys are matched as substrings of lower-cased keys.
var defaultSensitiveKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"authorization", "cookie", "private_key",
}

// Redactor hides the values of sensitive keys. Attribute names such as
// request.headers.authorization or request.auth.token match by substring.
type Redactor struct {
	keys []string
}

// NewRedactor returns a redactor using the default sensitive keys plus extra.
func NewRedactor(extra ...string) *Redactor {
	keys := append([]string(nil), defaultSensitiveKeys...)
	for _, k := range extra {
		keys = append(keys, strings.ToLower(k))
	}
	return &Redactor{keys: keys}
}

// Sensitive reports whether key names sensitive data.
func (r *Redactor) Sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range r.keys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook. Groups are walked so
// nested keys are redacted too.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if r.Sensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// RedactMap returns a copy of m with sensitive values replaced, recursing
// into nested maps.
func (r *Redactor) RedactMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch {
		case r.Sensitive(k):
			out[k] = Redacted
		default:
			if nested, ok := v.(map[string]interface{}); ok {
				out[k] = r.RedactMap(nested)
			} else {
				out[k] = v
			}
		}
	}
	return out
}
