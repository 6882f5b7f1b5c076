package weblog

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

// Redacted is the fixed marker that replaces sensitive values in
// persisted records. Sensitive fields are masked, never omitted.
const Redacted = "[redacted]"

// sensitiveFields are matched case-insensitively against query keys,
// form keys and JSON object keys.
var sensitiveFields = map[string]bool{
	"token":      true,
	"passphrase": true,
}

// sensitivePair masks key=value occurrences inside opaque string
// payloads that parsed neither as JSON nor as a form body.
var sensitivePair = regexp.MustCompile(`(?i)\b(token|passphrase)=[^&\s]*`)

func isSensitive(key string) bool {
	return sensitiveFields[strings.ToLower(key)]
}

// redactQuery copies query or form values, masking sensitive keys.
// Single-valued keys collapse to a plain string.
func redactQuery(values url.Values) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for key, vals := range values {
		if isSensitive(key) {
			out[key] = Redacted
			continue
		}
		if len(vals) == 1 {
			out[key] = vals[0]
		} else {
			out[key] = vals
		}
	}
	return out
}

// redactPayload renders a captured body for persistence. JSON bodies are
// walked recursively; form bodies are treated like query strings; any
// other payload is kept as a string with key=value secrets masked.
func redactPayload(body []byte) any {
	if len(body) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return redactValue(v)
	}

	s := string(body)
	if strings.Contains(s, "=") && !strings.ContainsAny(s, " \t\r\n") {
		if values, err := url.ParseQuery(s); err == nil {
			return redactQuery(values)
		}
	}

	return sensitivePair.ReplaceAllString(s, "${1}="+Redacted)
}

// redactValue walks decoded JSON, masking values under sensitive keys.
func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if isSensitive(k) {
				out[k] = Redacted
			} else {
				out[k] = redactValue(inner)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = redactValue(inner)
		}
		return out
	default:
		return v
	}
}
