package audit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// excludedTokens name credentials and other material that must never be
// recorded, even masked. A field is dropped when its normalized name
// contains any of these.
var excludedTokens = []string{
	"password",
	"token",
	"secret",
	"key",
	"authorization",
	"apikey",
	"credential",
}

// sensitiveTokens name regulated identifiers that are recorded masked,
// keeping only the last four characters.
var sensitiveTokens = []string{
	"ssn",
	"socialsecurity",
	"creditcard",
	"cardnumber",
	"bankaccount",
	"taxid",
	"routingnumber",
	"iban",
}

const maskPrefix = "*****"

// SanitizeBody parses a captured JSON body and returns a copy safe to
// record: excluded fields removed, sensitive fields masked, recursively
// through nested objects and arrays. Bodies that are not valid JSON are
// not recorded at all.
func SanitizeBody(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}

	out, err := json.Marshal(sanitizeValue(v))
	if err != nil {
		return nil
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		clean := make(map[string]any, len(val))
		for name, inner := range val {
			normalized := normalizeFieldName(name)
			if containsToken(normalized, excludedTokens) {
				continue
			}
			if containsToken(normalized, sensitiveTokens) {
				clean[name] = maskValue(inner)
				continue
			}
			clean[name] = sanitizeValue(inner)
		}
		return clean
	case []any:
		clean := make([]any, len(val))
		for i, inner := range val {
			clean[i] = sanitizeValue(inner)
		}
		return clean
	default:
		return v
	}
}

// normalizeFieldName lowercases and strips separators so social_security,
// SocialSecurity and social-security all match the same token.
func normalizeFieldName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, "-", "")
	return name
}

func containsToken(normalized string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(normalized, tok) {
			return true
		}
	}
	return false
}

// maskValue keeps the last four characters of the value's string form.
// Values at or under four characters mask completely.
func maskValue(v any) string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case float64:
		// JSON numbers decode as float64; format without the exponent so
		// account numbers keep their trailing digits.
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return maskPrefix
	default:
		s = fmt.Sprintf("%v", val)
	}

	if len(s) <= 4 {
		return maskPrefix
	}
	return maskPrefix + s[len(s)-4:]
}
