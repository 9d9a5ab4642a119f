// Package masking rewrites sensitive values in audit payloads before they
// are persisted, so downstream consumers only ever see masked data.
package masking

import "strings"

// DefaultMinVisible is the number of leading characters left readable.
const DefaultMinVisible = 3

var sensitiveKeys = map[string]struct{}{
	"email": {},
	"phone": {},
}

// MaskValue masks s keeping at most minVisible leading characters. Values no
// longer than minVisible collapse to at most three asterisks. Counting and
// slicing are per character, so multibyte values stay valid UTF-8.
func MaskValue(s string, minVisible int) string {
	runes := []rune(strings.TrimSpace(s))
	length := len(runes)

	if length <= minVisible {
		n := length
		if n > 3 {
			n = 3
		}
		return strings.Repeat("*", n)
	}

	return string(runes[:minVisible]) + strings.Repeat("*", length-minVisible)
}

// Mask returns a copy of data with every sensitive key's string value masked.
// It recurses into nested maps and into map elements of slices; everything
// else passes through unchanged. The input is never mutated.
func Mask(data map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(data))
	for k, v := range data {
		if _, sensitive := sensitiveKeys[strings.ToLower(k)]; sensitive {
			if s, ok := v.(string); ok {
				masked[k] = MaskValue(s, DefaultMinVisible)
			} else {
				masked[k] = v
			}
			continue
		}

		switch val := v.(type) {
		case map[string]interface{}:
			masked[k] = Mask(val)
		case []interface{}:
			items := make([]interface{}, len(val))
			for i, item := range val {
				if m, ok := item.(map[string]interface{}); ok {
					items[i] = Mask(m)
				} else {
					items[i] = item
				}
			}
			masked[k] = items
		default:
			masked[k] = v
		}
	}
	return masked
}
