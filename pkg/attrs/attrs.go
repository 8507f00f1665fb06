// Package attrs reads values back out of slog-style key/value slices.
package attrs

import "fmt"

// String returns the value paired with key in a [k1, v1, k2, v2, ...] slice.
// Strings come back as-is and fmt.Stringers (the typed IDs) are rendered; any
// other value, or a missing key, yields "".
func String(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); !ok || k != key {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
		return ""
	}
	return ""
}
