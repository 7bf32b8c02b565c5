package sqlexec

import (
	"fmt"
	"time"
)

// Serialize converts a database-returned value into a JSON-representable
// form. Primitives pass through, composites recurse, and anything else
// (dates, decimals, binary) is stringified. This conversion is total: it
// never fails for a value a successful query produced.
func Serialize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string, int, int32, int64, float32, float64:
		return x
	case []byte:
		// lib/pq hands back numerics, arrays, and json as raw text.
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Serialize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Serialize(e)
		}
		return out
	default:
		return fmt.Sprintf("%v", x)
	}
}

// DisplayString renders a serialized value the way answer comparison sees
// it: the display-string form of each scalar.
func DisplayString(v any) string {
	if v == nil {
		return "<nil>"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
