package output

import (
	"encoding/base64"
	"fmt"
)

// NormalizeJSONValue rewrites decoded CBOR values so encoding/json accepts
// them: maps get string keys and byte strings become base64.
func NormalizeJSONValue(value any) any {
	switch v := value.(type) {
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = NormalizeJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = NormalizeJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = NormalizeJSONValue(item)
		}
		return out
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	default:
		return v
	}
}
