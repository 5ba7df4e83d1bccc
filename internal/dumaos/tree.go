package dumaos

import "encoding/json"

// UnwrapTree normalizes a QoS tree payload. Depending on firmware the RPC
// layer returns the tree as a bare JSON-encoded string, a single-element
// list containing that string, or an already-decoded mapping. Total: no
// input shape returns an error or panics; anything unusable yields an
// empty mapping.
func UnwrapTree(raw any) map[string]any {
	candidate := raw
	if seq, ok := raw.([]any); ok && len(seq) > 0 {
		candidate = seq[0]
	}
	switch value := candidate.(type) {
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil || decoded == nil {
			return map[string]any{}
		}
		return decoded
	case map[string]any:
		return value
	default:
		return map[string]any{}
	}
}
