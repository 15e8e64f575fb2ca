package node

import "github.com/John-Robertt/submerge/internal/model"

// Sanitize returns n without keys whose value is nil, an empty string or an
// empty collection, applied recursively. Nested maps that become empty are
// dropped too.
func Sanitize(n model.Node) model.Node {
	if n == nil {
		return nil
	}
	out := make(model.Node, len(n))
	for k, v := range n {
		if c, keep := clean(v); keep {
			out[k] = c
		}
	}
	return out
}

func clean(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return t, t != ""
	case model.Node:
		m := Sanitize(t)
		return map[string]any(m), len(m) > 0
	case map[string]any:
		m := Sanitize(model.Node(t))
		return map[string]any(m), len(m) > 0
	case map[string]string:
		m := make(map[string]string, len(t))
		for k, s := range t {
			if s != "" {
				m[k] = s
			}
		}
		return m, len(m) > 0
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if c, keep := clean(e); keep {
				out = append(out, c)
			}
		}
		return out, len(out) > 0
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s != "" {
				out = append(out, s)
			}
		}
		return out, len(out) > 0
	default:
		return v, true
	}
}
