package domain

import (
	"strconv"
	"strings"
)

// Lookup resolves a dot-separated path inside a nested context.
// Maps are addressed by key and slices by numeric index.
func Lookup(ctx map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" || ctx == nil {
		return nil, false
	}

	var current any = ctx
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// SetPath returns a copy of ctx with value stored at path.
// Only the maps along the path are copied; untouched branches are shared,
// so callers must treat every context as read-only once published.
func SetPath(ctx map[string]any, path string, value any) map[string]any {
	parts := strings.Split(strings.TrimSpace(path), ".")
	if len(parts) == 0 || parts[0] == "" {
		return ctx
	}
	return setIn(ctx, parts, value)
}

func setIn(m map[string]any, parts []string, value any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if len(parts) == 1 {
		out[parts[0]] = value
		return out
	}
	child, _ := m[parts[0]].(map[string]any)
	out[parts[0]] = setIn(child, parts[1:], value)
	return out
}

// CloneValue deep-copies the JSON-like containers found in context values.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	default:
		return v
	}
}

// CloneMap deep-copies a context map. A nil map yields an empty one.
func CloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}
