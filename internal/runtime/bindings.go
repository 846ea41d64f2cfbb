package runtime

import (
	"sort"
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
)

const (
	answerPlaceholder = "{{resposta}}"
	contextRefPrefix  = "{{contexto."
	placeholderSuffix = "}}"
)

// applyBindings writes an option's context bindings. "{{resposta}}" becomes
// the user's answer, "{{contexto.path}}" copies a value as it was before
// this update, and anything else is stored literally. The input map is not
// modified.
func applyBindings(ctx map[string]any, bindings map[string]any, answer string) map[string]any {
	if len(bindings) == 0 {
		return ctx
	}
	before := ctx

	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ctx
	for _, path := range keys {
		if path == "" {
			continue
		}
		out = domain.SetPath(out, path, bindingValue(before, bindings[path], answer))
	}
	return out
}

func bindingValue(ctx map[string]any, raw any, answer string) any {
	s, ok := raw.(string)
	if !ok {
		return domain.CloneValue(raw)
	}
	if s == answerPlaceholder {
		return answer
	}
	if strings.HasPrefix(s, contextRefPrefix) && strings.HasSuffix(s, placeholderSuffix) && len(s) > len(contextRefPrefix)+len(placeholderSuffix) {
		path := s[len(contextRefPrefix) : len(s)-len(placeholderSuffix)]
		v, found := domain.Lookup(ctx, path)
		if !found {
			return nil
		}
		return domain.CloneValue(v)
	}
	return s
}
