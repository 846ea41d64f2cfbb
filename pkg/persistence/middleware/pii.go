package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/ports"
)

// Mask replaces every value whose key matched a PII pattern.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks context values whose key matches any of the
// patterns before they reach the store. Nested maps are walked too. The
// caller's state is left untouched.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, 0, len(patternStrings))
	for _, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pii pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, state *domain.SimulationState) error {
	if state == nil || len(m.patterns) == 0 {
		return m.next.Save(ctx, sessionID, state)
	}
	masked := *state
	masked.Context = domain.CloneMap(state.Context)
	m.maskMap(masked.Context)
	return m.next.Save(ctx, sessionID, &masked)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.SimulationState, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) maskMap(ctx map[string]any) {
	for k, v := range ctx {
		if m.matches(k) {
			ctx[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			m.maskMap(sub)
		}
	}
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
