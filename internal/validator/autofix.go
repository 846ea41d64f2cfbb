package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
)

// backKeywords mark an option as a "go back" convenience entry.
var backKeywords = []string{"voltar", "menu", "anterior", "retornar"}

// FixResult is the outcome of AutoFix.
type FixResult struct {
	FixedFlow        *domain.Flow `json:"fixedFlow"`
	FixedCycles      []CyclePath  `json:"fixedCycles"`
	UnresolvedCycles []CyclePath  `json:"unresolvedCycles"`
	Actions          []string     `json:"actions"`
}

type edge struct{ from, to string }

// AutoFix cuts the closing edge of each detected cycle when it looks like a
// "back to menu" shortcut. The input flow is never modified. The fix is a
// heuristic: callers must run DetectCycles again on FixedFlow.
func AutoFix(flow *domain.Flow, opts ...Option) *FixResult {
	res := &FixResult{}
	if flow == nil {
		return res
	}
	cfg := newConfig(opts)
	res.FixedFlow = flow.Clone()

	cut := make(map[edge]bool)
	for _, cycle := range DetectCycles(flow, opts...) {
		if len(cycle) < 2 {
			res.UnresolvedCycles = append(res.UnresolvedCycles, cycle)
			continue
		}
		e := edge{from: cycle[len(cycle)-2], to: cycle[len(cycle)-1]}

		actions := cfg.cutEdge(res.FixedFlow, e)
		switch {
		case len(actions) > 0:
			cut[e] = true
			res.Actions = append(res.Actions, actions...)
			res.FixedCycles = append(res.FixedCycles, cycle)
		case cut[e]:
			res.FixedCycles = append(res.FixedCycles, cycle)
		default:
			cfg.logger.Warn("cycle not auto-fixable", "cycle", cycle.String())
			res.UnresolvedCycles = append(res.UnresolvedCycles, cycle)
		}
	}
	return res
}

// cutEdge applies the removal rules in order and returns one description per removal.
func (c *config) cutEdge(flow *domain.Flow, e edge) []string {
	step, ok := flow.Step(e.from)
	if !ok {
		return nil
	}

	if step.NextStepID == e.to {
		step.NextStepID = ""
		msg := fmt.Sprintf("Removed direct link %s → %s", e.from, e.to)
		c.logger.Info("auto-fix removed edge", "from", e.from, "to", e.to, "kind", "next")
		return []string{msg}
	}

	pred := c.evaluator.Predicate(flow.InitialContext)
	var actions []string
	kept := step.Options[:0:0]
	for _, opt := range step.Options {
		if opt.ResolveTarget(pred) == e.to {
			if isBackLabel(opt.Label) {
				actions = append(actions, fmt.Sprintf("Removed option %q from %s (pointed back to %s)", opt.Label, e.from, e.to))
				c.logger.Info("auto-fix removed option", "from", e.from, "to", e.to, "label", opt.Label)
				continue
			}
			c.logger.Warn("option closes a cycle but does not look like a back link", "from", e.from, "to", e.to, "label", opt.Label)
		}
		kept = append(kept, opt)
	}
	if len(actions) > 0 {
		step.Options = kept
		return actions
	}

	for i, cond := range step.Conditions {
		if cond.NextStepID == e.to {
			step.Conditions = append(step.Conditions[:i:i], step.Conditions[i+1:]...)
			c.logger.Info("auto-fix removed condition", "from", e.from, "to", e.to, "condition", cond.Describe())
			return []string{fmt.Sprintf("Removed condition %q from %s (pointed back to %s)", cond.Describe(), e.from, e.to)}
		}
	}
	return nil
}

func isBackLabel(label string) bool {
	l := strings.ToLower(label)
	for _, k := range backKeywords {
		if strings.Contains(l, k) {
			return true
		}
	}
	return false
}
