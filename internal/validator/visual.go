package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
)

// ValidateVisual checks a canvas graph before it is converted and saved.
// It reports the problems an editor should block on.
func ValidateVisual(g *domain.VisualGraph) []Issue {
	var issues []Issue
	add := func(nodeID, format string, args ...any) {
		issues = append(issues, Issue{StepID: nodeID, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}
	if g == nil {
		add("", "flow must have a start block")
		return issues
	}

	_, hasStart := g.Node(domain.StartNodeID)
	if !hasStart {
		add("", "flow must have a start block")
	}
	if len(g.Outgoing(domain.StartNodeID)) == 0 {
		add(domain.StartNodeID, "start block must be connected to a step")
	}

	connected := make(map[string]bool)
	for _, e := range g.Edges {
		connected[e.SourceID] = true
		connected[e.TargetID] = true
	}

	for _, n := range g.Nodes {
		if n.ID == domain.StartNodeID {
			continue
		}
		label := n.Data.Label
		if label == "" {
			label = n.ID
		}
		if !connected[n.ID] {
			add(n.ID, "block %q is disconnected", label)
		}

		step := n.Data.Step
		if step == nil {
			add(n.ID, "block %q is not configured", label)
			continue
		}
		switch step.Kind {
		case domain.KindMessage, domain.KindMenu, domain.KindQuestion, "":
			if strings.TrimSpace(step.Message) == "" {
				add(n.ID, "block %q needs a message", label)
			}
		}
		if step.Kind == domain.KindMenu && len(step.Options) == 0 {
			add(n.ID, "menu block %q needs options", label)
		}
	}

	if hasStart && hasSilentLoop(g) {
		add("", "flow contains an infinite loop")
	}
	return issues
}

// hasSilentLoop reports a cycle in which no block waits for the user.
func hasSilentLoop(g *domain.VisualGraph) bool {
	interactive := func(id string) bool {
		n, ok := g.Node(id)
		return ok && n.Data.Step != nil && n.Data.Step.Kind.Interactive()
	}

	var stack []string
	onStack := make(map[string]int)
	visited := make(map[string]bool)
	found := false

	var dfs func(id string)
	dfs = func(id string) {
		onStack[id] = len(stack)
		stack = append(stack, id)
		visited[id] = true

		for _, e := range g.Outgoing(id) {
			if idx, ok := onStack[e.TargetID]; ok {
				silent := true
				for _, member := range stack[idx:] {
					if interactive(member) {
						silent = false
						break
					}
				}
				if silent {
					found = true
					return
				}
				continue
			}
			if !visited[e.TargetID] {
				dfs(e.TargetID)
				if found {
					return
				}
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, id)
	}
	dfs(domain.StartNodeID)
	return found
}
