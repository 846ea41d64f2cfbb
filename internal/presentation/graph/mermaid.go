package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
)

// entryNode is the synthetic marker pointing at the flow's entry step.
const entryNode = "_entry"

// Overlay marks the steps a conversation went through.
type Overlay struct {
	Visited []string
	Current string
}

// OverlayFromState collects the steps named in the transcript, in order.
func OverlayFromState(state *domain.SimulationState) *Overlay {
	if state == nil {
		return nil
	}
	o := &Overlay{Current: state.CurrentStepID}
	for _, h := range state.History {
		if h.StepID != "" {
			o.Visited = append(o.Visited, h.StepID)
		}
	}
	return o
}

// GenerateMermaid renders a flow as a Mermaid flowchart. Steps are emitted
// in lexical order so the output is stable. Shapes follow the step kind:
//   - menu: {rhombus}
//   - question: [/parallelogram/]
//   - conditional: {{hexagon}}
//   - action: [[subroutine]]
//   - terminate: ([stadium])
//
// Automatic transitions are drawn thick and guarded ones dotted.
func GenerateMermaid(flow *domain.Flow, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if flow == nil {
		return sb.String()
	}

	if flow.EntryStepID != "" {
		fmt.Fprintf(&sb, "    %s((\"start\"))\n", entryNode)
		fmt.Fprintf(&sb, "    %s --> %s\n", entryNode, sanitizeID(flow.EntryStepID))
	}

	for _, id := range flow.StepIDs() {
		step, ok := flow.Step(id)
		if !ok {
			continue
		}
		from := sanitizeID(id)
		opener, closer := shape(step.Kind)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", from, opener, escape(nodeLabel(id, step)), closer)

		for _, o := range step.Options {
			label := o.Label
			if o.Action.IsHandoff() {
				label = fmt.Sprintf("%s (%s)", label, o.Action)
			}
			for _, cn := range o.ConditionalNext {
				if cn.ThenStepID != "" {
					fmt.Fprintf(&sb, "    %s -. \"%s: %s\" .-> %s\n", from, escape(label), escape(cn.Expression), sanitizeID(cn.ThenStepID))
				}
			}
			if o.NextStepID != "" {
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, escape(label), sanitizeID(o.NextStepID))
			}
		}
		for _, c := range step.Conditions {
			if c.NextStepID != "" {
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, escape(c.Describe()), sanitizeID(c.NextStepID))
			}
		}
		for _, cn := range step.ConditionalNext {
			if cn.ThenStepID != "" {
				fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, escape(cn.Expression), sanitizeID(cn.ThenStepID))
			}
		}
		if step.NextStepID != "" {
			arrow := "-->"
			if step.AutoAdvance {
				arrow = "==>"
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", from, arrow, sanitizeID(step.NextStepID))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% overlay\n")
		// Black text keeps the labels readable on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Visited {
			if _, ok := flow.Step(id); !ok {
				continue
			}
			safe := sanitizeID(id)
			if !seen[safe] {
				seen[safe] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safe)
			}
		}
		if _, ok := flow.Step(overlay.Current); ok {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeID(overlay.Current))
		}
	}
	return sb.String()
}

func shape(kind domain.StepKind) (string, string) {
	switch kind {
	case domain.KindMenu:
		return "{", "}"
	case domain.KindQuestion:
		return "[/", "/]"
	case domain.KindConditional:
		return "{{", "}}"
	case domain.KindAction:
		return "[[", "]]"
	case domain.KindTerminate:
		return "([", "])"
	}
	return "[", "]"
}

func nodeLabel(id string, step *domain.Step) string {
	if step.Name != "" {
		return step.Name
	}
	return id
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

var idReplacer = strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")

func sanitizeID(id string) string {
	return idReplacer.Replace(id)
}
