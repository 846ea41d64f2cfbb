package converter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
)

// Layout constants for the generated canvas.
const (
	startX       = 400.0
	levelHeight  = 200.0
	siblingSpace = 250.0
	orphanGap    = 300.0
	labelMaxLen  = 40
)

// Source handle names. Indexed handles are built by the helpers below.
const (
	HandleNext = "next"
)

// OptionHandle names the handle of the i-th option.
func OptionHandle(i int) string { return "option-" + strconv.Itoa(i) }

// OptionConditionalHandle names the handle of the j-th guarded target of the i-th option.
func OptionConditionalHandle(i, j int) string {
	return fmt.Sprintf("option-%d-conditional-%d", i, j)
}

// ConditionHandle names the handle of the i-th condition.
func ConditionHandle(i int) string { return "condition-" + strconv.Itoa(i) }

// ConditionalHandle names the handle of the i-th step-level guarded transition.
func ConditionalHandle(i int) string { return "conditional-" + strconv.Itoa(i) }

// Link is one outgoing connection of a step as drawn on the canvas.
type Link struct {
	Handle string
	Target string
	Label  string
}

// Links enumerates every outgoing connection of a step: options (and their
// guarded targets), conditions, step-level guarded transitions, then next.
func Links(step *domain.Step) []Link {
	var links []Link
	for i, opt := range step.Options {
		if opt.NextStepID != "" {
			label := opt.Label
			if label == "" {
				label = opt.Value
			}
			links = append(links, Link{Handle: OptionHandle(i), Target: opt.NextStepID, Label: label})
		}
		for j, cn := range opt.ConditionalNext {
			if cn.ThenStepID == "" {
				continue
			}
			label := cn.Expression
			if label == "" {
				label = fmt.Sprintf("%s (condition %d)", opt.Label, j+1)
			}
			links = append(links, Link{Handle: OptionConditionalHandle(i, j), Target: cn.ThenStepID, Label: label})
		}
	}
	for i, c := range step.Conditions {
		if c.NextStepID == "" {
			continue
		}
		links = append(links, Link{Handle: ConditionHandle(i), Target: c.NextStepID, Label: conditionLabel(c, i)})
	}
	for i, cn := range step.ConditionalNext {
		if cn.ThenStepID == "" {
			continue
		}
		label := cn.Expression
		if label == "" {
			label = fmt.Sprintf("Condition %d", i+1)
		}
		links = append(links, Link{Handle: ConditionalHandle(i), Target: cn.ThenStepID, Label: label})
	}
	if step.NextStepID != "" {
		links = append(links, Link{Handle: HandleNext, Target: step.NextStepID})
	}
	return links
}

func conditionLabel(c domain.Condition, index int) string {
	switch {
	case c.Expression != "":
		return c.Expression
	case c.Field != "":
		op := string(c.Operator)
		if op == "" {
			op = "->"
		}
		return c.Field + " " + op
	case index == 0:
		return "Yes"
	default:
		return "No"
	}
}

// NodeLabel is the caption of a step block: its name, else a shortened
// message, else its id.
func NodeLabel(step *domain.Step) string {
	if name := strings.TrimSpace(step.Name); name != "" {
		return name
	}
	if msg := strings.Join(strings.Fields(step.Message), " "); msg != "" {
		runes := []rune(msg)
		if len(runes) > labelMaxLen {
			return string(runes[:labelMaxLen-3]) + "..."
		}
		return msg
	}
	return step.ID
}

// ToVisual lays the flow out as a canvas graph. Steps reachable from the
// entry are placed level by level; unreachable steps go to a trailing column.
func ToVisual(flow *domain.Flow) *domain.VisualGraph {
	g := &domain.VisualGraph{
		Nodes: []domain.VisualNode{{
			ID:       domain.StartNodeID,
			Kind:     domain.NodeKindStart,
			Position: domain.Position{X: startX, Y: 0},
			Data:     domain.VisualNodeData{Label: "Start"},
		}},
		Edges: []domain.VisualEdge{},
	}
	if flow == nil {
		return g
	}
	g.InitialContext = domain.CloneMap(flow.InitialContext)
	if len(g.InitialContext) == 0 {
		g.InitialContext = nil
	}
	g.EntryStepID = flow.EntryStepID
	g.Version = flow.Version
	g.Extra = domain.CloneMap(flow.Extra)
	if len(g.Extra) == 0 {
		g.Extra = nil
	}

	if _, ok := flow.Step(flow.EntryStepID); ok {
		g.Edges = append(g.Edges, domain.VisualEdge{
			ID:       domain.StartNodeID + "-" + flow.EntryStepID,
			SourceID: domain.StartNodeID,
			TargetID: flow.EntryStepID,
		})
	}

	type item struct {
		id      string
		level   int
		parentX float64
	}
	placed := make(map[string]bool, len(flow.Steps))
	queue := []item{{id: flow.EntryStepID, level: 1, parentX: startX}}
	maxX := startX

	addNode := func(step *domain.Step, pos domain.Position) {
		g.Nodes = append(g.Nodes, domain.VisualNode{
			ID:       step.ID,
			Kind:     string(step.Kind),
			Position: pos,
			Data:     domain.VisualNodeData{Label: NodeLabel(step), Step: step.Clone()},
		})
		for _, l := range Links(step) {
			if _, ok := flow.Step(l.Target); !ok {
				continue
			}
			g.Edges = append(g.Edges, domain.VisualEdge{
				ID:           fmt.Sprintf("%s-%s-%s", step.ID, l.Handle, l.Target),
				SourceID:     step.ID,
				SourceHandle: l.Handle,
				TargetID:     l.Target,
				Label:        l.Label,
			})
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		step, ok := flow.Step(cur.id)
		if !ok || placed[cur.id] {
			continue
		}
		placed[cur.id] = true

		pos := domain.Position{X: cur.parentX, Y: float64(cur.level) * levelHeight}
		if pos.X > maxX {
			maxX = pos.X
		}
		addNode(step, pos)

		links := Links(step)
		for i, l := range links {
			if placed[l.Target] {
				continue
			}
			offset := (float64(i) - float64(len(links)-1)/2) * siblingSpace
			queue = append(queue, item{id: l.Target, level: cur.level + 1, parentX: cur.parentX + offset})
		}
	}

	row := 1
	for _, id := range flow.StepIDs() {
		if placed[id] {
			continue
		}
		step, ok := flow.Step(id)
		if !ok {
			continue
		}
		addNode(step, domain.Position{X: maxX + orphanGap, Y: float64(row) * levelHeight})
		row++
	}
	return g
}

// ToDocument rebuilds the portable document from a canvas graph. Targets are
// read from handle-tagged edges; graphs drawn without handles fall back to
// label matching and the single-edge rule. A target with no edge keeps its
// previous value, unless the graph uses handles and the old target is a node
// on the canvas: then the connection was deleted in the editor.
//
// The start edge decides the entry step; without one the carried EntryStepID
// is kept. A graph that carries neither a version nor an entry step was drawn
// from scratch and gets DefaultVersion.
func ToDocument(g *domain.VisualGraph) *domain.Flow {
	flow := &domain.Flow{
		Steps: make(map[string]*domain.Step),
	}
	if g == nil {
		flow.Version = DefaultVersion
		return flow
	}
	flow.EntryStepID = g.EntryStepID
	flow.Version = g.Version
	if g.Version == "" && g.EntryStepID == "" {
		flow.Version = DefaultVersion
	}
	if len(g.InitialContext) > 0 {
		flow.InitialContext = domain.CloneMap(g.InitialContext)
	}
	if len(g.Extra) > 0 {
		flow.Extra = domain.CloneMap(g.Extra)
	}

	for _, e := range g.Edges {
		if e.SourceID == domain.StartNodeID {
			flow.EntryStepID = e.TargetID
			break
		}
	}

	onCanvas := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		onCanvas[n.ID] = true
	}
	handled := false
	for _, e := range g.Edges {
		if e.SourceID != domain.StartNodeID && e.SourceHandle != "" {
			handled = true
			break
		}
	}

	for _, n := range g.Nodes {
		if n.ID == domain.StartNodeID || n.Data.Step == nil {
			continue
		}
		step := n.Data.Step.Clone()
		step.ID = n.ID
		if step.Kind == "" {
			if k, ok := ParseStepKind(n.Kind); ok {
				step.Kind = k
			} else {
				step.Kind = domain.KindMessage
			}
		}
		rewire(step, g.Outgoing(n.ID), handled, onCanvas)
		flow.Steps[n.ID] = step
	}
	return flow
}

// rewire updates step targets from its outgoing edges. handled tells whether
// the graph tags edges with source handles.
func rewire(step *domain.Step, out []domain.VisualEdge, handled bool, onCanvas map[string]bool) {
	byHandle := make(map[string]string, len(out))
	for _, e := range out {
		if e.SourceHandle == "" {
			continue
		}
		if _, seen := byHandle[e.SourceHandle]; !seen {
			byHandle[e.SourceHandle] = e.TargetID
		}
	}

	resolve := func(handle, current, label string) string {
		if t, ok := byHandle[handle]; ok {
			return t
		}
		if !handled {
			if label != "" {
				for _, e := range out {
					if e.Label == label {
						return e.TargetID
					}
				}
			}
			return current
		}
		if current != "" && onCanvas[current] {
			return ""
		}
		return current
	}

	for i := range step.Options {
		opt := &step.Options[i]
		opt.NextStepID = resolve(OptionHandle(i), opt.NextStepID, opt.Label)
		for j := range opt.ConditionalNext {
			cn := &opt.ConditionalNext[j]
			cn.ThenStepID = resolve(OptionConditionalHandle(i, j), cn.ThenStepID, "")
		}
	}
	for i := range step.Conditions {
		c := &step.Conditions[i]
		c.NextStepID = resolve(ConditionHandle(i), c.NextStepID, conditionLabel(*c, i))
	}
	for i := range step.ConditionalNext {
		cn := &step.ConditionalNext[i]
		cn.ThenStepID = resolve(ConditionalHandle(i), cn.ThenStepID, "")
	}

	if t, ok := byHandle[HandleNext]; ok {
		step.NextStepID = t
		return
	}
	if !handled {
		if len(out) == 1 && len(step.Options) == 0 && len(step.Conditions) == 0 {
			step.NextStepID = out[0].TargetID
		}
		return
	}
	if step.NextStepID != "" && onCanvas[step.NextStepID] {
		step.NextStepID = ""
	}
}
