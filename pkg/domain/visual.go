package domain

// StartNodeID is the id of the synthetic node pointing at the entry step.
const StartNodeID = "__start__"

// NodeKindStart marks the synthetic start node in a visual graph.
const NodeKindStart = "start"

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// VisualNodeData carries the step payload behind a canvas block.
type VisualNodeData struct {
	Label string `json:"label"`
	Step  *Step  `json:"step,omitempty"`
}

// VisualNode is one block on the canvas.
type VisualNode struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Position Position       `json:"position"`
	Data     VisualNodeData `json:"data"`
}

// VisualEdge connects a node handle to another node.
type VisualEdge struct {
	ID           string `json:"id"`
	SourceID     string `json:"sourceId"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetID     string `json:"targetId"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// VisualGraph is the editor representation of a flow. Document-level fields
// ride along so a graph converts back without losing them.
type VisualGraph struct {
	Nodes []VisualNode `json:"nodes"`
	Edges []VisualEdge `json:"edges"`

	EntryStepID    string         `json:"entryStepId,omitempty"`
	InitialContext map[string]any `json:"initialContext,omitempty"`
	Version        string         `json:"version,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// Node finds a node by id.
func (g *VisualGraph) Node(id string) (*VisualNode, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Outgoing returns the edges leaving the given node, in declaration order.
func (g *VisualGraph) Outgoing(id string) []VisualEdge {
	var out []VisualEdge
	for _, e := range g.Edges {
		if e.SourceID == id {
			out = append(out, e)
		}
	}
	return out
}
