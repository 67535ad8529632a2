package layout

import "graphmind/internal/domain/graph"

// NodeState is the published position of one node.
type NodeState struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Pinned bool    `json:"pinned"`
}

// LinkState is a link whose endpoints are both positioned in the frame.
type LinkState struct {
	ID       string `json:"id"`
	SourceID string `json:"source"`
	TargetID string `json:"target"`
}

// Key returns the unordered pair key of the link.
func (l LinkState) Key() graph.PairKey {
	return graph.NewPairKey(l.SourceID, l.TargetID)
}

// Frame is an immutable copy of the simulation state after a tick.
type Frame struct {
	Seq     uint64      `json:"seq"`
	Alpha   float64     `json:"alpha"`
	Settled bool        `json:"settled"`
	Nodes   []NodeState `json:"nodes"`
	Links   []LinkState `json:"links"`

	index map[string]int
}

// Node returns the state of the node with id.
func (f *Frame) Node(id string) (NodeState, bool) {
	if f == nil {
		return NodeState{}, false
	}
	i, ok := f.index[id]
	if !ok {
		return NodeState{}, false
	}
	return f.Nodes[i], true
}

// Bounds returns the bounding box of all node positions.
func (f *Frame) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	if f == nil || len(f.Nodes) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, minY = f.Nodes[0].X, f.Nodes[0].Y
	maxX, maxY = minX, minY
	for _, n := range f.Nodes[1:] {
		minX = min(minX, n.X)
		minY = min(minY, n.Y)
		maxX = max(maxX, n.X)
		maxY = max(maxY, n.Y)
	}
	return minX, minY, maxX, maxY, true
}

// NewFrame builds a frame from explicit node and link states. Links whose
// endpoints are missing are kept; consumers decide how to treat them.
func NewFrame(seq uint64, alpha float64, nodes []NodeState, links []LinkState) *Frame {
	f := &Frame{
		Seq:   seq,
		Alpha: alpha,
		Nodes: nodes,
		Links: links,
		index: make(map[string]int, len(nodes)),
	}
	for i, n := range nodes {
		f.index[n.ID] = i
	}
	return f
}
