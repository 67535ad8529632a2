// Package render reconciles simulation frames into keyed visual shapes.
//
// The Reconciler keeps one retained shape per node (keyed by node id) and per
// link (keyed by the unordered node pair). Each Apply computes which shapes
// entered, moved or left and forwards those calls to a Painter, so retained
// backends only touch what changed. Full-repaint backends read Scene instead.
package render

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"go.uber.org/zap"

	"graphmind/internal/config"
	"graphmind/internal/domain/graph"
	"graphmind/internal/layout"
)

// NodeShape is the retained visual of one node.
type NodeShape struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Pinned     bool     `json:"pinned"`
	ColorIndex int      `json:"colorIndex"`
	Outline    *Outline `json:"-"`
	Path       string   `json:"path"`

	order int
}

// EdgeShape is the retained visual of one link.
type EdgeShape struct {
	Key      graph.PairKey `json:"-"`
	LinkID   string        `json:"id"`
	SourceID string        `json:"source"`
	TargetID string        `json:"target"`
	X1       float64       `json:"x1"`
	Y1       float64       `json:"y1"`
	X2       float64       `json:"x2"`
	Y2       float64       `json:"y2"`

	order int
}

// Painter receives keyed enter/update/exit calls.
type Painter interface {
	EnterNode(NodeShape)
	UpdateNode(NodeShape)
	ExitNode(id string)
	EnterEdge(EdgeShape)
	UpdateEdge(EdgeShape)
	ExitEdge(key graph.PairKey)
}

// NopPainter ignores every call.
type NopPainter struct{}

func (NopPainter) EnterNode(NodeShape)    {}
func (NopPainter) UpdateNode(NodeShape)   {}
func (NopPainter) ExitNode(string)        {}
func (NopPainter) EnterEdge(EdgeShape)    {}
func (NopPainter) UpdateEdge(EdgeShape)   {}
func (NopPainter) ExitEdge(graph.PairKey) {}

// Observer receives reconciliation telemetry.
type Observer interface {
	ObserveDiff(entered, updated, exited, skipped int)
}

// Diff summarizes one reconciliation.
type Diff struct {
	Seq          uint64          `json:"seq"`
	EnteredNodes []string        `json:"enteredNodes,omitempty"`
	UpdatedNodes []string        `json:"updatedNodes,omitempty"`
	ExitedNodes  []string        `json:"exitedNodes,omitempty"`
	EnteredEdges []graph.PairKey `json:"-"`
	UpdatedEdges []graph.PairKey `json:"-"`
	ExitedEdges  []graph.PairKey `json:"-"`
	// Skipped holds ids of links not drawn because an endpoint has no position.
	Skipped []string `json:"skipped,omitempty"`
	// Stale is set when the frame was not newer than the last applied one and
	// was ignored.
	Stale bool `json:"stale,omitempty"`
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.EnteredNodes)+len(d.UpdatedNodes)+len(d.ExitedNodes)+
		len(d.EnteredEdges)+len(d.UpdatedEdges)+len(d.ExitedEdges) == 0
}

// Scene is the full set of retained shapes in enter order.
type Scene struct {
	Nodes []NodeShape `json:"nodes"`
	Edges []EdgeShape `json:"edges"`
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPainter sets the painter that receives diffs.
func WithPainter(p Painter) Option {
	return func(r *Reconciler) { r.painter = p }
}

// WithObserver sets the telemetry observer.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) { r.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// Reconciler maps frames to retained shapes.
type Reconciler struct {
	mu       sync.Mutex
	cfg      config.Render
	painter  Painter
	observer Observer
	logger   *zap.Logger

	nodes   map[string]*NodeShape
	edges   map[graph.PairKey]*EdgeShape
	entered int
	lastSeq uint64
	applied bool
}

// NewReconciler creates an empty reconciler.
func NewReconciler(cfg config.Render, opts ...Option) *Reconciler {
	r := &Reconciler{
		cfg:     cfg,
		painter: NopPainter{},
		logger:  zap.NewNop(),
		nodes:   make(map[string]*NodeShape),
		edges:   make(map[graph.PairKey]*EdgeShape),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply reconciles the retained shapes with frame and returns what changed.
// Frames reach Apply from the tick goroutine and from hosts asking for a
// scene, so a frame whose Seq is not above the last applied one is ignored.
func (r *Reconciler) Apply(frame *layout.Frame) Diff {
	if frame == nil {
		return Diff{Stale: true}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.applied && frame.Seq <= r.lastSeq {
		return Diff{Seq: frame.Seq, Stale: true}
	}
	diff := Diff{Seq: frame.Seq}
	r.lastSeq = frame.Seq
	r.applied = true

	// Nodes
	present := make(map[string]struct{}, len(frame.Nodes))
	for _, n := range frame.Nodes {
		present[n.ID] = struct{}{}
		shape, ok := r.nodes[n.ID]
		if !ok {
			shape = r.enterNode(n)
			r.nodes[n.ID] = shape
			diff.EnteredNodes = append(diff.EnteredNodes, n.ID)
			r.painter.EnterNode(*shape)
			continue
		}
		if r.moved(shape.X, shape.Y, n.X, n.Y) || shape.Label != n.Label || shape.Pinned != n.Pinned {
			shape.X, shape.Y = n.X, n.Y
			shape.Label = n.Label
			shape.Pinned = n.Pinned
			diff.UpdatedNodes = append(diff.UpdatedNodes, n.ID)
			r.painter.UpdateNode(*shape)
		}
	}
	for _, id := range r.sortedNodeIDs() {
		if _, ok := present[id]; !ok {
			delete(r.nodes, id)
			diff.ExitedNodes = append(diff.ExitedNodes, id)
			r.painter.ExitNode(id)
		}
	}

	// Edges
	live := make(map[graph.PairKey]struct{}, len(frame.Links))
	for _, l := range frame.Links {
		src, okS := frame.Node(l.SourceID)
		dst, okT := frame.Node(l.TargetID)
		if !okS || !okT || l.SourceID == l.TargetID {
			diff.Skipped = append(diff.Skipped, l.ID)
			continue
		}
		key := l.Key()
		if _, dup := live[key]; dup {
			continue
		}
		live[key] = struct{}{}

		shape, ok := r.edges[key]
		if !ok {
			shape = &EdgeShape{
				Key: key, LinkID: l.ID, SourceID: l.SourceID, TargetID: l.TargetID,
				X1: src.X, Y1: src.Y, X2: dst.X, Y2: dst.Y,
				order: r.entered,
			}
			r.entered++
			r.edges[key] = shape
			diff.EnteredEdges = append(diff.EnteredEdges, key)
			r.painter.EnterEdge(*shape)
			continue
		}
		if r.moved(shape.X1, shape.Y1, src.X, src.Y) || r.moved(shape.X2, shape.Y2, dst.X, dst.Y) {
			shape.X1, shape.Y1, shape.X2, shape.Y2 = src.X, src.Y, dst.X, dst.Y
			diff.UpdatedEdges = append(diff.UpdatedEdges, key)
			r.painter.UpdateEdge(*shape)
		}
	}
	for _, key := range r.sortedEdgeKeys() {
		if _, ok := live[key]; !ok {
			delete(r.edges, key)
			diff.ExitedEdges = append(diff.ExitedEdges, key)
			r.painter.ExitEdge(key)
		}
	}

	if len(diff.Skipped) > 0 {
		r.logger.Debug("Skipped links without positioned endpoints",
			zap.Strings("link_ids", diff.Skipped),
		)
	}
	if r.observer != nil {
		r.observer.ObserveDiff(
			len(diff.EnteredNodes)+len(diff.EnteredEdges),
			len(diff.UpdatedNodes)+len(diff.UpdatedEdges),
			len(diff.ExitedNodes)+len(diff.ExitedEdges),
			len(diff.Skipped),
		)
	}
	return diff
}

func (r *Reconciler) enterNode(n layout.NodeState) *NodeShape {
	rng := rand.New(rand.NewSource(OutlineSeed(n.ID, r.cfg.Seed)))
	outline := NewOutline(rng, r.cfg.OutlineRadius, r.cfg.OutlineAnchors, r.cfg.OutlineVariance)

	palette := len(r.cfg.Palette)
	if palette == 0 {
		palette = 1
	}
	shape := &NodeShape{
		ID:         n.ID,
		Label:      n.Label,
		X:          n.X,
		Y:          n.Y,
		Pinned:     n.Pinned,
		ColorIndex: r.entered % palette,
		Outline:    outline,
		Path:       outline.Path(),
		order:      r.entered,
	}
	r.entered++
	return shape
}

func (r *Reconciler) moved(x0, y0, x1, y1 float64) bool {
	return math.Abs(x1-x0) > r.cfg.MoveEpsilon || math.Abs(y1-y0) > r.cfg.MoveEpsilon
}

func (r *Reconciler) sortedNodeIDs() []string {
	ids := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.nodes[ids[i]].order < r.nodes[ids[j]].order })
	return ids
}

func (r *Reconciler) sortedEdgeKeys() []graph.PairKey {
	keys := make([]graph.PairKey, 0, len(r.edges))
	for k := range r.edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return r.edges[keys[i]].order < r.edges[keys[j]].order })
	return keys
}

// Scene returns a copy of every retained shape in enter order.
func (r *Reconciler) Scene() Scene {
	r.mu.Lock()
	defer r.mu.Unlock()

	scene := Scene{
		Nodes: make([]NodeShape, 0, len(r.nodes)),
		Edges: make([]EdgeShape, 0, len(r.edges)),
	}
	for _, id := range r.sortedNodeIDs() {
		scene.Nodes = append(scene.Nodes, *r.nodes[id])
	}
	for _, k := range r.sortedEdgeKeys() {
		scene.Edges = append(scene.Edges, *r.edges[k])
	}
	return scene
}

// Node returns the retained shape for id.
func (r *Reconciler) Node(id string) (NodeShape, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.nodes[id]
	if !ok {
		return NodeShape{}, false
	}
	return *s, true
}

// Reset drops every retained shape without calling the painter.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = make(map[string]*NodeShape)
	r.edges = make(map[graph.PairKey]*EdgeShape)
	r.entered = 0
	r.applied = false
}

// HitTest returns the id of the topmost node whose outline radius contains
// (x, y). It is used by hosts that translate raw pointer positions into
// node events.
func (r *Reconciler) HitTest(x, y float64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	best, found := "", false
	bestOrder := -1
	for id, s := range r.nodes {
		if math.Hypot(x-s.X, y-s.Y) <= r.cfg.OutlineRadius && s.order > bestOrder {
			best, bestOrder, found = id, s.order, true
		}
	}
	return best, found
}
