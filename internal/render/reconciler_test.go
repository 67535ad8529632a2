package render

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphmind/internal/config"
	"graphmind/internal/domain/graph"
	"graphmind/internal/layout"
)

func testRender() config.Render {
	return config.Default(config.Development).Render
}

type recordingPainter struct {
	calls []string
}

func (p *recordingPainter) EnterNode(s NodeShape)      { p.calls = append(p.calls, "enter:"+s.ID) }
func (p *recordingPainter) UpdateNode(s NodeShape)     { p.calls = append(p.calls, "update:"+s.ID) }
func (p *recordingPainter) ExitNode(id string)         { p.calls = append(p.calls, "exit:"+id) }
func (p *recordingPainter) EnterEdge(s EdgeShape)      { p.calls = append(p.calls, "enter-edge:"+s.Key.String()) }
func (p *recordingPainter) UpdateEdge(s EdgeShape)     { p.calls = append(p.calls, "update-edge:"+s.Key.String()) }
func (p *recordingPainter) ExitEdge(key graph.PairKey) { p.calls = append(p.calls, "exit-edge:"+key.String()) }

type countingObserver struct {
	entered, updated, exited, skipped int
}

func (o *countingObserver) ObserveDiff(entered, updated, exited, skipped int) {
	o.entered += entered
	o.updated += updated
	o.exited += exited
	o.skipped += skipped
}

func frameOf(seq uint64, nodes []layout.NodeState, links ...layout.LinkState) *layout.Frame {
	return layout.NewFrame(seq, 0.5, nodes, links)
}

func TestReconciler_EnterUpdateExit(t *testing.T) {
	// Arrange
	painter := &recordingPainter{}
	r := NewReconciler(testRender(), WithPainter(painter))
	first := frameOf(1,
		[]layout.NodeState{{ID: "A", Label: "Alpha", X: 0, Y: 0}, {ID: "B", Label: "Beta", X: 100, Y: 0}},
		layout.LinkState{ID: "ab", SourceID: "A", TargetID: "B"},
	)
	second := frameOf(2,
		[]layout.NodeState{{ID: "A", Label: "Alpha", X: 10, Y: 0}, {ID: "C", Label: "Gamma", X: 50, Y: 50}},
	)

	// Act
	d1 := r.Apply(first)
	d2 := r.Apply(second)

	// Assert
	assert.Equal(t, []string{"A", "B"}, d1.EnteredNodes)
	assert.Equal(t, []graph.PairKey{graph.NewPairKey("A", "B")}, d1.EnteredEdges)
	assert.Equal(t, []string{"C"}, d2.EnteredNodes)
	assert.Equal(t, []string{"A"}, d2.UpdatedNodes)
	assert.Equal(t, []string{"B"}, d2.ExitedNodes)
	assert.Equal(t, []graph.PairKey{graph.NewPairKey("A", "B")}, d2.ExitedEdges)
	assert.Equal(t, []string{
		"enter:A", "enter:B", "enter-edge:A|B",
		"update:A", "enter:C", "exit:B", "exit-edge:A|B",
	}, painter.calls)
}

func TestReconciler_UnchangedEntitiesAreNotRepainted(t *testing.T) {
	// Arrange
	painter := &recordingPainter{}
	r := NewReconciler(testRender(), WithPainter(painter))
	nodes := []layout.NodeState{{ID: "A", X: 1, Y: 1}, {ID: "B", X: 40, Y: 40}}
	link := layout.LinkState{ID: "ab", SourceID: "A", TargetID: "B"}
	r.Apply(frameOf(1, nodes, link))
	painter.calls = nil

	// Act
	jittered := []layout.NodeState{{ID: "A", X: 1.001, Y: 1}, {ID: "B", X: 40, Y: 40.005}}
	diff := r.Apply(frameOf(2, jittered, link))

	// Assert
	assert.True(t, diff.Empty())
	assert.Empty(t, painter.calls)
}

func TestReconciler_LinkWithUnpositionedEndpointIsSkipped(t *testing.T) {
	// Arrange
	obs := &countingObserver{}
	r := NewReconciler(testRender(), WithObserver(obs))
	nodes := []layout.NodeState{{ID: "A", X: 0, Y: 0}, {ID: "B", X: 80, Y: 0}}
	ab := layout.LinkState{ID: "ab", SourceID: "A", TargetID: "B"}
	r.Apply(frameOf(1, nodes, ab))

	// Act
	diff := r.Apply(frameOf(2, nodes[:1], ab, layout.LinkState{ID: "self", SourceID: "A", TargetID: "A"}))

	// Assert
	assert.ElementsMatch(t, []string{"ab", "self"}, diff.Skipped)
	assert.Equal(t, []graph.PairKey{graph.NewPairKey("A", "B")}, diff.ExitedEdges)
	assert.Empty(t, r.Scene().Edges)
	assert.Equal(t, 2, obs.skipped)
}

func TestReconciler_OutlineIsStablePerNode(t *testing.T) {
	// Arrange
	cfg := testRender()
	r1 := NewReconciler(cfg)
	r2 := NewReconciler(cfg)
	nodes := []layout.NodeState{{ID: "A", X: 0, Y: 0}, {ID: "B", X: 10, Y: 10}}

	// Act
	r1.Apply(frameOf(1, nodes))
	before, _ := r1.Node("A")
	moved := []layout.NodeState{{ID: "A", X: 300, Y: 200}, {ID: "B", X: 10, Y: 10}}
	r1.Apply(frameOf(2, moved))
	after, _ := r1.Node("A")
	r2.Apply(frameOf(1, []layout.NodeState{{ID: "A", X: 5, Y: 5}}))
	elsewhere, _ := r2.Node("A")
	other, _ := r1.Node("B")

	// Assert
	require.NotEmpty(t, before.Path)
	assert.Equal(t, before.Path, after.Path)
	assert.Equal(t, before.Path, elsewhere.Path)
	assert.NotEqual(t, before.Path, other.Path)
	assert.Len(t, before.Outline.Anchors, cfg.OutlineAnchors)
	assert.Len(t, before.Outline.Segments, cfg.OutlineAnchors)
}

func TestReconciler_ColorSlotsFollowEnterOrder(t *testing.T) {
	// Arrange
	cfg := testRender()
	r := NewReconciler(cfg)
	var nodes []layout.NodeState
	for _, id := range []string{"n0", "n1", "n2", "n3", "n4", "n5", "n6"} {
		nodes = append(nodes, layout.NodeState{ID: id, X: float64(len(nodes)) * 200})
	}

	// Act
	r.Apply(frameOf(1, nodes))
	scene := r.Scene()

	// Assert
	require.Len(t, scene.Nodes, 7)
	for i, s := range scene.Nodes {
		assert.Equal(t, nodes[i].ID, s.ID)
		assert.Equal(t, i%len(cfg.Palette), s.ColorIndex)
	}
}

func TestReconciler_HitTestPrefersTopmost(t *testing.T) {
	// Arrange
	r := NewReconciler(testRender())
	r.Apply(frameOf(1, []layout.NodeState{{ID: "under", X: 0, Y: 0}, {ID: "over", X: 20, Y: 0}, {ID: "far", X: 500, Y: 500}}))

	tests := []struct {
		name   string
		x, y   float64
		wantID string
		wantOK bool
	}{
		{name: "overlap picks later node", x: 10, y: 0, wantID: "over", wantOK: true},
		{name: "only first node", x: -40, y: 0, wantID: "under", wantOK: true},
		{name: "empty canvas", x: 250, y: 250, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			id, ok := r.HitTest(tt.x, tt.y)

			// Assert
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestReconciler_ResetForgetsShapes(t *testing.T) {
	r := NewReconciler(testRender())
	r.Apply(frameOf(1, []layout.NodeState{{ID: "A"}}))

	r.Reset()
	diff := r.Apply(frameOf(2, []layout.NodeState{{ID: "A"}}))

	assert.Equal(t, []string{"A"}, diff.EnteredNodes)
}

func TestReconciler_OlderFramesAreIgnored(t *testing.T) {
	// Arrange
	painter := &recordingPainter{}
	r := NewReconciler(testRender(), WithPainter(painter))
	older := frameOf(1, []layout.NodeState{{ID: "A", X: 0, Y: 0}, {ID: "B", X: 80, Y: 0}})
	newer := frameOf(2, []layout.NodeState{
		{ID: "A", X: 140, Y: 60, Pinned: true},
		{ID: "B", X: 80, Y: 0},
		{ID: "C", X: 200, Y: 200},
	})
	r.Apply(older)
	r.Apply(newer)
	c, _ := r.Node("C")
	painter.calls = nil

	tests := []struct {
		name  string
		frame *layout.Frame
	}{
		{name: "older sequence", frame: older},
		{name: "same sequence", frame: newer},
		{name: "nil frame"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			diff := r.Apply(tt.frame)

			// Assert
			assert.True(t, diff.Stale)
			assert.True(t, diff.Empty())
			assert.Empty(t, painter.calls)
			a, ok := r.Node("A")
			require.True(t, ok)
			assert.Equal(t, 140.0, a.X)
			assert.Equal(t, 60.0, a.Y)
			assert.True(t, a.Pinned)
			again, ok := r.Node("C")
			require.True(t, ok)
			assert.Equal(t, c.ColorIndex, again.ColorIndex)
		})
	}
}

func TestReconciler_ResetAcceptsRepeatedSequence(t *testing.T) {
	r := NewReconciler(testRender())
	f := frameOf(5, []layout.NodeState{{ID: "A"}})
	r.Apply(f)

	r.Reset()
	diff := r.Apply(f)

	assert.False(t, diff.Stale)
	assert.Equal(t, []string{"A"}, diff.EnteredNodes)
}

func TestOutline_ShapeAndPath(t *testing.T) {
	// Arrange
	rng := rand.New(rand.NewSource(OutlineSeed("node", 7)))

	// Act
	o := NewOutline(rng, 50, 16, 0.25)
	path := o.Path()
	samples := o.Sample(4)

	// Assert
	require.Len(t, o.Anchors, 16)
	for _, p := range o.Anchors {
		r := math.Hypot(p.X, p.Y)
		assert.GreaterOrEqual(t, r, 50*(1-0.125)-1e-9)
		assert.LessOrEqual(t, r, 50*(1+0.125)+1e-9)
	}
	assert.Regexp(t, `^M-?\d+\.\d{2},-?\d+\.\d{2}(C[-\d.,]+){16}Z$`, path)
	require.Len(t, samples, 64)
	last := samples[len(samples)-1]
	assert.InDelta(t, o.Anchors[0].X, last.X, 1e-9)
	assert.InDelta(t, o.Anchors[0].Y, last.Y, 1e-9)
}

func TestOutline_CurvePassesThroughAnchors(t *testing.T) {
	o := NewOutline(rand.New(rand.NewSource(1)), 50, 8, 0.25)

	for i, s := range o.Segments {
		next := o.Anchors[(i+1)%len(o.Anchors)]
		assert.Equal(t, next, s.End)
	}
}
