package tui

import (
	"context"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/application/services"
	"graphmind/internal/config"
	"graphmind/internal/infrastructure/store/memory"
	"graphmind/internal/interaction"
	"graphmind/internal/layout"
	"graphmind/internal/render"
	"graphmind/internal/render/terminal"
)

type tuiFixture struct {
	model   Model
	service *services.GraphViewService
	canvas  *terminal.Canvas
}

func newTUIFixture(t *testing.T) *tuiFixture {
	t.Helper()
	ctx := context.Background()
	n := 0
	store := memory.NewStore(memory.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))
	a, err := store.CreateNode(ctx, "Alpha", "first")
	require.NoError(t, err)
	b, err := store.CreateNode(ctx, "Beta", "")
	require.NoError(t, err)
	_, err = store.LinkNodes(ctx, ports.LinkRequest{FromID: a.ID, ToID: b.ID})
	require.NoError(t, err)

	cfg := config.Default(config.Development)
	canvas := terminal.NewCanvas(80, 20, cfg.Layout.Width, cfg.Layout.Height, cfg.Render.Palette)
	sim := layout.New(cfg.Layout, layout.WithScheduler(layout.NewManualScheduler()), layout.WithLogger(zap.NewNop()))
	rec := render.NewReconciler(cfg.Render, render.WithPainter(canvas))
	svc := services.NewGraphViewService(cfg, store, nil, sim, rec, zap.NewNop())
	t.Cleanup(svc.Stop)

	return &tuiFixture{
		model:   New(svc, canvas, time.Millisecond, time.Second, zap.NewNop()),
		service: svc,
		canvas:  canvas,
	}
}

func (f *tuiFixture) send(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	next, cmd := f.model.Update(msg)
	f.model = next.(Model)
	return cmd
}

// run applies msg, runs the command it returns and feeds the result back.
func (f *tuiFixture) run(t *testing.T, msg tea.Msg) {
	t.Helper()
	if cmd := f.send(t, msg); cmd != nil {
		f.send(t, cmd())
	}
}

func (f *tuiFixture) load(t *testing.T) {
	t.Helper()
	f.send(t, f.model.refresh()())
	f.send(t, tea.WindowSizeMsg{Width: 80, Height: 24})
	f.send(t, frameMsg(time.Now()))
}

// pumpSelection feeds a pending selection change back into the model.
func (f *tuiFixture) pumpSelection(t *testing.T) {
	t.Helper()
	select {
	case sel := <-f.model.selections:
		f.send(t, selectionMsg(sel))
	default:
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func (f *tuiFixture) nodeCell(t *testing.T, title string) (int, int) {
	t.Helper()
	for _, n := range f.service.Model().Snapshot().Nodes {
		if n.Title != title {
			continue
		}
		pos, ok := f.service.Frame().Node(n.ID)
		require.True(t, ok)
		col, row := f.canvas.ToCell(pos.X, pos.Y)
		return col, row + headerRows
	}
	t.Fatalf("no node titled %q", title)
	return 0, 0
}

func TestModel_RefreshReportsCounts(t *testing.T) {
	f := newTUIFixture(t)

	f.load(t)

	assert.Equal(t, "Loaded 2 nodes and 1 links", f.model.status)
	assert.Contains(t, f.model.View(), "2 nodes · 1 links")
	assert.Contains(t, f.model.View(), "Alpha")
}

func TestModel_MouseClickSelects(t *testing.T) {
	// Arrange
	f := newTUIFixture(t)
	f.load(t)
	col, row := f.nodeCell(t, "Alpha")

	// Act
	f.send(t, tea.MouseMsg{X: col, Y: row, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	dragging := f.service.Controller().State()
	f.send(t, tea.MouseMsg{X: col, Y: row, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	f.pumpSelection(t)

	// Assert
	assert.Equal(t, interaction.Dragging, dragging)
	sel := f.service.Controller().Selection()
	assert.Equal(t, interaction.NodeSelected, sel.State)
	require.NotNil(t, sel.Node)
	assert.Equal(t, "Alpha", sel.Node.Title)
	assert.Contains(t, f.model.View(), "Selected: Alpha - first")
}

func TestModel_SelectionChangesArePushed(t *testing.T) {
	// Arrange
	f := newTUIFixture(t)
	f.load(t)
	nodes := f.service.Model().Snapshot().Nodes
	alpha, beta := nodes[0], nodes[1]

	// Act
	require.NoError(t, f.service.Controller().Click(alpha.ID))
	before := f.model.View()
	require.NoError(t, f.service.Controller().Click(beta.ID))
	f.pumpSelection(t)

	// Assert
	assert.Contains(t, before, "No selection", "the view only changes once the update arrives")
	assert.Equal(t, beta.ID, f.model.selection.NodeID, "only the latest selection is kept")
	assert.Empty(t, f.model.selections)
	assert.Contains(t, f.model.View(), "Selected: Beta | neighbors: Alpha")

	cmd := f.send(t, key("esc"))
	assert.Nil(t, cmd)
	f.pumpSelection(t)
	assert.Contains(t, f.model.View(), "No selection")
}

func TestModel_DeleteClearsSelectionLine(t *testing.T) {
	// Arrange
	f := newTUIFixture(t)
	f.load(t)
	alpha := f.service.Model().Snapshot().Nodes[0]
	require.NoError(t, f.service.Controller().Click(alpha.ID))
	f.pumpSelection(t)
	require.Contains(t, f.model.View(), "Selected: Alpha")

	// Act
	f.send(t, key("d"))
	f.run(t, key("y"))
	f.pumpSelection(t)

	// Assert
	assert.Contains(t, f.model.View(), "No selection")
}

func TestModel_TabMovesToNeighbor(t *testing.T) {
	f := newTUIFixture(t)
	f.load(t)
	alpha := f.service.Model().Snapshot().Nodes[0]
	require.NoError(t, f.service.Controller().Click(alpha.ID))

	f.send(t, key("tab"))

	sel := f.service.Controller().Selection()
	require.NotNil(t, sel.Node)
	assert.Equal(t, "Beta", sel.Node.Title)

	f.send(t, key("esc"))
	assert.Equal(t, interaction.Idle, f.service.Controller().State())
}

func TestModel_AddNodeLinksToSelection(t *testing.T) {
	// Arrange
	f := newTUIFixture(t)
	f.load(t)
	beta := f.service.Model().Snapshot().Nodes[1]
	require.NoError(t, f.service.Controller().Click(beta.ID))

	// Act
	f.send(t, key("a"))
	require.Equal(t, modeAdd, f.model.mode)
	for _, r := range "Gamma" {
		f.send(t, key(string(r)))
	}
	f.run(t, key("enter"))

	// Assert
	assert.Equal(t, modeView, f.model.mode)
	assert.Equal(t, `Added "Gamma"`, f.model.status)
	nodes, links := f.service.Model().Len()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, links)
	assert.Len(t, f.service.Model().NeighborsOf(beta.ID), 2)
}

func TestModel_DeleteAsksForConfirmation(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		wantNodes int
		wantState interaction.State
	}{
		{name: "declined", answer: "n", wantNodes: 2, wantState: interaction.NodeSelected},
		{name: "confirmed", answer: "y", wantNodes: 1, wantState: interaction.Idle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newTUIFixture(t)
			f.load(t)
			alpha := f.service.Model().Snapshot().Nodes[0]
			require.NoError(t, f.service.Controller().Click(alpha.ID))

			// Act
			f.send(t, key("d"))
			prompt := f.model.View()
			f.run(t, key(tt.answer))

			// Assert
			assert.Contains(t, prompt, `Delete "Alpha" and its links? (y/n)`)
			nodes, _ := f.service.Model().Len()
			assert.Equal(t, tt.wantNodes, nodes)
			assert.Equal(t, tt.wantState, f.service.Controller().State())
		})
	}
}

func TestModel_DeleteWithoutSelection(t *testing.T) {
	f := newTUIFixture(t)
	f.load(t)

	f.send(t, key("d"))

	assert.Equal(t, modeView, f.model.mode)
	require.Error(t, f.model.err)
	assert.Contains(t, f.model.View(), "Select a node to delete")
}
