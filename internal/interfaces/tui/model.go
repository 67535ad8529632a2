// Package tui is a terminal host for a graph view: the layout is drawn on a
// character canvas, nodes are dragged and selected with the mouse and the
// add and delete flows run from the keyboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"graphmind/internal/application/services"
	"graphmind/internal/errors"
	"graphmind/internal/interaction"
	"graphmind/internal/render/terminal"
)

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
)

// headerRows is the number of lines above the canvas.
const headerRows = 1

// footerRows is the number of lines below the canvas.
const footerRows = 3

type mode int

const (
	modeView mode = iota
	modeAdd
	modeConfirmDelete
)

type frameMsg time.Time

type refreshedMsg struct {
	result services.RefreshResult
	err    error
}

type addedMsg struct {
	result services.AddNodeResult
	err    error
}

type deletedMsg struct {
	title string
	err   error
}

type selectionMsg interaction.Selection

// selectionFeed carries the latest controller selection into the program.
// Listeners run on the goroutine that caused the transition, which is often
// Update itself, so a push never blocks and replaces an unread value.
type selectionFeed chan interaction.Selection

func newSelectionFeed(c *interaction.Controller) selectionFeed {
	feed := make(selectionFeed, 1)
	c.OnChange(feed.push)
	return feed
}

func (f selectionFeed) push(sel interaction.Selection) {
	for {
		select {
		case f <- sel:
			return
		default:
		}
		select {
		case <-f:
		default:
		}
	}
}

// Model is the bubbletea model of the terminal host.
type Model struct {
	service  *services.GraphViewService
	canvas   *terminal.Canvas
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration

	selections selectionFeed
	selection  interaction.Selection

	mode    mode
	input   textinput.Model
	width   int
	height  int
	fit     bool
	status  string
	err     error
	pending string // title of the node awaiting delete confirmation
}

// New creates the model. canvas must be the painter of the service's
// reconciler.
func New(service *services.GraphViewService, canvas *terminal.Canvas, interval, timeout time.Duration, logger *zap.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = "Title of the new node"
	ti.CharLimit = 200
	ti.Width = 40

	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return Model{
		service:    service,
		canvas:     canvas,
		logger:     logger,
		interval:   interval,
		timeout:    timeout,
		selections: newSelectionFeed(service.Controller()),
		selection:  service.Controller().Selection(),
		input:      ti,
		fit:        true,
	}
}

// Init starts the frame loop, the selection feed and the first fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.nextFrame(), m.waitSelection())
}

func (m Model) waitSelection() tea.Cmd {
	return func() tea.Msg {
		return selectionMsg(<-m.selections)
	}
}

// setSelection stores sel for the status line and highlights it on the canvas.
func (m *Model) setSelection(sel interaction.Selection) {
	m.selection = sel
	neighbors := make([]string, 0, len(sel.Neighbors))
	for _, n := range sel.Neighbors {
		neighbors = append(neighbors, n.ID)
	}
	m.canvas.SetHighlight(sel.NodeID, neighbors)
}

func (m Model) nextFrame() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) opContext() (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), m.timeout)
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.opContext()
		defer cancel()
		result, err := m.service.Refresh(ctx)
		return refreshedMsg{result: result, err: err}
	}
}

func (m Model) addNode(title string) tea.Cmd {
	var linkTo []string
	if sel := m.service.Controller().Selection(); sel.State == interaction.NodeSelected {
		linkTo = []string{sel.NodeID}
	}
	return func() tea.Msg {
		ctx, cancel := m.opContext()
		defer cancel()
		result, err := m.service.AddNode(ctx, services.AddNodeRequest{Title: title, LinkTo: linkTo})
		return addedMsg{result: result, err: err}
	}
}

// deleteSelected runs after the user pressed y, so the controller is handed
// an already given confirmation.
func (m Model) deleteSelected(title string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.opContext()
		defer cancel()
		_, err := m.service.Controller().DeleteSelected(ctx, interaction.Confirmed)
		return deletedMsg{title: title, err: err}
	}
}

// ============================================================================
// UPDATE
// ============================================================================

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.canvas.Resize(msg.Width, max(msg.Height-headerRows-footerRows, 1))
		return m, nil

	case frameMsg:
		m.service.Scene()
		if m.fit {
			m.canvas.Fit(20)
		}
		return m, m.nextFrame()

	case selectionMsg:
		m.setSelection(interaction.Selection(msg))
		return m, m.waitSelection()

	case refreshedMsg:
		// Neighbor sets change without a state transition.
		m.setSelection(m.service.Controller().Selection())
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Loaded %d nodes and %d links", msg.result.Nodes, msg.result.Links)
		if n := len(msg.result.Issues); n > 0 {
			m.status += fmt.Sprintf(" (%d inconsistent links skipped)", n)
		}
		return m, nil

	case addedMsg:
		m.setSelection(m.service.Controller().Selection())
		switch {
		case msg.err == nil:
			m.err = nil
			m.status = fmt.Sprintf("Added %q", msg.result.Node.Title)
		case errors.IsPartialLink(msg.err):
			m.err = nil
			m.status = fmt.Sprintf("Added %q, %d links failed", msg.result.Node.Title, len(msg.result.Failures))
		default:
			m.err = msg.err
		}
		return m, nil

	case deletedMsg:
		m.setSelection(m.service.Controller().Selection())
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Deleted %q", msg.title)
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		switch m.mode {
		case modeAdd:
			return m.handleAddKey(msg)
		case modeConfirmDelete:
			return m.handleConfirmKey(msg)
		default:
			return m.handleViewKey(msg)
		}
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeView {
		return m, nil
	}
	c := m.service.Controller()
	col, row := msg.X, msg.Y-headerRows
	x, y := m.canvas.ToWorld(col, row)

	var err error
	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if id, ok := m.canvas.NodeAt(col, row); ok {
			m.fit = false
			err = c.PointerDown(id, x, y)
		}
	case msg.Action == tea.MouseActionMotion:
		err = c.PointerMove(x, y)
	case msg.Action == tea.MouseActionRelease:
		err = c.PointerUp(x, y)
		m.fit = true
	}
	if err != nil {
		m.err = err
	}
	return m, nil
}

func (m Model) handleViewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.service.Controller()
	switch msg.String() {
	case "q", "ctrl+c":
		m.service.Stop()
		return m, tea.Quit
	case "r":
		m.status = "Refreshing..."
		return m, m.refresh()
	case "a":
		m.mode = modeAdd
		m.input.Reset()
		return m, m.input.Focus()
	case "d":
		sel := c.Selection()
		if sel.State != interaction.NodeSelected {
			m.err = errors.State(errors.CodeNoSelection.String(), "Select a node to delete").Build()
			return m, nil
		}
		m.pending = sel.NodeID
		if sel.Node != nil {
			m.pending = sel.Node.Title
		}
		m.mode = modeConfirmDelete
		return m, nil
	case "tab":
		sel := c.Selection()
		if sel.State == interaction.NodeSelected && len(sel.Neighbors) > 0 {
			if err := c.SelectNeighbor(sel.Neighbors[0].ID); err != nil {
				m.err = err
			}
		}
		return m, nil
	case "esc":
		c.Close()
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m Model) handleAddKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeView
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		title := strings.TrimSpace(m.input.Value())
		m.mode = modeView
		m.input.Blur()
		if title == "" {
			return m, nil
		}
		m.status = fmt.Sprintf("Adding %q...", title)
		return m, m.addNode(title)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	title := m.pending
	m.mode = modeView
	m.pending = ""
	switch msg.String() {
	case "y", "Y":
		m.status = fmt.Sprintf("Deleting %q...", title)
		return m, m.deleteSelected(title)
	default:
		m.status = "Delete cancelled"
		return m, nil
	}
}

// ============================================================================
// VIEW
// ============================================================================

// View renders the header, the canvas and the status lines.
func (m Model) View() string {
	var b strings.Builder

	nodes, links := m.service.Model().Len()
	b.WriteString(titleStyle.Render("GraphMind"))
	b.WriteString(subtleStyle.Render(fmt.Sprintf("  %d nodes · %d links · alpha %.3f",
		nodes, links, m.service.Simulation().Alpha())))
	b.WriteByte('\n')

	b.WriteString(m.canvas.View())
	b.WriteByte('\n')

	b.WriteString(m.selectionLine())
	b.WriteByte('\n')

	switch m.mode {
	case modeAdd:
		b.WriteString(promptStyle.Render("New node: "))
		b.WriteString(m.input.View())
	case modeConfirmDelete:
		b.WriteString(promptStyle.Render(fmt.Sprintf("Delete %q and its links? (y/n)", m.pending)))
	default:
		if m.err != nil {
			b.WriteString(errorStyle.Render(m.err.Error()))
		} else if m.status != "" {
			b.WriteString(okStyle.Render(m.status))
		}
	}
	b.WriteByte('\n')

	b.WriteString(subtleStyle.Render("drag/click nodes · tab neighbor · a add · d delete · r refresh · esc close · q quit"))
	return b.String()
}

func (m Model) selectionLine() string {
	sel := m.selection
	if sel.State != interaction.NodeSelected || sel.Node == nil {
		return subtleStyle.Render("No selection")
	}
	titles := make([]string, 0, len(sel.Neighbors))
	for _, n := range sel.Neighbors {
		titles = append(titles, n.Title)
	}
	line := "Selected: " + sel.Node.Title
	if sel.Node.Description != "" {
		line += " - " + sel.Node.Description
	}
	if len(titles) > 0 {
		line += " | neighbors: " + strings.Join(titles, ", ")
	}
	return line
}

// Run starts the program and blocks until the user quits.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
