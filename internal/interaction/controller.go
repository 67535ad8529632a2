// Package interaction implements the drag and selection state machine that
// sits between pointer input, the layout simulation and the graph model.
//
// The controller is in exactly one of three states:
//
//	Idle
//	Dragging(nodeID)      a node is pinned under the pointer
//	NodeSelected(nodeID)  a node is selected and its neighbors are shown
//
// At most one node is pinned by a drag at any time, and every path out of
// Dragging (pointer-up, pointer-leave, node removal) unpins it.
package interaction

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"graphmind/internal/config"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
)

// State is the controller state.
type State int

const (
	Idle State = iota
	Dragging
	NodeSelected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case NodeSelected:
		return "selected"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Layout is the part of the simulation the controller drives.
type Layout interface {
	Pin(id string, x, y float64) error
	Unpin(id string) error
}

// Graph is the part of the model the controller reads.
type Graph interface {
	Node(id string) (graph.Node, bool)
	NeighborsOf(id string) []graph.Node
	IsNeighbor(a, b string) bool
}

// Deleter removes a node remotely and, once confirmed, locally.
type Deleter interface {
	DeleteNode(ctx context.Context, id string) error
}

// Confirmer asks the user whether node should really be deleted.
type Confirmer interface {
	ConfirmDelete(ctx context.Context, node graph.Node) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, node graph.Node) (bool, error)

// ConfirmDelete calls f.
func (f ConfirmFunc) ConfirmDelete(ctx context.Context, node graph.Node) (bool, error) {
	return f(ctx, node)
}

// Confirmed is a Confirmer that always agrees. Hosts use it when the user
// has already confirmed out of band.
var Confirmed Confirmer = ConfirmFunc(func(context.Context, graph.Node) (bool, error) { return true, nil })

// Selection is a read-only view of the controller.
type Selection struct {
	State      State        `json:"state"`
	NodeID     string       `json:"nodeId,omitempty"`
	Node       *graph.Node  `json:"node,omitempty"`
	Neighbors  []graph.Node `json:"neighbors"`
	DraggingID string       `json:"draggingId,omitempty"`
}

// Controller is the interaction state machine. It is safe for concurrent use;
// calls into the layout happen under the controller lock so pointer events
// are applied in arrival order.
type Controller struct {
	mu      sync.Mutex
	cfg     config.Interaction
	layout  Layout
	graph   Graph
	deleter Deleter
	logger  *zap.Logger

	state    State
	selected string

	// drag gesture
	dragID       string
	prevSelected string
	downX, downY float64
	lastX, lastY float64
	travel       float64

	listeners []func(Selection)
}

// NewController creates a controller in Idle.
func NewController(cfg config.Interaction, layout Layout, g Graph, deleter Deleter, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:     cfg,
		layout:  layout,
		graph:   g,
		deleter: deleter,
		logger:  logger,
	}
}

// OnChange registers fn to be called after every state transition.
func (c *Controller) OnChange(fn func(Selection)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selection returns the current selection with freshly computed neighbors.
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectionLocked()
}

func (c *Controller) selectionLocked() Selection {
	sel := Selection{State: c.state, Neighbors: []graph.Node{}}
	if c.state == Dragging {
		sel.DraggingID = c.dragID
	}
	if c.state == NodeSelected {
		sel.NodeID = c.selected
		if n, ok := c.graph.Node(c.selected); ok {
			sel.Node = &n
		}
		sel.Neighbors = c.graph.NeighborsOf(c.selected)
	}
	return sel
}

// ============================================================================
// POINTER EVENTS
// ============================================================================

// PointerDown starts dragging the node under the pointer. An empty id means
// the canvas was hit and is ignored, as is a second pointer-down while a
// drag is in progress.
func (c *Controller) PointerDown(id string, x, y float64) error {
	if err := validPoint("PointerDown", x, y); err != nil {
		return err
	}
	c.mu.Lock()
	if id == "" || c.state == Dragging {
		c.mu.Unlock()
		return nil
	}
	if err := c.layout.Pin(id, x, y); err != nil {
		c.mu.Unlock()
		return err
	}
	c.prevSelected = ""
	if c.state == NodeSelected {
		c.prevSelected = c.selected
	}
	c.state = Dragging
	c.dragID = id
	c.downX, c.downY = x, y
	c.lastX, c.lastY = x, y
	c.travel = 0
	c.logger.Debug("Drag started", zap.String("node_id", id))
	c.emitLocked()
	return nil
}

// PointerMove re-pins the dragged node at the pointer position.
func (c *Controller) PointerMove(x, y float64) error {
	if err := validPoint("PointerMove", x, y); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Dragging {
		return nil
	}
	c.trackLocked(x, y)
	return c.layout.Pin(c.dragID, x, y)
}

// PointerUp ends the drag. Negligible movement is treated as a click on the
// dragged node.
func (c *Controller) PointerUp(x, y float64) error {
	if err := validPoint("PointerUp", x, y); err != nil {
		return err
	}
	c.mu.Lock()
	if c.state != Dragging {
		c.mu.Unlock()
		return nil
	}
	c.trackLocked(x, y)
	return c.releaseLocked()
}

// PointerLeave ends any drag as if the pointer were released where it was
// last seen.
func (c *Controller) PointerLeave() error {
	c.mu.Lock()
	if c.state != Dragging {
		c.mu.Unlock()
		return nil
	}
	return c.releaseLocked()
}

func (c *Controller) trackLocked(x, y float64) {
	c.lastX, c.lastY = x, y
	c.travel = math.Max(c.travel, math.Hypot(x-c.downX, y-c.downY))
}

// releaseLocked unpins the dragged node and picks the next state. It
// unlocks c.mu.
func (c *Controller) releaseLocked() error {
	id := c.dragID
	err := c.layout.Unpin(id)
	c.dragID = ""

	if c.travel <= c.cfg.ClickTolerance {
		if c.prevSelected == id {
			c.state = Idle
			c.selected = ""
		} else {
			c.state = NodeSelected
			c.selected = id
		}
		c.logger.Debug("Drag treated as click", zap.String("node_id", id), zap.Float64("travel", c.travel))
	} else {
		c.state = Idle
		c.selected = ""
		c.logger.Debug("Drag ended", zap.String("node_id", id), zap.Float64("travel", c.travel))
	}
	c.prevSelected = ""
	c.emitLocked()
	if err != nil && !errors.IsNotFound(err) {
		return err
	}
	return nil
}

// ============================================================================
// SELECTION
// ============================================================================

// Click selects the node, or returns to Idle when it is already selected.
func (c *Controller) Click(id string) error {
	c.mu.Lock()
	if c.state == Dragging {
		c.mu.Unlock()
		return errors.State(errors.CodeInvalidPointer.String(), "Click during a drag").
			WithOperation("Click").
			WithDetails(id).
			Build()
	}
	if c.state == NodeSelected && c.selected == id {
		c.state = Idle
		c.selected = ""
		c.emitLocked()
		return nil
	}
	if _, ok := c.graph.Node(id); !ok {
		c.mu.Unlock()
		return nodeNotFound("Click", id)
	}
	c.state = NodeSelected
	c.selected = id
	c.emitLocked()
	return nil
}

// SelectNeighbor moves the selection to a neighbor of the selected node
// without passing through Idle.
func (c *Controller) SelectNeighbor(id string) error {
	c.mu.Lock()
	if c.state != NodeSelected {
		c.mu.Unlock()
		return noSelection("SelectNeighbor")
	}
	if !c.graph.IsNeighbor(c.selected, id) {
		from := c.selected
		c.mu.Unlock()
		return errors.Validation(errors.CodeNotANeighbor.String(), "Node is not linked to the selection").
			WithOperation("SelectNeighbor").
			WithDetails(from + " -> " + id).
			Build()
	}
	c.selected = id
	c.emitLocked()
	return nil
}

// Close clears the selection.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state != NodeSelected {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	c.selected = ""
	c.emitLocked()
}

// DeleteSelected asks confirm and, when confirmed, deletes the selected node
// through the deleter. The controller returns to Idle only after the
// deletion succeeded; on failure the state is unchanged and the error is
// returned. A declined confirmation returns false and no error.
func (c *Controller) DeleteSelected(ctx context.Context, confirm Confirmer) (bool, error) {
	c.mu.Lock()
	if c.state != NodeSelected {
		c.mu.Unlock()
		return false, noSelection("DeleteSelected")
	}
	id := c.selected
	node, ok := c.graph.Node(id)
	if !ok {
		node = graph.Node{ID: id, Title: id}
	}
	c.mu.Unlock()

	if confirm == nil {
		if c.cfg.ConfirmDeletes {
			return false, errors.Validation(errors.CodeDeleteNotConfirm.String(), "Deleting a node requires confirmation").
				WithOperation("DeleteSelected").
				WithDetails(id).
				Build()
		}
		confirm = Confirmed
	}
	ok, err := confirm.ConfirmDelete(ctx, node)
	if err != nil {
		return false, err
	}
	if !ok {
		c.logger.Debug("Delete declined", zap.String("node_id", id))
		return false, nil
	}

	if err := c.deleter.DeleteNode(ctx, id); err != nil {
		c.logger.Warn("Delete failed", zap.String("node_id", id), zap.Error(err))
		return false, err
	}

	c.mu.Lock()
	if c.state == NodeSelected && c.selected == id {
		c.state = Idle
		c.selected = ""
		c.emitLocked()
	} else {
		c.mu.Unlock()
	}
	c.logger.Info("Node deleted", zap.String("node_id", id))
	return true, nil
}

// Revalidate drops a selection or drag whose node no longer exists. Hosts
// call it after the model was replaced.
func (c *Controller) Revalidate() {
	c.mu.Lock()
	switch {
	case c.state == NodeSelected && !c.exists(c.selected):
		c.logger.Debug("Selected node vanished", zap.String("node_id", c.selected))
		c.state = Idle
		c.selected = ""
		c.emitLocked()
	case c.state == Dragging && !c.exists(c.dragID):
		c.logger.Debug("Dragged node vanished", zap.String("node_id", c.dragID))
		c.state = Idle
		c.dragID = ""
		c.prevSelected = ""
		c.emitLocked()
	default:
		c.mu.Unlock()
	}
}

func (c *Controller) exists(id string) bool {
	_, ok := c.graph.Node(id)
	return ok
}

// emitLocked snapshots the selection, unlocks c.mu and notifies listeners.
func (c *Controller) emitLocked() {
	sel := c.selectionLocked()
	listeners := append([]func(Selection){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(sel)
	}
}

func validPoint(op string, x, y float64) error {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return errors.Validation(errors.CodeInvalidPointer.String(), "Pointer coordinates must be finite").
			WithOperation(op).
			Build()
	}
	return nil
}

func noSelection(op string) error {
	return errors.State(errors.CodeNoSelection.String(), "No node is selected").
		WithOperation(op).
		Build()
}

func nodeNotFound(op, id string) error {
	return errors.NotFound(errors.CodeNodeNotFound.String(), "Node does not exist").
		WithOperation(op).
		WithResource("node").
		WithDetails(id).
		Build()
}
