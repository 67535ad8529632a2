// Package services orchestrates the graph engine: it fetches snapshots from
// the store, normalizes them into the model, drives the layout simulation and
// runs the add and delete flows that keep the diagram in sync with the store.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/config"
	"graphmind/internal/domain/events"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
	"graphmind/internal/infrastructure/concurrency"
	"graphmind/internal/interaction"
	"graphmind/internal/layout"
	"graphmind/internal/render"
)

// AddNodeRequest describes a node to create and the existing nodes to link
// it to.
type AddNodeRequest struct {
	Title       string
	Description string
	LinkTo      []string
	Type        graph.LinkType
	Notes       string
}

// AddNodeResult reports what the add-node flow produced. Failures holds one
// entry per requested link the store rejected.
type AddNodeResult struct {
	Node     graph.Node           `json:"node"`
	Links    []graph.Link         `json:"links"`
	Failures []errors.LinkFailure `json:"failures,omitempty"`
}

// RefreshResult summarizes a fetch.
type RefreshResult struct {
	Nodes  int           `json:"nodes"`
	Links  int           `json:"links"`
	Issues []graph.Issue `json:"-"`
}

// GraphViewService owns one diagram: its model, simulation, reconciler and
// interaction controller.
type GraphViewService struct {
	mu sync.Mutex

	cfg        *config.Config
	store      ports.GraphStore
	publisher  ports.EventPublisher
	model      *graph.Model
	sim        *layout.Simulation
	reconciler *render.Reconciler
	controller *interaction.Controller
	logger     *zap.Logger
	now        func() time.Time

	loaded bool
}

// NewGraphViewService creates the service and wires the simulation to the
// reconciler. publisher may be nil.
func NewGraphViewService(
	cfg *config.Config,
	store ports.GraphStore,
	publisher ports.EventPublisher,
	sim *layout.Simulation,
	reconciler *render.Reconciler,
	logger *zap.Logger,
) *GraphViewService {
	s := &GraphViewService{
		cfg:        cfg,
		store:      store,
		publisher:  publisher,
		model:      graph.NewModel(graph.Snapshot{}),
		sim:        sim,
		reconciler: reconciler,
		logger:     logger,
		now:        time.Now,
	}
	s.controller = interaction.NewController(cfg.Interaction, sim, s.model, s, logger.Named("interaction"))
	sim.OnTick(func(f *layout.Frame) { reconciler.Apply(f) })
	return s
}

// Model returns the graph model.
func (s *GraphViewService) Model() *graph.Model { return s.model }

// Simulation returns the layout simulation.
func (s *GraphViewService) Simulation() *layout.Simulation { return s.sim }

// Controller returns the interaction controller.
func (s *GraphViewService) Controller() *interaction.Controller { return s.controller }

// Reconciler returns the render reconciler.
func (s *GraphViewService) Reconciler() *render.Reconciler { return s.reconciler }

// Frame returns the latest layout frame.
func (s *GraphViewService) Frame() *layout.Frame { return s.sim.Frame() }

// Scene reconciles the latest frame and returns every retained shape.
func (s *GraphViewService) Scene() render.Scene {
	s.reconciler.Apply(s.sim.Frame())
	return s.reconciler.Scene()
}

// Loaded reports whether a snapshot was loaded at least once.
func (s *GraphViewService) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// ============================================================================
// FETCH AND LOAD
// ============================================================================

// Refresh fetches the graph and applies it. The first successful fetch
// initializes the layout; later ones keep the positions of surviving nodes.
// On a fetch failure the previous model and layout are kept and the
// FetchError is returned.
func (s *GraphViewService) Refresh(ctx context.Context) (RefreshResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.store.FetchGraph(ctx)
	if err != nil {
		ferr := errors.AsFetch(err, "Refresh")
		s.logger.Warn("Failed to fetch graph, keeping previous state", zap.Error(ferr))
		return RefreshResult{}, ferr
	}

	snap, issues, err := graph.Normalize(raw)
	if err != nil {
		s.logger.Warn("Rejected malformed graph payload", zap.Error(err))
		return RefreshResult{}, err
	}
	for _, issue := range issues {
		s.logger.Warn("Skipped inconsistent link",
			zap.String("link_id", issue.LinkID),
			zap.String("reason", issue.Err.Message),
			zap.String("details", issue.Err.Details),
		)
	}

	s.mu.Lock()
	if s.loaded {
		s.model.Replace(snap)
		s.sim.UpdateData(s.model.Snapshot())
		s.controller.Revalidate()
	} else {
		s.loadLocked(snap)
	}
	nodes, links := s.model.Len()
	s.mu.Unlock()

	s.logger.Info("Graph refreshed",
		zap.Int("nodes", nodes),
		zap.Int("links", links),
		zap.Int("issues", len(issues)),
	)
	return RefreshResult{Nodes: nodes, Links: links, Issues: issues}, nil
}

// Load replaces the diagram wholesale: the running simulation is stopped
// before the new one is initialized, never interleaved.
func (s *GraphViewService) Load(snap graph.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(snap)
}

func (s *GraphViewService) loadLocked(snap graph.Snapshot) {
	s.sim.Stop()
	s.model.Replace(snap)
	s.sim.Initialize(s.model.Snapshot())
	s.controller.Revalidate()
	s.loaded = true
}

// Stop halts the simulation. Hosts call it on teardown.
func (s *GraphViewService) Stop() {
	s.sim.Stop()
}

// ApplyConfig pushes reloadable settings into the running components.
func (s *GraphViewService) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return errors.Validation(errors.CodeInvalidConfig.String(), "Configuration is nil").Build()
	}
	s.sim.Configure(cfg.Layout)
	return nil
}

// NeighborsOf returns the direct neighbors of id.
func (s *GraphViewService) NeighborsOf(id string) ([]graph.Node, error) {
	if !s.model.HasNode(id) {
		return nil, errors.NotFound(errors.CodeNodeNotFound.String(), "Node does not exist").
			WithOperation("NeighborsOf").
			WithResource("node").
			WithDetails(id).
			Build()
	}
	return s.model.NeighborsOf(id), nil
}

// ============================================================================
// MUTATIONS
// ============================================================================

// AddNode creates a node and links it to each requested node. Every link is
// attempted independently; the model gains the node and only the links the
// store accepted. When some links fail the result is still returned together
// with a PARTIAL_LINK error listing each failure.
func (s *GraphViewService) AddNode(ctx context.Context, req AddNodeRequest) (AddNodeResult, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return AddNodeResult{}, errors.Validation(errors.CodeInvalidInput.String(), "Title is required").
			WithOperation("AddNode").
			Build()
	}
	linkType := req.Type
	if linkType == "" {
		linkType = graph.DefaultLinkType
	}
	if !linkType.Known() {
		return AddNodeResult{}, errors.Validation(errors.CodeInvalidLinkType.String(), "Unknown link type").
			WithOperation("AddNode").
			WithDetails(string(linkType)).
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	node, err := s.store.CreateNode(ctx, title, req.Description)
	if err != nil {
		merr := errors.AsMutation(err, "create node", "node")
		s.logger.Error("Failed to create node", zap.String("title", title), zap.Error(merr))
		return AddNodeResult{}, merr
	}
	if err := s.model.AddNode(node); err != nil {
		s.logger.Warn("Created node already in model", zap.String("node_id", node.ID), zap.Error(err))
	}

	targets := uniqueTargets(req.LinkTo, node.ID)
	refs := make(map[string]ports.LinkRef, len(targets))
	var refsMu sync.Mutex
	tasks := make([]concurrency.Task, 0, len(targets))
	for _, target := range targets {
		tasks = append(tasks, concurrency.Task{
			ID: target,
			Run: func(ctx context.Context) error {
				if !s.model.HasNode(target) {
					return errors.Invariant(errors.CodeNodeNotFound.String(), "Link target is not in the graph").
						WithDetails(target).
						Build()
				}
				ref, err := s.store.LinkNodes(ctx, ports.LinkRequest{
					FromID: node.ID,
					ToID:   target,
					Type:   linkType,
					Notes:  req.Notes,
				})
				if err != nil {
					return err
				}
				refsMu.Lock()
				refs[target] = ref
				refsMu.Unlock()
				return nil
			},
		})
	}
	failed := concurrency.FanOut(ctx, s.cfg.Sync.LinkConcurrency, tasks)

	result := AddNodeResult{Node: node, Links: []graph.Link{}}
	for _, target := range targets {
		if err, bad := failed.Get(target); bad {
			s.logger.Warn("Failed to link new node",
				zap.String("from_id", node.ID),
				zap.String("to_id", target),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, errors.LinkFailure{
				FromID: node.ID,
				ToID:   target,
				Reason: err.Error(),
				Err:    err,
			})
			continue
		}
		link := refs[target].Link()
		if link.Type == "" {
			link.Type = linkType
		}
		if added, err := s.model.AddLink(link); err != nil || !added {
			s.logger.Warn("Accepted link not added to model",
				zap.String("link_id", link.ID),
				zap.Bool("duplicate", err == nil),
				zap.Error(err),
			)
			continue
		}
		result.Links = append(result.Links, link)
	}

	s.sim.UpdateData(s.model.Snapshot())
	s.publishNodeCreated(ctx, node, result.Links)

	s.logger.Info("Node added",
		zap.String("node_id", node.ID),
		zap.Int("links", len(result.Links)),
		zap.Int("failed_links", len(result.Failures)),
	)

	if len(result.Failures) > 0 {
		return result, errors.PartialLink(errors.CodePartialLinks.String(),
			fmt.Sprintf("%d of %d links could not be created", len(result.Failures), len(targets))).
			WithOperation("AddNode").
			WithResource("link").
			WithLinkFailures(result.Failures).
			Build()
	}
	return result, nil
}

// DeleteNode deletes the node in the store and, only after the store
// confirmed, removes it and its links from the model.
func (s *GraphViewService) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.model.HasNode(id) {
		return errors.NotFound(errors.CodeNodeNotFound.String(), "Node does not exist").
			WithOperation("DeleteNode").
			WithResource("node").
			WithDetails(id).
			Build()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.DeleteNode(ctx, id); err != nil {
		merr := errors.AsMutation(err, "delete node", "node")
		s.logger.Error("Failed to delete node", zap.String("node_id", id), zap.Error(merr))
		return merr
	}

	removed, _ := s.model.RemoveNode(id)
	s.sim.UpdateData(s.model.Snapshot())
	s.controller.Revalidate()

	removedIDs := make([]string, 0, len(removed))
	for _, l := range removed {
		removedIDs = append(removedIDs, l.ID)
	}
	s.publish(ctx, events.NewNodeDeleted(id, removedIDs, s.now()))
	s.logger.Info("Node deleted", zap.String("node_id", id), zap.Int("removed_links", len(removed)))
	return nil
}

// DeleteLink deletes one link in the store and then in the model.
func (s *GraphViewService) DeleteLink(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.model.Link(id); !ok {
		return errors.NotFound(errors.CodeLinkNotFound.String(), "Link does not exist").
			WithOperation("DeleteLink").
			WithResource("link").
			WithDetails(id).
			Build()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.DeleteLink(ctx, id); err != nil {
		merr := errors.AsMutation(err, "delete link", "link")
		s.logger.Error("Failed to delete link", zap.String("link_id", id), zap.Error(merr))
		return merr
	}

	s.model.RemoveLink(id)
	s.sim.UpdateData(s.model.Snapshot())
	s.publish(ctx, events.NewLinkDeleted(id, s.now()))
	s.logger.Info("Link deleted", zap.String("link_id", id))
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *GraphViewService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Sync.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Sync.Timeout)
}

func (s *GraphViewService) publishNodeCreated(ctx context.Context, node graph.Node, links []graph.Link) {
	if s.publisher == nil {
		return
	}
	ts := s.now()
	batch := []events.DomainEvent{events.NewNodeCreated(node.ID, node.Title, ts)}
	for _, l := range links {
		batch = append(batch, events.NewNodesLinked(l.ID, l.SourceID, l.TargetID, string(l.Type), ts))
	}
	if err := s.publisher.PublishBatch(ctx, batch); err != nil {
		s.logger.Warn("Failed to publish events", zap.Int("count", len(batch)), zap.Error(err))
	}
}

func (s *GraphViewService) publish(ctx context.Context, event events.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", event.GetEventType()),
			zap.Error(err),
		)
	}
}

func uniqueTargets(ids []string, self string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == self {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
