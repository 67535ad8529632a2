// Package layout implements the force-directed position solver.
//
// A Simulation owns every node position and velocity. Each tick it applies a
// link spring force, pairwise charge and a centering translation, integrates
// velocities, and publishes an immutable Frame. The cooling parameter alpha
// starts at 1 and decays geometrically toward alphaTarget; once it falls below
// alphaMin the loop stops until something reheats it (a drag, new data or a
// configuration change).
//
// All state is guarded by one mutex and a full tick runs under it, so pinning
// and data updates never interleave with force application. Frames are
// published through an atomic pointer for lock-free readers.
package layout

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"graphmind/internal/config"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
)

// Observer receives simulation telemetry.
type Observer interface {
	ObserveTick(alpha float64, nodes int, elapsed time.Duration)
	ObserveSettled()
}

type nopObserver struct{}

func (nopObserver) ObserveTick(float64, int, time.Duration) {}
func (nopObserver) ObserveSettled()                         {}

// Option configures a Simulation.
type Option func(*Simulation)

// WithScheduler replaces the default ticker scheduler.
func WithScheduler(s Scheduler) Option {
	return func(sim *Simulation) { sim.scheduler = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(sim *Simulation) { sim.logger = l }
}

// WithObserver sets the telemetry observer.
func WithObserver(o Observer) Option {
	return func(sim *Simulation) { sim.observer = o }
}

// Simulation is a force-directed layout of one graph.
type Simulation struct {
	mu sync.Mutex

	cfg       config.Layout
	logger    *zap.Logger
	observer  Observer
	scheduler Scheduler
	rng       *rand.Rand

	bodies  []*body
	byID    map[string]*body
	springs []spring

	alpha       float64
	alphaTarget float64

	// generation is bumped by Stop and every restart; a loop whose generation
	// is stale stops without touching state.
	generation uint64
	cancel     func()
	running    bool
	seq        uint64

	listenersMu sync.RWMutex
	listeners   []func(*Frame)

	frame atomic.Pointer[Frame]
}

// New creates an idle simulation with no nodes.
func New(cfg config.Layout, opts ...Option) *Simulation {
	s := &Simulation{
		cfg:      cfg,
		logger:   zap.NewNop(),
		observer: nopObserver{},
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		byID:     make(map[string]*body),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scheduler == nil {
		s.scheduler = NewTickerScheduler(cfg.TickInterval)
	}
	s.frame.Store(NewFrame(0, 0, nil, nil))
	return s
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Initialize discards all positions, places nodes deterministically around
// the center and starts ticking at full heat.
func (s *Simulation) Initialize(snap graph.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.rng = rand.New(rand.NewSource(s.cfg.Seed))
	s.bodies = s.bodies[:0]
	s.byID = make(map[string]*body, len(snap.Nodes))

	for _, n := range snap.Nodes {
		if _, dup := s.byID[n.ID]; dup || n.ID == "" {
			continue
		}
		b := &body{id: n.ID, label: n.Label()}
		b.x, b.y = phyllotaxis(len(s.bodies), s.cfg.InitialRadius, s.cfg.CenterX, s.cfg.CenterY)
		s.bodies = append(s.bodies, b)
		s.byID[n.ID] = b
	}
	s.setLinksLocked(snap.Links)

	s.alpha = 1
	s.alphaTarget = 0
	s.publishLocked()
	s.restartLocked()

	s.logger.Debug("Simulation initialized",
		zap.Int("nodes", len(s.bodies)),
		zap.Int("links", len(s.springs)),
	)
}

// UpdateData applies a new snapshot while keeping the positions of nodes
// that survive. New nodes are placed next to an already positioned neighbor
// when they have one. The simulation is reheated. A loop that is already
// running keeps going and sees the new bodies on its next tick, since ticks
// take the same lock; otherwise a new loop is scheduled.
func (s *Simulation) UpdateData(snap graph.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.byID
	s.bodies = make([]*body, 0, len(snap.Nodes))
	s.byID = make(map[string]*body, len(snap.Nodes))

	var fresh []*body
	for _, n := range snap.Nodes {
		if _, dup := s.byID[n.ID]; dup || n.ID == "" {
			continue
		}
		b, ok := old[n.ID]
		if !ok {
			b = &body{id: n.ID}
			fresh = append(fresh, b)
		}
		b.label = n.Label()
		s.bodies = append(s.bodies, b)
		s.byID[n.ID] = b
	}
	s.setLinksLocked(snap.Links)
	s.placeLocked(fresh, old)

	if len(fresh) > 0 {
		s.alpha = 1
	} else {
		s.alpha = max(s.alpha, s.cfg.ReheatTarget)
	}
	s.publishLocked()
	s.restartLocked()

	s.logger.Debug("Simulation data updated",
		zap.Int("nodes", len(s.bodies)),
		zap.Int("added", len(fresh)),
		zap.Int("links", len(s.springs)),
	)
}

// placeLocked seeds positions for new bodies.
func (s *Simulation) placeLocked(fresh []*body, positioned map[string]*body) {
	if len(fresh) == 0 {
		return
	}
	isFresh := make(map[*body]bool, len(fresh))
	for _, b := range fresh {
		isFresh[b] = true
	}

	for i, b := range fresh {
		var anchor *body
		for _, sp := range s.springs {
			var other *body
			switch b {
			case sp.source:
				other = sp.target
			case sp.target:
				other = sp.source
			default:
				continue
			}
			if !isFresh[other] && positioned[other.id] == other {
				anchor = other
				break
			}
		}
		if anchor != nil {
			angle := s.rng.Float64() * 2 * math.Pi
			b.x = anchor.x + s.cfg.InitialRadius*math.Cos(angle)
			b.y = anchor.y + s.cfg.InitialRadius*math.Sin(angle)
			continue
		}
		b.x, b.y = phyllotaxis(len(positioned)+i, s.cfg.InitialRadius, s.cfg.CenterX, s.cfg.CenterY)
	}
}

// setLinksLocked resolves links to bodies. Links with an unknown endpoint are
// dropped with a warning; self links are kept out of the spring set.
func (s *Simulation) setLinksLocked(links []graph.Link) {
	s.springs = s.springs[:0]
	for _, l := range links {
		src, okS := s.byID[l.SourceID]
		tgt, okT := s.byID[l.TargetID]
		if !okS || !okT {
			s.logger.Warn("Dropping link with unknown endpoint",
				zap.String("link_id", l.ID),
				zap.String("source", l.SourceID),
				zap.String("target", l.TargetID),
			)
			continue
		}
		if src == tgt {
			continue
		}
		s.springs = append(s.springs, spring{id: l.ID, source: src, target: tgt})
	}
	buildSprings(s.springs, s.cfg.LinkStrength)
}

// Stop halts ticking. A loop already in flight finishes its current tick
// without effect and never mutates state afterwards.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Simulation) stopLocked() {
	s.generation++
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Simulation) restartLocked() {
	if s.running {
		return
	}
	if len(s.bodies) == 0 {
		return
	}
	s.generation++
	gen := s.generation
	s.running = true
	s.cancel = s.scheduler.Schedule(func() bool { return s.loop(gen) })
}

// loop is the scheduled tick function for one generation.
func (s *Simulation) loop(gen uint64) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	more := s.tickLocked()
	if !more {
		s.running = false
		s.cancel = nil
	}
	frame := s.frame.Load()
	s.mu.Unlock()

	s.notify(frame)
	if !more {
		s.observer.ObserveSettled()
		s.logger.Debug("Simulation settled", zap.Uint64("seq", frame.Seq))
	}
	return more
}

// ============================================================================
// TICKING
// ============================================================================

// Step runs one tick synchronously and reports whether the simulation is
// still above alphaMin. With no nodes it does nothing and reports false.
func (s *Simulation) Step() bool {
	s.mu.Lock()
	if len(s.bodies) == 0 {
		s.mu.Unlock()
		return false
	}
	more := s.tickLocked()
	frame := s.frame.Load()
	s.mu.Unlock()

	s.notify(frame)
	return more
}

// Settle stops the background loop and ticks synchronously until the
// simulation cools below alphaMin or maxTicks have run. It returns the
// number of ticks executed.
func (s *Simulation) Settle(maxTicks int) int {
	s.Stop()
	ticks := 0
	for ticks < maxTicks {
		ticks++
		if !s.Step() {
			break
		}
	}
	return ticks
}

func (s *Simulation) tickLocked() bool {
	start := time.Now()

	s.alpha += (s.alphaTarget - s.alpha) * s.cfg.AlphaDecay

	iterations := s.cfg.LinkIterations
	if iterations < 1 {
		iterations = 1
	}
	applyLinks(s.springs, s.cfg.LinkDistance, s.alpha, iterations, s.rng)
	applyCharge(s.bodies, s.cfg.ChargeStrength, s.cfg.DistanceMin, s.cfg.DistanceMax, s.alpha, s.rng)
	applyCenter(s.bodies, s.cfg.CenterX, s.cfg.CenterY, s.cfg.CenterStrength)
	integrate(s.bodies, s.cfg.VelocityDecay)

	s.publishLocked()
	s.observer.ObserveTick(s.alpha, len(s.bodies), time.Since(start))
	return s.alpha >= s.cfg.AlphaMin
}

func (s *Simulation) publishLocked() {
	s.seq++
	nodes := make([]NodeState, len(s.bodies))
	for i, b := range s.bodies {
		nodes[i] = NodeState{
			ID:     b.id,
			Label:  b.label,
			X:      b.x,
			Y:      b.y,
			VX:     b.vx,
			VY:     b.vy,
			Pinned: b.pinned(),
		}
	}
	links := make([]LinkState, len(s.springs))
	for i, sp := range s.springs {
		links[i] = LinkState{ID: sp.id, SourceID: sp.source.id, TargetID: sp.target.id}
	}
	f := NewFrame(s.seq, s.alpha, nodes, links)
	f.Settled = s.alpha < s.cfg.AlphaMin
	s.frame.Store(f)
}

func (s *Simulation) notify(f *Frame) {
	s.listenersMu.RLock()
	listeners := append([]func(*Frame){}, s.listeners...)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(f)
	}
}

// OnTick registers fn to be called with the frame produced by every tick.
// Listeners run sequentially on the ticking goroutine after the state lock
// has been released.
func (s *Simulation) OnTick(fn func(*Frame)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// ============================================================================
// PINNING
// ============================================================================

// Pin fixes the node at (x, y). The node is moved immediately so the next
// frame reflects the pointer exactly. Pinning a node that was free reheats
// the simulation toward ReheatTarget and restarts ticking.
func (s *Simulation) Pin(id string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byID[id]
	if !ok {
		return unknownNode("Pin", id)
	}
	wasPinned := b.pinned()
	fx, fy := x, y
	b.fx, b.fy = &fx, &fy
	b.x, b.y = x, y
	b.vx, b.vy = 0, 0

	if !wasPinned {
		s.alphaTarget = s.cfg.ReheatTarget
	}
	s.publishLocked()
	s.restartLocked()
	return nil
}

// Unpin releases the node to the forces and lets the simulation cool.
func (s *Simulation) Unpin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byID[id]
	if !ok {
		return unknownNode("Unpin", id)
	}
	b.fx, b.fy = nil, nil
	s.alphaTarget = 0
	s.publishLocked()
	return nil
}

func unknownNode(op, id string) error {
	return errors.NotFound(errors.CodeNodeNotFound.String(), "Node is not part of the layout").
		WithOperation(op).
		WithResource("node").
		WithDetails(id).
		Build()
}

// ============================================================================
// CONFIGURATION AND INSPECTION
// ============================================================================

// Configure applies new force parameters and reheats the layout.
func (s *Simulation) Configure(cfg config.Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	buildSprings(s.springs, cfg.LinkStrength)
	s.alpha = max(s.alpha, cfg.ReheatTarget)
	s.restartLocked()

	s.logger.Info("Layout configuration applied",
		zap.Float64("link_distance", cfg.LinkDistance),
		zap.Float64("charge_strength", cfg.ChargeStrength),
	)
}

// Frame returns the most recently published frame. It never returns nil.
func (s *Simulation) Frame() *Frame {
	return s.frame.Load()
}

// Alpha returns the current alpha.
func (s *Simulation) Alpha() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alpha
}

// AlphaTarget returns the current alpha target.
func (s *Simulation) AlphaTarget() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alphaTarget
}

// Running reports whether a tick loop is scheduled.
func (s *Simulation) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Pinned reports whether the node is currently pinned.
func (s *Simulation) Pinned(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	return ok && b.pinned()
}
