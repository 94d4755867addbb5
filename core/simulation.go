package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/railyard-simulator/internal/logging"
)

// Reasons a train was held in place for a step. Exposed so observers can
// label their counters consistently.
const (
	BlockTerminator      = "terminator"
	BlockSwitchUnaligned = "switch_unaligned"
	BlockRedSignal       = "red_signal"
	BlockOccupied        = "occupied"
)

// MetricsHook receives counters from the scheduler. The Simulation skips
// every call when no hook is attached.
type MetricsHook interface {
	StepAdvanced()
	TrainMoved()
	MoveBlocked(reason string)
	RoutePlanned(d time.Duration, err error)
	SetUnfinished(n int)
	SetReservedTracks(n int)
}

// Move records one train hop taken during a step. From is NoIdent when the
// train entered its first track.
type Move struct {
	Train  Ident
	From   Ident // track ident, NoIdent on first entry
	To     Ident // track ident
	Facing Ident // facing junction after the hop
}

// StepReport summarizes everything a single Advance call changed.
type StepReport struct {
	Step     int
	Moves    []Move
	Switches []SwitchChange
	Signals  []SignalChange
}

// Simulation owns the layout and drives the discrete step loop: move every
// permitted train one hop, replan the movers, then arbitrate switches and
// signals for the trains still under way. Execution is strictly
// single-writer and synchronous; observers read layout state between calls
// to Advance.
type Simulation struct {
	layout  *Layout
	router  *Router
	arb     *Arbitrator
	log     logging.Logger
	metrics MetricsHook

	step      int
	listeners []func(StepReport)
}

// NewSimulation wraps a built layout and performs one-time setup: every
// junction receives its default switch state (a junction with no neighbors
// fails construction) and every train its initial route. Route planning
// failures at setup are logged and left for later steps to retry.
func NewSimulation(ctx context.Context, layout *Layout, log logging.Logger) (*Simulation, error) {
	if layout == nil {
		return nil, fmt.Errorf("nil layout")
	}
	if log == nil {
		log = logging.Noop()
	}
	s := &Simulation{
		layout: layout,
		router: NewRouter(layout, log),
		arb:    NewArbitrator(layout, log),
		log:    log,
	}
	for _, j := range layout.Junctions() {
		if err := j.defaultSwitchState(); err != nil {
			return nil, err
		}
	}
	for _, tr := range layout.Trains() {
		if err := s.planRoute(ctx, tr); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetMetrics attaches a metrics hook. Pass nil to detach.
func (s *Simulation) SetMetrics(h MetricsHook) { s.metrics = h }

// RegisterStepListener adds a callback invoked after every completed step.
func (s *Simulation) RegisterStepListener(fn func(StepReport)) {
	s.listeners = append(s.listeners, fn)
}

// Layout exposes the topology and entity state for read-only observers.
func (s *Simulation) Layout() *Layout { return s.layout }

// Step returns the number of completed steps.
func (s *Simulation) Step() int { return s.step }

// Advance runs one simulation step. It returns false once every train faces
// its destination, without further state changes. Errors indicate a corrupt
// layout (a train off its recorded track, a switch pointing at a missing
// edge) and abort the run.
func (s *Simulation) Advance(ctx context.Context) (bool, error) {
	unfinished := s.unfinishedTrains()
	if len(unfinished) == 0 {
		return false, nil
	}

	report := StepReport{Step: s.step + 1}

	// Movement pass: every placed or routed train gets one hop attempt,
	// finished trains included. Occupancy is protective and never
	// overwritten; a blocked train simply stays put.
	var moved []*Train
	for _, tr := range s.layout.Trains() {
		mv, err := s.tryMove(ctx, tr)
		if err != nil {
			return false, err
		}
		if mv != nil {
			report.Moves = append(report.Moves, *mv)
			moved = append(moved, tr)
			if s.metrics != nil {
				s.metrics.TrainMoved()
			}
		}
	}

	// Movers see a different network now; their routes are recomputed
	// before arbitration.
	for _, tr := range moved {
		if err := s.planRoute(ctx, tr); err != nil {
			return false, err
		}
	}

	// Arbitration pass in priority order. Claims accumulate across the
	// loop so a later train never reassigns an earlier train's resources.
	claimedJunctions := make(map[Ident]bool)
	claimedSignals := make(map[Ident]bool)
	for _, tr := range unfinished {
		switches, err := s.arb.AssignSwitches(ctx, tr, claimedJunctions)
		if err != nil {
			return false, err
		}
		report.Switches = append(report.Switches, switches...)
		report.Signals = append(report.Signals, s.arb.AssignSignals(ctx, tr, claimedSignals)...)
	}

	s.step++
	if s.metrics != nil {
		s.metrics.StepAdvanced()
		s.metrics.SetUnfinished(len(s.unfinishedTrains()))
		s.metrics.SetReservedTracks(s.layout.ReservedTrackCount())
	}
	for _, fn := range s.listeners {
		fn(report)
	}
	return true, nil
}

func (s *Simulation) unfinishedTrains() []*Train {
	var out []*Train
	for _, tr := range s.layout.Trains() {
		if !tr.Arrived() {
			out = append(out, tr)
		}
	}
	return out
}

// planRoute wraps the router call with metrics and downgrades a missing
// route to a logged retry.
func (s *Simulation) planRoute(ctx context.Context, tr *Train) error {
	start := time.Now()
	err := s.router.PlanRoute(ctx, tr)
	if s.metrics != nil {
		s.metrics.RoutePlanned(time.Since(start), err)
	}
	if errors.Is(err, ErrRouteNotFound) {
		return nil
	}
	return err
}

// tryMove attempts one hop for tr and returns the Move taken, nil when the
// train stays put.
func (s *Simulation) tryMove(ctx context.Context, tr *Train) (*Move, error) {
	cur := s.layout.TrackOf(tr)
	if cur == nil {
		return s.tryEnter(ctx, tr)
	}

	facing := s.layout.Junction(tr.facing)
	if facing == nil {
		return nil, fmt.Errorf("train %s facing %s: %w", tr.id, tr.facing, ErrUnknownJunction)
	}
	sw, err := facing.SwitchState()
	if err != nil {
		return nil, err
	}
	if sw.Terminator() {
		return nil, nil
	}

	// The candidate next junction is whichever switch leg does not belong
	// to the current track. If the switch doesn't touch this track at all
	// it simply hasn't been steered toward us yet.
	var next Ident
	switch {
	case cur.HasEnd(sw.A) && !cur.HasEnd(sw.B):
		next = sw.B
	case cur.HasEnd(sw.B) && !cur.HasEnd(sw.A):
		next = sw.A
	default:
		s.blocked(ctx, tr, BlockSwitchUnaligned)
		return nil, nil
	}

	if sig := cur.SignalAt(tr.facing); sig != nil && sig.Aspect() == AspectRed {
		s.blocked(ctx, tr, BlockRedSignal)
		return nil, nil
	}

	target := s.layout.TrackBetween(tr.facing, next)
	if target == nil {
		return nil, fmt.Errorf("switch at %s points to %s: %w", tr.facing, next, ErrNoEdge)
	}
	if target.Occupant() != nil {
		s.log.Info(ctx, "target track occupied, holding train",
			logging.Any("train", tr.id),
			logging.Any("track", target.id),
			logging.Any("occupant", target.Occupant().id))
		s.blocked(ctx, tr, BlockOccupied)
		return nil, nil
	}

	from := cur.id
	if err := s.layout.moveTrain(tr, cur, target, next); err != nil {
		return nil, err
	}
	return &Move{Train: tr.id, From: from, To: target.id, Facing: next}, nil
}

// tryEnter lets a routed but unplaced train enter the first track of its
// route, provided the switch at its origin includes the first hop and the
// track is free.
func (s *Simulation) tryEnter(ctx context.Context, tr *Train) (*Move, error) {
	if tr.Arrived() {
		return nil, nil
	}
	route := s.arb.routeJunctions(tr)
	if len(route) < 2 {
		return nil, nil // unrouted; the router will retry
	}
	next := route[1]

	origin := s.layout.Junction(tr.facing)
	if origin == nil {
		return nil, fmt.Errorf("train %s facing %s: %w", tr.id, tr.facing, ErrUnknownJunction)
	}
	sw, err := origin.SwitchState()
	if err != nil {
		return nil, err
	}
	if sw.A != next && sw.B != next {
		s.blocked(ctx, tr, BlockSwitchUnaligned)
		return nil, nil
	}

	target := s.layout.TrackBetween(tr.facing, next)
	if target == nil {
		return nil, fmt.Errorf("route step %s-%s: %w", tr.facing, next, ErrNoEdge)
	}
	if target.Occupant() != nil {
		s.blocked(ctx, tr, BlockOccupied)
		return nil, nil
	}
	if err := s.layout.enterTrain(tr, target, next); err != nil {
		return nil, err
	}
	return &Move{Train: tr.id, From: NoIdent, To: target.id, Facing: next}, nil
}

func (s *Simulation) blocked(ctx context.Context, tr *Train, reason string) {
	s.log.Debug(ctx, "train held",
		logging.Any("train", tr.id),
		logging.String("reason", reason))
	if s.metrics != nil {
		s.metrics.MoveBlocked(reason)
	}
}
