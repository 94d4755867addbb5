package core

import (
	"context"

	"github.com/signalsfoundry/railyard-simulator/internal/logging"
)

// SwitchChange records a switch assignment made during arbitration.
type SwitchChange struct {
	Junction Ident
	State    SwitchPair
	Train    Ident
}

// SignalChange records a signal assignment made during arbitration.
type SignalChange struct {
	Signal Ident
	Aspect Aspect
	Train  Ident
}

// Arbitrator assigns switch and signal state for the trains still under way,
// processed by the scheduler in ascending ident order. Resources claimed by
// an earlier (lower ident) train within a step are never reassigned by a
// later one; the loser simply runs a partially set route and retries next
// step.
type Arbitrator struct {
	layout *Layout
	log    logging.Logger
}

func NewArbitrator(layout *Layout, log logging.Logger) *Arbitrator {
	if log == nil {
		log = logging.Noop()
	}
	return &Arbitrator{layout: layout, log: log}
}

// routeJunctions reconstructs the train's full ordered junction route: the
// junction behind it (when placed), its facing junction, then the walk along
// its reserved tracks to the destination. The walk never backtracks and
// prefers the lowest-ident continuation, mirroring the router's enumeration
// order. A partially reserved route yields a partial walk.
func (a *Arbitrator) routeJunctions(tr *Train) []Ident {
	var route []Ident
	prev := NoIdent
	if behind, ok := a.layout.behindOf(tr); ok {
		route = append(route, behind)
		prev = behind
	}
	route = append(route, tr.facing)

	cur := tr.facing
	for cur != tr.dest {
		next := NoIdent
		for _, n := range a.layout.Neighbors(cur) {
			if n == prev {
				continue
			}
			if t := a.layout.TrackBetween(cur, n); t != nil && t.ReservedBy(tr) {
				next = n
				break
			}
		}
		if next == NoIdent {
			break
		}
		route = append(route, next)
		prev, cur = cur, next
	}
	return route
}

// AssignSwitches points every unclaimed interior fork on the train's route
// from its predecessor to its successor, claiming it for the rest of the
// step. The first and last junctions of the route are never touched.
func (a *Arbitrator) AssignSwitches(ctx context.Context, tr *Train, claimed map[Ident]bool) ([]SwitchChange, error) {
	route := a.routeJunctions(tr)
	var changes []SwitchChange
	for i := 1; i+1 < len(route); i++ {
		j := a.layout.Junction(route[i])
		if j == nil || !j.Fork() {
			continue
		}
		if claimed[j.id] {
			a.log.Debug(ctx, "switch already claimed this step",
				logging.Any("junction", j.id),
				logging.Any("train", tr.id))
			continue
		}
		if err := j.SetSwitchState(route[i-1], route[i+1]); err != nil {
			return nil, err
		}
		claimed[j.id] = true
		changes = append(changes, SwitchChange{
			Junction: j.id,
			State:    SwitchPair{A: route[i-1], B: route[i+1]},
			Train:    tr.id,
		})
	}
	return changes, nil
}

// AssignSignals sets every unclaimed signal attached to a junction on the
// train's route: red by default, green only when the signal sits on one of
// the route's tracks and guards a junction other than the one immediately
// behind the train. Every signal touched is claimed, so later trains cannot
// flip it back this step.
func (a *Arbitrator) AssignSignals(ctx context.Context, tr *Train, claimed map[Ident]bool) []SignalChange {
	route := a.routeJunctions(tr)
	onRoute := make(map[Ident]bool, len(route))
	for _, j := range route {
		onRoute[j] = true
	}
	routeTracks := make(map[Ident]bool, len(route))
	for i := 0; i+1 < len(route); i++ {
		if t := a.layout.TrackBetween(route[i], route[i+1]); t != nil {
			routeTracks[t.ID()] = true
		}
	}
	behind, hasBehind := a.layout.behindOf(tr)

	var changes []SignalChange
	for _, t := range a.layout.Tracks() {
		for _, s := range t.Signals() {
			if !onRoute[s.Junction()] || claimed[s.ID()] {
				continue
			}
			aspect := AspectRed
			if routeTracks[t.ID()] && !(hasBehind && s.Junction() == behind) {
				aspect = AspectGreen
			}
			s.SetAspect(aspect)
			claimed[s.ID()] = true
			changes = append(changes, SignalChange{Signal: s.ID(), Aspect: aspect, Train: tr.id})
		}
	}
	return changes
}
