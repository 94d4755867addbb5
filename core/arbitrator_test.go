package core

import (
	"context"
	"reflect"
	"testing"
)

// forkLayout builds a hub at junction 2 with spokes 0, 1, 3, 4 and places
// two trains heading through the hub: train a from 0 toward 3, train b from
// 1 toward 4. Routes are planned so reservations are in place.
func forkLayout(t *testing.T) (*Layout, *Train, *Train) {
	t.Helper()
	l := NewLayout()
	for i := 0; i < 5; i++ {
		l.AddJunction()
	}
	for _, e := range [][2]Ident{{0, 2}, {1, 2}, {2, 3}, {2, 4}} {
		if _, err := l.Connect(e[0], e[1]); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	a, err := l.AddTrain(2, 3)
	if err != nil {
		t.Fatalf("add train a: %v", err)
	}
	b, err := l.AddTrain(2, 4)
	if err != nil {
		t.Fatalf("add train b: %v", err)
	}
	if err := l.PlaceTrain(a.ID(), l.TrackBetween(0, 2).ID()); err != nil {
		t.Fatalf("place a: %v", err)
	}
	if err := l.PlaceTrain(b.ID(), l.TrackBetween(1, 2).ID()); err != nil {
		t.Fatalf("place b: %v", err)
	}
	r := NewRouter(l, nil)
	for _, tr := range []*Train{a, b} {
		if err := r.PlanRoute(context.Background(), tr); err != nil {
			t.Fatalf("plan %s: %v", tr.ID(), err)
		}
	}
	return l, a, b
}

func TestRouteJunctionsReconstruction(t *testing.T) {
	l, a, _ := forkLayout(t)
	arb := NewArbitrator(l, nil)

	got := arb.routeJunctions(a)
	want := []Ident{0, 2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected route %v, got %v", want, got)
	}
}

func TestRouteJunctionsPartialWhenUnreserved(t *testing.T) {
	l, a, _ := forkLayout(t)
	arb := NewArbitrator(l, nil)

	// Without reservations the walk stops at the facing junction.
	l.clearReservations(a)
	got := arb.routeJunctions(a)
	want := []Ident{0, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected partial route %v, got %v", want, got)
	}
}

func TestAssignSwitchesSetsInteriorFork(t *testing.T) {
	l, a, _ := forkLayout(t)
	arb := NewArbitrator(l, nil)

	claimed := map[Ident]bool{}
	changes, err := arb.AssignSwitches(context.Background(), a, claimed)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 switch change, got %d", len(changes))
	}
	want := SwitchChange{Junction: 2, State: SwitchPair{A: 0, B: 3}, Train: a.ID()}
	if changes[0] != want {
		t.Errorf("expected %+v, got %+v", want, changes[0])
	}
	sw, err := l.Junction(2).SwitchState()
	if err != nil {
		t.Fatalf("switch state: %v", err)
	}
	if sw != (SwitchPair{A: 0, B: 3}) {
		t.Errorf("expected hub switch (0, 3), got %s", sw)
	}
	if !claimed[2] {
		t.Errorf("hub junction was not claimed")
	}
}

func TestAssignSwitchesHonorsEarlierClaim(t *testing.T) {
	l, a, b := forkLayout(t)
	arb := NewArbitrator(l, nil)
	claimed := map[Ident]bool{}

	if _, err := arb.AssignSwitches(context.Background(), a, claimed); err != nil {
		t.Fatalf("assign a: %v", err)
	}
	changes, err := arb.AssignSwitches(context.Background(), b, claimed)
	if err != nil {
		t.Fatalf("assign b: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("expected no changes for the lower-priority train, got %+v", changes)
	}
	sw, _ := l.Junction(2).SwitchState()
	if sw != (SwitchPair{A: 0, B: 3}) {
		t.Errorf("earlier claim was overridden: %s", sw)
	}
}

func TestAssignSignalsGreenOnRouteRedElsewhere(t *testing.T) {
	l, a, _ := forkLayout(t)

	// Three signals around the hub: one the train is about to pass, one on
	// its current track guarding the junction behind it, and one on a
	// branch off its route.
	ahead, err := l.AddSignal(l.TrackBetween(0, 2).ID(), 2)
	if err != nil {
		t.Fatalf("add signal: %v", err)
	}
	behind, err := l.AddSignal(l.TrackBetween(0, 2).ID(), 0)
	if err != nil {
		t.Fatalf("add signal: %v", err)
	}
	branch, err := l.AddSignal(l.TrackBetween(2, 4).ID(), 2)
	if err != nil {
		t.Fatalf("add signal: %v", err)
	}

	arb := NewArbitrator(l, nil)
	claimed := map[Ident]bool{}
	changes := arb.AssignSignals(context.Background(), a, claimed)
	if len(changes) != 3 {
		t.Fatalf("expected 3 signal changes, got %d", len(changes))
	}

	if ahead.Aspect() != AspectGreen {
		t.Errorf("signal on the route track ahead should be green, got %s", ahead.Aspect())
	}
	if behind.Aspect() != AspectRed {
		t.Errorf("signal guarding the junction behind the train should stay red")
	}
	if branch.Aspect() != AspectRed {
		t.Errorf("signal on an off-route branch should be red")
	}
	for _, sig := range []*Signal{ahead, behind, branch} {
		if !claimed[sig.ID()] {
			t.Errorf("signal %s was not claimed", sig.ID())
		}
	}
}

func TestAssignSignalsSkipsClaimed(t *testing.T) {
	l, a, b := forkLayout(t)
	sig, err := l.AddSignal(l.TrackBetween(2, 3).ID(), 2)
	if err != nil {
		t.Fatalf("add signal: %v", err)
	}

	arb := NewArbitrator(l, nil)
	claimed := map[Ident]bool{}
	arb.AssignSignals(context.Background(), a, claimed)
	if sig.Aspect() != AspectGreen {
		t.Fatalf("expected a's route signal to be green, got %s", sig.Aspect())
	}

	// b's route passes the same hub; the signal sits off b's route and
	// would go red, but a already claimed it this step.
	changes := arb.AssignSignals(context.Background(), b, claimed)
	for _, c := range changes {
		if c.Signal == sig.ID() {
			t.Fatalf("claimed signal was reassigned by the later train")
		}
	}
	if sig.Aspect() != AspectGreen {
		t.Errorf("claimed signal flipped to %s", sig.Aspect())
	}
}
