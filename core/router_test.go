package core

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// diamond builds junctions 0..3 with tracks 0-1, 0-2, 1-3, 2-3.
func diamond(t *testing.T) *Layout {
	t.Helper()
	l := NewLayout()
	for i := 0; i < 4; i++ {
		l.AddJunction()
	}
	for _, e := range [][2]Ident{{0, 1}, {0, 2}, {1, 3}, {2, 3}} {
		if _, err := l.Connect(e[0], e[1]); err != nil {
			t.Fatalf("connect %v: %v", e, err)
		}
	}
	return l
}

func TestShortestPathsLexicographic(t *testing.T) {
	l := diamond(t)
	r := NewRouter(l, nil)

	got := r.shortestPaths(0, 3)
	want := [][]Ident{{0, 1, 3}, {0, 2, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSimplePathsLexicographic(t *testing.T) {
	l := diamond(t)
	r := NewRouter(l, nil)

	got := r.simplePaths(1, 2)
	want := [][]Ident{{1, 0, 2}, {1, 3, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPlanRouteReservesShortestPath(t *testing.T) {
	l := diamond(t)
	tr, err := l.AddTrain(0, 3)
	if err != nil {
		t.Fatalf("add train: %v", err)
	}
	r := NewRouter(l, nil)

	if err := r.PlanRoute(context.Background(), tr); err != nil {
		t.Fatalf("plan: %v", err)
	}
	// The lexicographically first shortest path is 0-1-3.
	if !l.TrackBetween(0, 1).ReservedBy(tr) || !l.TrackBetween(1, 3).ReservedBy(tr) {
		t.Errorf("expected reservations along 0-1-3")
	}
	if l.TrackBetween(0, 2).ReservedBy(tr) {
		t.Errorf("unexpected reservation on the 0-2 branch")
	}
}

func TestPlanRouteSkipsPathThroughBehindJunction(t *testing.T) {
	// Triangle 0-1, 0-2, 1-2. The train sits on 0-1 facing 1 with
	// destination 0: the one-hop path 1-0 leads straight back through the
	// junction behind it, so the router must fall through to 1-2-0.
	l := NewLayout()
	for i := 0; i < 3; i++ {
		l.AddJunction()
	}
	for _, e := range [][2]Ident{{0, 1}, {0, 2}, {1, 2}} {
		if _, err := l.Connect(e[0], e[1]); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	tr, err := l.AddTrain(1, 0)
	if err != nil {
		t.Fatalf("add train: %v", err)
	}
	if err := l.PlaceTrain(tr.ID(), l.TrackBetween(0, 1).ID()); err != nil {
		t.Fatalf("place: %v", err)
	}

	r := NewRouter(l, nil)
	if err := r.PlanRoute(context.Background(), tr); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if l.TrackBetween(0, 1).ReservedBy(tr) {
		t.Errorf("route reverses through the junction behind the train")
	}
	if !l.TrackBetween(1, 2).ReservedBy(tr) || !l.TrackBetween(0, 2).ReservedBy(tr) {
		t.Errorf("expected the detour 1-2-0 to be reserved")
	}
}

func TestPlanRouteFailureKeepsOldReservations(t *testing.T) {
	l := NewLayout()
	for i := 0; i < 4; i++ {
		l.AddJunction()
	}
	// Two disconnected segments: 0-1 and 2-3.
	if _, err := l.Connect(0, 1); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := l.Connect(2, 3); err != nil {
		t.Fatalf("connect: %v", err)
	}
	tr, err := l.AddTrain(1, 3)
	if err != nil {
		t.Fatalf("add train: %v", err)
	}
	stale := l.TrackBetween(0, 1)
	stale.Reserve(tr)

	r := NewRouter(l, nil)
	err = r.PlanRoute(context.Background(), tr)
	if !errors.Is(err, ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}
	if !stale.ReservedBy(tr) {
		t.Errorf("failed planning must leave previous reservations in place")
	}
}

func TestPlanRouteArrivedClearsReservations(t *testing.T) {
	l := line(t, 3)
	tr, err := l.AddTrain(2, 2)
	if err != nil {
		t.Fatalf("add train: %v", err)
	}
	l.TrackBetween(1, 2).Reserve(tr)

	r := NewRouter(l, nil)
	if err := r.PlanRoute(context.Background(), tr); err != nil {
		t.Fatalf("plan for arrived train: %v", err)
	}
	if l.TrackBetween(1, 2).ReservedBy(tr) {
		t.Errorf("arrived train still holds a reservation")
	}
}

func TestPlanRouteRewritesReservations(t *testing.T) {
	l := diamond(t)
	tr, err := l.AddTrain(0, 3)
	if err != nil {
		t.Fatalf("add train: %v", err)
	}
	r := NewRouter(l, nil)
	if err := r.PlanRoute(context.Background(), tr); err != nil {
		t.Fatalf("plan: %v", err)
	}

	// After entering 0-1 the replanned route is 1-3 only; the entry track
	// must no longer be reserved.
	if err := l.enterTrain(tr, l.TrackBetween(0, 1), 1); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if err := r.PlanRoute(context.Background(), tr); err != nil {
		t.Fatalf("replan: %v", err)
	}
	if l.TrackBetween(0, 1).ReservedBy(tr) {
		t.Errorf("stale reservation on the track already occupied")
	}
	if !l.TrackBetween(1, 3).ReservedBy(tr) {
		t.Errorf("expected reservation on 1-3 after replan")
	}
}
