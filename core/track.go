package core

import (
	"fmt"
	"sort"
)

// Track is an undirected edge between two junctions. It carries at most one
// occupying train (the only enforced exclusion in the system), any number of
// attached signals, and an advisory reservation set of trains whose planned
// route passes through it.
type Track struct {
	id       Ident
	a, b     Ident
	occupant *Train
	signals  []*Signal
	routed   map[Ident]*Train
}

func (t *Track) ID() Ident { return t.id }

// Ends returns both endpoint junction idents, lower ident first.
func (t *Track) Ends() (Ident, Ident) { return t.a, t.b }

// HasEnd reports whether j is one of the track's endpoints.
func (t *Track) HasEnd(j Ident) bool { return t.a == j || t.b == j }

// OtherEnd returns the endpoint opposite j. It fails when j is not an
// endpoint of the track.
func (t *Track) OtherEnd(j Ident) (Ident, error) {
	switch j {
	case t.a:
		return t.b, nil
	case t.b:
		return t.a, nil
	default:
		return NoIdent, fmt.Errorf("track %s: junction %s is not an endpoint: %w", t.id, j, ErrNoEdge)
	}
}

// Occupant returns the train currently on the track, or nil.
func (t *Track) Occupant() *Train { return t.occupant }

// Signals returns the attached signals in attachment order.
func (t *Track) Signals() []*Signal {
	out := make([]*Signal, len(t.signals))
	copy(out, t.signals)
	return out
}

// SignalAt returns the signal attached at junction j, or nil if the track
// carries none there.
func (t *Track) SignalAt(j Ident) *Signal {
	for _, s := range t.signals {
		if s.junction == j {
			return s
		}
	}
	return nil
}

// Reserve marks the track as part of tr's planned route. Reservations are
// advisory: several trains may hold one on the same track at once.
func (t *Track) Reserve(tr *Train) {
	if t.routed == nil {
		t.routed = make(map[Ident]*Train)
	}
	t.routed[tr.id] = tr
}

// Unreserve drops tr's reservation, if any.
func (t *Track) Unreserve(tr *Train) {
	delete(t.routed, tr.id)
}

// ReservedBy reports whether tr currently holds a reservation on the track.
func (t *Track) ReservedBy(tr *Train) bool {
	_, ok := t.routed[tr.id]
	return ok
}

// RoutedTrains returns the reserving trains in ascending ident order.
func (t *Track) RoutedTrains() []*Train {
	out := make([]*Train, 0, len(t.routed))
	for _, tr := range t.routed {
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
