package core

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrSwitchUnset      = errors.New("switch state never set")
	ErrNotNeighbor      = errors.New("junction is not a neighbor")
	ErrNoEdge           = errors.New("no track between junctions")
	ErrIsolatedJunction = errors.New("junction has no neighbors")
	ErrDuplicateEdge    = errors.New("track already exists")
	ErrUnknownJunction  = errors.New("junction not found")
	ErrUnknownTrack     = errors.New("track not found")
	ErrUnknownTrain     = errors.New("train not found")
	ErrRouteNotFound    = errors.New("no usable route to destination")
	ErrTrackOccupied    = errors.New("track already occupied")
	ErrNotOnTrack       = errors.New("train is not on the expected track")
)

type junctionPair struct {
	lo, hi Ident
}

func pairKey(a, b Ident) junctionPair {
	if a > b {
		a, b = b, a
	}
	return junctionPair{lo: a, hi: b}
}

// Layout is the static track network plus every entity living on it. It is
// an arena addressed by ident: junctions, tracks, trains, and signals are
// created through the layout, which owns the ident allocator, the adjacency
// index, and the placement of trains on tracks.
//
// Topology is fixed once built. The only state that changes afterwards is
// each junction's switch pair, signal aspects, track occupancy, and the
// advisory reservation sets, all driven by the Simulation.
type Layout struct {
	alloc IdentAllocator

	junctions map[Ident]*Junction
	tracks    map[Ident]*Track
	trains    map[Ident]*Train
	signals   map[Ident]*Signal

	trackByPair map[junctionPair]*Track
	placement   map[Ident]*Track // train ident -> occupied track
}

// NewLayout creates an empty layout with a fresh ident allocator.
func NewLayout() *Layout {
	return &Layout{
		junctions:   make(map[Ident]*Junction),
		tracks:      make(map[Ident]*Track),
		trains:      make(map[Ident]*Train),
		signals:     make(map[Ident]*Signal),
		trackByPair: make(map[junctionPair]*Track),
		placement:   make(map[Ident]*Track),
	}
}

//
// ---------- Construction ----------
//

// AddJunction creates a junction with a freshly allocated ident.
func (l *Layout) AddJunction() *Junction {
	j := &Junction{id: l.alloc.Next()}
	l.junctions[j.id] = j
	return j
}

// addJunctionWithID creates (or returns) a junction with a persisted ident.
// Used by the scenario loader, which takes idents verbatim from the document.
func (l *Layout) addJunctionWithID(id Ident) *Junction {
	if j, ok := l.junctions[id]; ok {
		return j
	}
	j := &Junction{id: id}
	l.junctions[id] = j
	l.alloc.Observe(id)
	return j
}

// Connect creates the track between junctions a and b. Endpoints must exist,
// differ, and not already be connected.
func (l *Layout) Connect(a, b Ident) (*Track, error) {
	return l.connectWithID(l.alloc.Next(), a, b)
}

func (l *Layout) connectWithID(id Ident, a, b Ident) (*Track, error) {
	if a == b {
		return nil, fmt.Errorf("connect %s to itself: %w", a, ErrDuplicateEdge)
	}
	ja, ok := l.junctions[a]
	if !ok {
		return nil, fmt.Errorf("connect %s: %w", a, ErrUnknownJunction)
	}
	jb, ok := l.junctions[b]
	if !ok {
		return nil, fmt.Errorf("connect %s: %w", b, ErrUnknownJunction)
	}
	key := pairKey(a, b)
	if _, exists := l.trackByPair[key]; exists {
		return nil, fmt.Errorf("connect %s-%s: %w", a, b, ErrDuplicateEdge)
	}
	if _, exists := l.tracks[id]; exists {
		return nil, fmt.Errorf("track %s: ident already in use", id)
	}
	t := &Track{id: id, a: key.lo, b: key.hi}
	l.tracks[id] = t
	l.trackByPair[key] = t
	ja.addNeighbor(b)
	jb.addNeighbor(a)
	l.alloc.Observe(id)
	return t, nil
}

// AddSignal attaches a signal to trackID at junction j, which must be one of
// the track's endpoints.
func (l *Layout) AddSignal(trackID, j Ident) (*Signal, error) {
	return l.addSignalWithID(l.alloc.Next(), trackID, j)
}

func (l *Layout) addSignalWithID(id, trackID, j Ident) (*Signal, error) {
	t, ok := l.tracks[trackID]
	if !ok {
		return nil, fmt.Errorf("signal on track %s: %w", trackID, ErrUnknownTrack)
	}
	if !t.HasEnd(j) {
		return nil, fmt.Errorf("signal at %s on track %s: %w", j, trackID, ErrNoEdge)
	}
	s := &Signal{id: id, junction: j, aspect: AspectRed}
	l.signals[id] = s
	t.signals = append(t.signals, s)
	l.alloc.Observe(id)
	return s, nil
}

// AddTrain creates a train standing (unplaced) at the facing junction.
func (l *Layout) AddTrain(facing, dest Ident) (*Train, error) {
	return l.addTrainWithID(l.alloc.Next(), facing, dest)
}

func (l *Layout) addTrainWithID(id, facing, dest Ident) (*Train, error) {
	if _, ok := l.junctions[facing]; !ok {
		return nil, fmt.Errorf("train facing %s: %w", facing, ErrUnknownJunction)
	}
	if _, ok := l.junctions[dest]; !ok {
		return nil, fmt.Errorf("train destination %s: %w", dest, ErrUnknownJunction)
	}
	t := &Train{id: id, facing: facing, dest: dest}
	l.trains[id] = t
	l.alloc.Observe(id)
	return t, nil
}

// PlaceTrain puts an existing train onto a track. The train's facing
// junction must be an endpoint of the track, and the track must be free.
func (l *Layout) PlaceTrain(trainID, trackID Ident) error {
	tr, ok := l.trains[trainID]
	if !ok {
		return fmt.Errorf("place train %s: %w", trainID, ErrUnknownTrain)
	}
	t, ok := l.tracks[trackID]
	if !ok {
		return fmt.Errorf("place train %s on track %s: %w", trainID, trackID, ErrUnknownTrack)
	}
	if !t.HasEnd(tr.facing) {
		return fmt.Errorf("place train %s: facing %s is not an endpoint of track %s: %w",
			trainID, tr.facing, trackID, ErrNoEdge)
	}
	if t.occupant != nil && t.occupant != tr {
		return fmt.Errorf("place train %s on track %s: %w", trainID, trackID, ErrTrackOccupied)
	}
	if prev := l.placement[trainID]; prev != nil && prev != t {
		prev.occupant = nil
	}
	t.occupant = tr
	l.placement[trainID] = t
	return nil
}

//
// ---------- Queries ----------
//

// Junction returns the junction with the given ident, or nil.
func (l *Layout) Junction(id Ident) *Junction { return l.junctions[id] }

// Track returns the track with the given ident, or nil.
func (l *Layout) Track(id Ident) *Track { return l.tracks[id] }

// Train returns the train with the given ident, or nil.
func (l *Layout) Train(id Ident) *Train { return l.trains[id] }

// Signal returns the signal with the given ident, or nil.
func (l *Layout) Signal(id Ident) *Signal { return l.signals[id] }

// TrackBetween returns the track connecting a and b, or nil.
func (l *Layout) TrackBetween(a, b Ident) *Track { return l.trackByPair[pairKey(a, b)] }

// TrackOf returns the track the train occupies, or nil while it is unplaced.
func (l *Layout) TrackOf(tr *Train) *Track { return l.placement[tr.id] }

// Neighbors returns the junctions adjacent to j, ascending by ident.
func (l *Layout) Neighbors(j Ident) []Ident {
	jn, ok := l.junctions[j]
	if !ok {
		return nil
	}
	return jn.Neighbors()
}

// Junctions returns every junction, ascending by ident.
func (l *Layout) Junctions() []*Junction {
	out := make([]*Junction, 0, len(l.junctions))
	for _, j := range l.junctions {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Tracks returns every track, ascending by ident.
func (l *Layout) Tracks() []*Track {
	out := make([]*Track, 0, len(l.tracks))
	for _, t := range l.tracks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Trains returns every train, ascending by ident.
func (l *Layout) Trains() []*Train {
	out := make([]*Train, 0, len(l.trains))
	for _, t := range l.trains {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Signals returns every signal, ascending by ident.
func (l *Layout) Signals() []*Signal {
	out := make([]*Signal, 0, len(l.signals))
	for _, s := range l.signals {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ReservedTrackCount returns the number of tracks with at least one advisory
// reservation.
func (l *Layout) ReservedTrackCount() int {
	n := 0
	for _, t := range l.tracks {
		if len(t.routed) > 0 {
			n++
		}
	}
	return n
}

//
// ---------- Movement primitives ----------
//

// moveTrain shifts tr one hop from src onto dst, facing the junction next.
// The occupancy handoff is the safety-critical part: dst must be free and tr
// must really be the occupant of src.
func (l *Layout) moveTrain(tr *Train, src, dst *Track, next Ident) error {
	if src.occupant != tr {
		return fmt.Errorf("move train %s off track %s: %w", tr.id, src.id, ErrNotOnTrack)
	}
	if dst.occupant != nil {
		return fmt.Errorf("move train %s onto track %s: %w", tr.id, dst.id, ErrTrackOccupied)
	}
	if !dst.HasEnd(next) {
		return fmt.Errorf("move train %s: %s is not an endpoint of track %s: %w",
			tr.id, next, dst.id, ErrNoEdge)
	}
	src.occupant = nil
	dst.occupant = tr
	l.placement[tr.id] = dst
	tr.facing = next
	return nil
}

// enterTrain places an unplaced train onto dst, facing next.
func (l *Layout) enterTrain(tr *Train, dst *Track, next Ident) error {
	if l.placement[tr.id] != nil {
		return fmt.Errorf("enter train %s: already placed: %w", tr.id, ErrNotOnTrack)
	}
	if dst.occupant != nil {
		return fmt.Errorf("enter train %s onto track %s: %w", tr.id, dst.id, ErrTrackOccupied)
	}
	if !dst.HasEnd(next) {
		return fmt.Errorf("enter train %s: %s is not an endpoint of track %s: %w",
			tr.id, next, dst.id, ErrNoEdge)
	}
	dst.occupant = tr
	l.placement[tr.id] = dst
	tr.facing = next
	return nil
}

// behindOf returns the junction immediately behind the train: the far
// endpoint of its current track. Unplaced trains have nothing behind them.
func (l *Layout) behindOf(tr *Train) (Ident, bool) {
	t := l.placement[tr.id]
	if t == nil {
		return NoIdent, false
	}
	other, err := t.OtherEnd(tr.facing)
	if err != nil {
		return NoIdent, false
	}
	return other, true
}

// clearReservations removes tr from every track's reservation set.
func (l *Layout) clearReservations(tr *Train) {
	for _, t := range l.tracks {
		t.Unreserve(tr)
	}
}
