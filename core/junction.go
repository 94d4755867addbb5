package core

import (
	"fmt"
	"sort"
)

// SwitchPair is the ordered pair of neighbor junctions a junction currently
// connects through. A == B marks a terminator (dead end): a train arriving
// there stops.
type SwitchPair struct {
	A Ident
	B Ident
}

// Terminator reports whether the pair names the same neighbor twice.
func (p SwitchPair) Terminator() bool { return p.A == p.B }

func (p SwitchPair) String() string { return fmt.Sprintf("(%s, %s)", p.A, p.B) }

// Junction is a node in the track network. Its neighbor list is fixed once
// the layout is built; the only mutable state is the switch pair, which the
// arbitrator steers between exactly two of the neighbors.
type Junction struct {
	id        Ident
	neighbors []Ident // ascending, maintained by Layout
	sw        *SwitchPair
}

func (j *Junction) ID() Ident { return j.id }

// Neighbors returns the connected junctions in ascending ident order.
func (j *Junction) Neighbors() []Ident {
	out := make([]Ident, len(j.neighbors))
	copy(out, j.neighbors)
	return out
}

// Degree returns the number of connected junctions.
func (j *Junction) Degree() int { return len(j.neighbors) }

// Fork reports whether the junction has three or more neighbors, i.e. its
// switch pair actually selects among alternatives.
func (j *Junction) Fork() bool { return len(j.neighbors) >= 3 }

// SwitchState returns the current switch pair. It fails with ErrSwitchUnset
// until the pair has been assigned at least once.
func (j *Junction) SwitchState() (SwitchPair, error) {
	if j.sw == nil {
		return SwitchPair{}, fmt.Errorf("junction %s: %w", j.id, ErrSwitchUnset)
	}
	return *j.sw, nil
}

// SetSwitchState points the junction at the pair (a, b). Both arguments must
// be neighbors; beyond that membership check the pair replaces any previous
// state unconditionally.
func (j *Junction) SetSwitchState(a, b Ident) error {
	if !j.isNeighbor(a) {
		return fmt.Errorf("junction %s: switch leg %s: %w", j.id, a, ErrNotNeighbor)
	}
	if !j.isNeighbor(b) {
		return fmt.Errorf("junction %s: switch leg %s: %w", j.id, b, ErrNotNeighbor)
	}
	j.sw = &SwitchPair{A: a, B: b}
	return nil
}

// defaultSwitchState assigns the setup-time switch pair: a terminator for a
// single neighbor, the two lowest-ident neighbors otherwise. A junction with
// no neighbors is a topology error.
func (j *Junction) defaultSwitchState() error {
	switch len(j.neighbors) {
	case 0:
		return fmt.Errorf("junction %s: %w", j.id, ErrIsolatedJunction)
	case 1:
		return j.SetSwitchState(j.neighbors[0], j.neighbors[0])
	default:
		return j.SetSwitchState(j.neighbors[0], j.neighbors[1])
	}
}

func (j *Junction) isNeighbor(id Ident) bool {
	i := sort.Search(len(j.neighbors), func(i int) bool { return j.neighbors[i] >= id })
	return i < len(j.neighbors) && j.neighbors[i] == id
}

func (j *Junction) addNeighbor(id Ident) {
	j.neighbors = append(j.neighbors, id)
	sort.Slice(j.neighbors, func(a, b int) bool { return j.neighbors[a] < j.neighbors[b] })
}
