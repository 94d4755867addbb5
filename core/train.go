package core

// Train is an agent moving one hop per step toward its destination. Facing
// is the junction the train is currently approaching; while the train is
// placed on a track, Facing is always one of that track's endpoints. A train
// that has not yet entered a track stands at its facing junction.
type Train struct {
	id     Ident
	facing Ident
	dest   Ident
}

func (t *Train) ID() Ident     { return t.id }
func (t *Train) Facing() Ident { return t.facing }
func (t *Train) Dest() Ident   { return t.dest }

// Arrived reports whether the train faces its destination.
func (t *Train) Arrived() bool { return t.facing == t.dest }
