package core

import "fmt"

// Ident is the process-wide identifier assigned to every simulation entity.
// Idents are plain integers so that traces stay readable and ordering is a
// natural tie-break: lower ident means higher priority everywhere in the
// simulation.
type Ident int64

// NoIdent marks the absence of an entity reference.
const NoIdent Ident = -1

func (id Ident) String() string { return fmt.Sprintf("#%d", int64(id)) }

// IdentAllocator hands out monotonically increasing idents. The allocator is
// owned by the Layout that created it; there is no package-level counter, so
// two layouts never interfere.
type IdentAllocator struct {
	next Ident
}

// Next returns the lowest ident not yet issued or observed.
func (a *IdentAllocator) Next() Ident {
	id := a.next
	a.next++
	return id
}

// Observe tells the allocator that id is in use, typically because it was
// read back from a persisted scenario. Subsequent Next calls return idents
// strictly greater than every observed one, so entities created after a load
// can never collide with persisted entities.
func (a *IdentAllocator) Observe(id Ident) {
	if id >= a.next {
		a.next = id + 1
	}
}
