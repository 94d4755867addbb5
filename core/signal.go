package core

import "fmt"

// Aspect is the state of a block signal.
type Aspect int

const (
	// AspectRed blocks entry past the signal.
	AspectRed Aspect = iota
	// AspectGreen clears entry past the signal.
	AspectGreen
)

func (a Aspect) String() string {
	if a == AspectGreen {
		return "green"
	}
	return "red"
}

// ParseAspect maps the persisted spelling back to an Aspect.
func ParseAspect(s string) (Aspect, error) {
	switch s {
	case "green":
		return AspectGreen, nil
	case "red":
		return AspectRed, nil
	default:
		return AspectRed, fmt.Errorf("unknown signal aspect %q", s)
	}
}

// Signal is a boolean gate attached to one endpoint of a track. A train
// whose facing junction carries a red signal on its current track may not
// leave that track this step.
type Signal struct {
	id       Ident
	junction Ident // endpoint of the owning track
	aspect   Aspect
}

func (s *Signal) ID() Ident          { return s.id }
func (s *Signal) Junction() Ident    { return s.junction }
func (s *Signal) Aspect() Aspect     { return s.aspect }
func (s *Signal) SetAspect(a Aspect) { s.aspect = a }
