package models

import "github.com/google/uuid"

// Coordinate is a stone position on the sheet, metres, origin at the hack
// centre line. Unthrown stones sit at the origin.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StoneLayout is an immutable per-team list of stone coordinates. A new
// layout row is created for every state transition, never mutated.
type StoneLayout struct {
	ID     uuid.UUID
	First  []Coordinate
	Second []Coordinate
}

// Stones returns the slice for a side. The returned slice aliases the
// layout; callers must copy before modifying.
func (l *StoneLayout) Stones(side Side) []Coordinate {
	if side == SideFirst {
		return l.First
	}
	return l.Second
}

// Clone deep-copies the layout under a fresh identity.
func (l *StoneLayout) Clone() *StoneLayout {
	c := &StoneLayout{
		ID:     uuid.New(),
		First:  make([]Coordinate, len(l.First)),
		Second: make([]Coordinate, len(l.Second)),
	}
	copy(c.First, l.First)
	copy(c.Second, l.Second)
	return c
}
