package models

import "github.com/google/uuid"

// Score holds per-end points for both teams: one slot per standard end plus
// a trailing aggregate slot shared by all extra ends.
type Score struct {
	ID     uuid.UUID
	First  []int
	Second []int
}

func NewScore(standardEndCount int) *Score {
	return &Score{
		ID:     uuid.New(),
		First:  make([]int, standardEndCount+1),
		Second: make([]int, standardEndCount+1),
	}
}

func (s *Score) Ends(side Side) []int {
	if side == SideFirst {
		return s.First
	}
	return s.Second
}

// Add records points for a side. Ends beyond the standard count collapse
// into the aggregate slot.
func (s *Score) Add(side Side, endNumber, points int) {
	slot := endNumber
	if slot >= len(s.First)-1 {
		slot = len(s.First) - 1
	}
	s.Ends(side)[slot] += points
}

// Total is the cumulative score of a side across all slots.
func (s *Score) Total(side Side) int {
	total := 0
	for _, p := range s.Ends(side) {
		total += p
	}
	return total
}
