package models

import "github.com/google/uuid"

// TrajectoryFrame is one sampled instant of stone motion during a shot.
type TrajectoryFrame struct {
	T      float64      `json:"t"` // seconds since release
	First  []Coordinate `json:"team0"`
	Second []Coordinate `json:"team1"`
}

// Stones returns the frame's slice for a side.
func (f *TrajectoryFrame) Stones(side Side) []Coordinate {
	if side == SideFirst {
		return f.First
	}
	return f.Second
}

// Trajectory is the sampled motion of every stone during one shot, kept for
// replay. Stored as a single JSONB document.
type Trajectory struct {
	ID     uuid.UUID
	Frames []TrajectoryFrame
}
