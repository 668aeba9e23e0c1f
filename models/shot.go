package models

import (
	"github.com/google/uuid"
)

// Spin is the requested handle direction.
type Spin string

const (
	SpinClockwise        Spin = "cw"
	SpinCounterClockwise Spin = "ccw"
)

func (s Spin) Sign() int {
	if s == SpinCounterClockwise {
		return -1
	}
	return 1
}

// ShotParams is what the client asked for.
type ShotParams struct {
	Velocity float64 `json:"velocity"` // translational, m/s
	Angle    float64 `json:"angle"`    // radians from the centre line
	Spin     Spin    `json:"spin"`
}

// ShotRecord links a pre-shot state to the state it produced and keeps both
// the requested and the dispersion-adjusted parameters for audit/replay.
type ShotRecord struct {
	ID             uuid.UUID
	PlayerID       uuid.UUID
	TeamID         uuid.UUID
	PreStateID     uuid.UUID
	PostStateID    uuid.UUID
	Requested      ShotParams
	ActualVelocity float64
	ActualAngle    float64
	TrajectoryID   *uuid.UUID
}
