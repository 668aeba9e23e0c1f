package models

import "github.com/google/uuid"

// Default skill used when a team opts into the default roster.
const (
	DefaultMaxVelocity    = 4.0
	DefaultVelocityStdDev = 0.1
	DefaultAngleStdDev    = 0.1
)

// Player is one thrower. Identity is de-duplicated by (name, team) so a
// reconnecting client re-sending its roster does not mint duplicates.
type Player struct {
	ID             uuid.UUID
	TeamID         uuid.UUID
	Name           string
	MaxVelocity    float64
	VelocityStdDev float64 // translational dispersion, m/s
	AngleStdDev    float64 // angular dispersion, radians
}

// PlayerConfig is the client-supplied skill sheet for one roster slot.
type PlayerConfig struct {
	Name           string  `json:"name"`
	MaxVelocity    float64 `json:"max_velocity"`
	VelocityStdDev float64 `json:"velocity_std_dev"`
	AngleStdDev    float64 `json:"angle_std_dev"`
}

func DefaultPlayerConfig(name string) PlayerConfig {
	return PlayerConfig{
		Name:           name,
		MaxVelocity:    DefaultMaxVelocity,
		VelocityStdDev: DefaultVelocityStdDev,
		AngleStdDev:    DefaultAngleStdDev,
	}
}
