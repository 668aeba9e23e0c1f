package simulator

import (
	"fmt"
	"sort"

	"github.com/icehouse-dev/curling-server/models"
)

// Request carries everything a physics backend needs to resolve one shot.
// StoneIndex addresses the stone being thrown inside the thrower's slice.
type Request struct {
	Layout     *models.StoneLayout
	Side       models.Side
	StoneIndex int
	ShotNumber int     // shots already delivered in the end, both teams
	Velocity   float64 // m/s at release
	Angle      float64 // radians from the centre line, positive toward +x
	SpinSign   int     // +1 clockwise, -1 counter-clockwise
	Variant    models.RuleVariant
}

// Simulator resolves a shot into the resulting stone layout and the sampled
// trajectory of the delivery. The returned layout is a fresh row; the input
// layout is never mutated.
type Simulator interface {
	Name() string
	Simulate(req Request) (*models.StoneLayout, *models.Trajectory, error)
}

var registry = map[string]Simulator{}

// Register makes a backend selectable by match configuration.
func Register(s Simulator) {
	registry[s.Name()] = s
}

// Get resolves a backend by name.
func Get(name string) (Simulator, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown simulator %q", name)
	}
	return s, nil
}

// Names lists the registered backends, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
