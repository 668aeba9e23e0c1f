package simulator

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/models"
	"github.com/icehouse-dev/curling-server/rules"
)

// Sheet geometry and motion constants for the built-in backend. Distances
// are metres from the release point on the centre line.
const (
	frictionDecel = 0.196 // m/s^2
	curlRate      = 0.03  // lateral drift per metre travelled
	frameInterval = 0.1   // seconds between trajectory samples

	sidelineX = 2.2325
	backLineY = rules.TeeLineY + rules.HouseRadius + rules.StoneRadius
	hogLineY  = rules.TeeLineY - 6.401

	// Fraction of the thrower's leftover travel transferred on contact.
	collisionTransfer = 0.8
)

// Linear is a deterministic closed-form backend: constant friction
// deceleration, constant curl, single-collision momentum transfer. It
// exists so matches can run without an external physics engine.
type Linear struct{}

func NewLinear() *Linear { return &Linear{} }

func (*Linear) Name() string { return "linear" }

func (s *Linear) Simulate(req Request) (*models.StoneLayout, *models.Trajectory, error) {
	stones := req.Layout.Stones(req.Side)
	if req.StoneIndex < 0 || req.StoneIndex >= len(stones) {
		return nil, nil, fmt.Errorf("stone index %d out of range for %d stones", req.StoneIndex, len(stones))
	}
	if req.Velocity < 0 {
		return nil, nil, fmt.Errorf("negative release velocity %v", req.Velocity)
	}

	layout := req.Layout.Clone()

	dirX := math.Sin(req.Angle)
	dirY := math.Cos(req.Angle)
	travel := req.Velocity * req.Velocity / (2 * frictionDecel)

	rest, hit := s.resolve(layout, req, dirX, dirY, travel)

	thrown := layout.Stones(req.Side)
	thrown[req.StoneIndex] = rest
	if outOfBounds(rest) {
		thrown[req.StoneIndex] = models.Coordinate{}
	}
	s.applyGuardRule(req, layout, hit)

	trajectory := s.sampleTrajectory(req, layout, dirX, dirY, travel)
	return layout, trajectory, nil
}

type contact struct {
	side     models.Side
	index    int
	before   models.Coordinate
	happened bool
}

// resolve walks the straight delivery path, stops the thrown stone at the
// first contact and pushes the struck stone ahead by the leftover travel.
func (s *Linear) resolve(layout *models.StoneLayout, req Request, dirX, dirY, travel float64) (models.Coordinate, contact) {
	type hit struct {
		at    float64
		side  models.Side
		index int
	}
	var first *hit

	for _, side := range []models.Side{models.SideFirst, models.SideSecond} {
		for i, c := range layout.Stones(side) {
			if side == req.Side && i == req.StoneIndex {
				continue
			}
			if c.X == 0 && c.Y == 0 {
				continue
			}
			// Distance along the path of the closest approach to stone c.
			along := c.X*dirX + c.Y*dirY
			if along <= 0 || along > travel {
				continue
			}
			perp := math.Abs(c.X*dirY - c.Y*dirX)
			if perp >= 2*rules.StoneRadius {
				continue
			}
			at := along - math.Sqrt(4*rules.StoneRadius*rules.StoneRadius-perp*perp)
			if first == nil || at < first.at {
				first = &hit{at: at, side: side, index: i}
			}
		}
	}

	curl := func(d float64) float64 { return float64(req.SpinSign) * curlRate * d }

	if first == nil {
		return models.Coordinate{
			X: travel*dirX + curl(travel),
			Y: travel * dirY,
		}, contact{}
	}

	struck := layout.Stones(first.side)
	before := struck[first.index]
	leftover := (travel - first.at) * collisionTransfer
	struck[first.index] = models.Coordinate{
		X: before.X + leftover*dirX,
		Y: before.Y + leftover*dirY,
	}
	if outOfBounds(struck[first.index]) {
		struck[first.index] = models.Coordinate{}
	}

	rest := models.Coordinate{
		X: first.at*dirX + curl(first.at),
		Y: first.at * dirY,
	}
	return rest, contact{side: first.side, index: first.index, before: before, happened: true}
}

// applyGuardRule restores a protected guard that a takeout attempt removed
// and forfeits the thrown stone instead.
func (s *Linear) applyGuardRule(req Request, layout *models.StoneLayout, hit contact) {
	if !hit.happened || hit.side == req.Side {
		return
	}
	if !guardProtectionActive(req.Variant, req.ShotNumber) {
		return
	}
	if !inFreeGuardZone(hit.before) {
		return
	}
	struck := layout.Stones(hit.side)
	if struck[hit.index].X != 0 || struck[hit.index].Y != 0 {
		return // stone stayed in play
	}
	struck[hit.index] = hit.before
	layout.Stones(req.Side)[req.StoneIndex] = models.Coordinate{}
}

func guardProtectionActive(variant models.RuleVariant, shotNumber int) bool {
	switch variant {
	case models.RuleFiveRock, models.RuleNoTick:
		return shotNumber < 5
	case models.RuleModifiedFGZ:
		return shotNumber < 4
	}
	return false
}

// inFreeGuardZone is the area between the hog line and the tee line,
// outside the house.
func inFreeGuardZone(c models.Coordinate) bool {
	if c.Y <= hogLineY || c.Y >= rules.TeeLineY {
		return false
	}
	return rules.Distance(c) > rules.ScoreDistance
}

func outOfBounds(c models.Coordinate) bool {
	return math.Abs(c.X) > sidelineX || c.Y > backLineY
}

// sampleTrajectory replays the delivery kinematics at a fixed interval.
// Stationary stones are held at their post-shot positions; the replay is a
// visual aid, not a second simulation.
func (s *Linear) sampleTrajectory(req Request, final *models.StoneLayout, dirX, dirY, travel float64) *models.Trajectory {
	stopTime := req.Velocity / frictionDecel
	rest := final.Stones(req.Side)[req.StoneIndex]

	trajectory := &models.Trajectory{ID: uuid.New()}
	for t := 0.0; t < stopTime; t += frameInterval {
		d := req.Velocity*t - frictionDecel*t*t/2
		if d > travel {
			d = travel
		}
		frame := models.TrajectoryFrame{
			T:      t,
			First:  cloneStones(final.First),
			Second: cloneStones(final.Second),
		}
		moving := models.Coordinate{
			X: d*dirX + float64(req.SpinSign)*curlRate*d,
			Y: d * dirY,
		}
		frame.Stones(req.Side)[req.StoneIndex] = moving
		trajectory.Frames = append(trajectory.Frames, frame)
	}
	last := models.TrajectoryFrame{
		T:      stopTime,
		First:  cloneStones(final.First),
		Second: cloneStones(final.Second),
	}
	last.Stones(req.Side)[req.StoneIndex] = rest
	trajectory.Frames = append(trajectory.Frames, last)
	return trajectory
}

func cloneStones(stones []models.Coordinate) []models.Coordinate {
	out := make([]models.Coordinate, len(stones))
	copy(out, stones)
	return out
}
