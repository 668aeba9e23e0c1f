package simulator

import (
	"math"
	"testing"

	"github.com/icehouse-dev/curling-server/models"
	"github.com/icehouse-dev/curling-server/rules"
)

// velocityFor returns the release speed that travels exactly d metres under
// the backend's constant friction.
func velocityFor(d float64) float64 {
	return math.Sqrt(2 * frictionDecel * d)
}

func coordNear(a, b models.Coordinate) bool {
	const eps = 1e-9
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps
}

func TestLinearDrawStopsAtTravelDistance(t *testing.T) {
	sim := NewLinear()
	layout := rules.FreshEndLayout(models.ModeStandard)

	const travel = 36.0
	result, trajectory, err := sim.Simulate(Request{
		Layout:     layout,
		Side:       models.SideFirst,
		StoneIndex: 0,
		ShotNumber: 0,
		Velocity:   velocityFor(travel),
		SpinSign:   1,
		Variant:    models.RuleFiveRock,
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	want := models.Coordinate{X: curlRate * travel, Y: travel}
	if got := result.First[0]; !coordNear(got, want) {
		t.Errorf("rest position = %+v, want %+v", got, want)
	}
	// The input layout is never mutated.
	if layout.First[0] != (models.Coordinate{}) {
		t.Errorf("input layout mutated: %+v", layout.First[0])
	}

	if len(trajectory.Frames) < 2 {
		t.Fatalf("trajectory has %d frames, want at least release and rest", len(trajectory.Frames))
	}
	if first := trajectory.Frames[0]; first.T != 0 || first.First[0] != (models.Coordinate{}) {
		t.Errorf("first frame = t%v %+v, want stone at release", first.T, first.First[0])
	}
	if last := trajectory.Frames[len(trajectory.Frames)-1]; !coordNear(last.First[0], want) {
		t.Errorf("last frame stone = %+v, want rest position %+v", last.First[0], want)
	}
}

func TestLinearCounterClockwiseCurlsTheOtherWay(t *testing.T) {
	sim := NewLinear()
	layout := rules.FreshEndLayout(models.ModeStandard)

	const travel = 30.0
	result, _, err := sim.Simulate(Request{
		Layout:     layout,
		Side:       models.SideSecond,
		StoneIndex: 3,
		ShotNumber: 7,
		Velocity:   velocityFor(travel),
		SpinSign:   -1,
		Variant:    models.RuleFiveRock,
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	want := models.Coordinate{X: -curlRate * travel, Y: travel}
	if got := result.Second[3]; !coordNear(got, want) {
		t.Errorf("rest position = %+v, want %+v", got, want)
	}
}

func TestLinearRemovesStoneBeyondBackLine(t *testing.T) {
	sim := NewLinear()
	layout := rules.FreshEndLayout(models.ModeStandard)

	result, _, err := sim.Simulate(Request{
		Layout:     layout,
		Side:       models.SideFirst,
		StoneIndex: 0,
		ShotNumber: 0,
		Velocity:   velocityFor(backLineY + 5),
		SpinSign:   1,
		Variant:    models.RuleFiveRock,
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if got := result.First[0]; got != (models.Coordinate{}) {
		t.Errorf("overthrown stone = %+v, want removed to origin", got)
	}
}

func TestLinearCollisionTransfersTravel(t *testing.T) {
	sim := NewLinear()
	layout := rules.FreshEndLayout(models.ModeStandard)
	layout.Second[0] = models.Coordinate{X: 0, Y: 20}

	const travel = 30.0
	result, _, err := sim.Simulate(Request{
		Layout:     layout,
		Side:       models.SideFirst,
		StoneIndex: 0,
		ShotNumber: 10, // guard protection long over
		Velocity:   velocityFor(travel),
		SpinSign:   1,
		Variant:    models.RuleFiveRock,
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	contactAt := 20 - 2*rules.StoneRadius
	leftover := (travel - contactAt) * collisionTransfer

	wantThrown := models.Coordinate{X: curlRate * contactAt, Y: contactAt}
	if got := result.First[0]; !coordNear(got, wantThrown) {
		t.Errorf("thrown stone = %+v, want stopped at contact %+v", got, wantThrown)
	}
	wantStruck := models.Coordinate{X: 0, Y: 20 + leftover}
	if got := result.Second[0]; !coordNear(got, wantStruck) {
		t.Errorf("struck stone = %+v, want pushed to %+v", got, wantStruck)
	}
}

func TestLinearGuardRule(t *testing.T) {
	guard := models.Coordinate{X: 0, Y: 34} // between hog line and house

	newRequest := func(shotNumber int) (Request, *models.StoneLayout) {
		layout := rules.FreshEndLayout(models.ModeStandard)
		layout.Second[0] = guard
		return Request{
			Layout:     layout,
			Side:       models.SideFirst,
			StoneIndex: 0,
			ShotNumber: shotNumber,
			Velocity:   velocityFor(50), // enough to blast the guard out the back
			SpinSign:   1,
			Variant:    models.RuleFiveRock,
		}, layout
	}

	t.Run("protected guard is restored", func(t *testing.T) {
		req, _ := newRequest(0)
		result, _, err := NewLinear().Simulate(req)
		if err != nil {
			t.Fatalf("Simulate: %v", err)
		}
		if got := result.Second[0]; got != guard {
			t.Errorf("guard = %+v, want restored to %+v", got, guard)
		}
		if got := result.First[0]; got != (models.Coordinate{}) {
			t.Errorf("offending stone = %+v, want forfeited", got)
		}
	})

	t.Run("protection lapses after the fifth stone", func(t *testing.T) {
		req, _ := newRequest(5)
		result, _, err := NewLinear().Simulate(req)
		if err != nil {
			t.Fatalf("Simulate: %v", err)
		}
		if got := result.Second[0]; got != (models.Coordinate{}) {
			t.Errorf("guard = %+v, want removed", got)
		}
		if got := result.First[0]; got == (models.Coordinate{}) {
			t.Error("takeout stone removed, want it left in play")
		}
	})
}

func TestLinearRejectsBadStoneIndex(t *testing.T) {
	sim := NewLinear()
	layout := rules.FreshEndLayout(models.ModeMixedDoubles)

	if _, _, err := sim.Simulate(Request{
		Layout:     layout,
		Side:       models.SideFirst,
		StoneIndex: 6,
		Velocity:   2,
		SpinSign:   1,
	}); err == nil {
		t.Error("stone index past the layout accepted, want error")
	}
}
