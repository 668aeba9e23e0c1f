package rules

import (
	"testing"

	"github.com/icehouse-dev/curling-server/models"
)

func TestModeParameters(t *testing.T) {
	tests := []struct {
		mode    models.GameMode
		stones  int
		shots   int
		variant models.RuleVariant
	}{
		{models.ModeStandard, 8, 16, models.RuleFiveRock},
		{models.ModeMixedDoubles, 6, 10, models.RuleModifiedFGZ},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := StonesPerTeam(tt.mode); got != tt.stones {
				t.Errorf("StonesPerTeam = %d, want %d", got, tt.stones)
			}
			if got := ShotsPerEnd(tt.mode); got != tt.shots {
				t.Errorf("ShotsPerEnd = %d, want %d", got, tt.shots)
			}
			if got := Variant(tt.mode); got != tt.variant {
				t.Errorf("Variant = %d, want %d", got, tt.variant)
			}
		})
	}
}

func TestFreshEndLayout(t *testing.T) {
	layout := FreshEndLayout(models.ModeMixedDoubles)
	if len(layout.First) != 6 || len(layout.Second) != 6 {
		t.Fatalf("layout sizes = %d/%d, want 6/6", len(layout.First), len(layout.Second))
	}
	for _, c := range append(layout.First, layout.Second...) {
		if c != (models.Coordinate{}) {
			t.Fatalf("fresh layout has non-origin stone %+v", c)
		}
	}
}

func TestPositionedStoneLayoutCenter(t *testing.T) {
	layout, err := PositionedStoneLayout(models.SideSecond, PowerPlayNone, 2, true)
	if err != nil {
		t.Fatal(err)
	}

	house := layout.Stones(models.SideSecond)[0]
	guard := layout.Stones(models.SideFirst)[0]
	if house != centerHouseStone {
		t.Errorf("hammer house stone = %+v, want %+v", house, centerHouseStone)
	}
	if guard != centerGuardStones[2] {
		t.Errorf("guard stone = %+v, want %+v", guard, centerGuardStones[2])
	}

	// Every other slot stays at the origin.
	nonOrigin := 0
	for _, side := range []models.Side{models.SideFirst, models.SideSecond} {
		for _, c := range layout.Stones(side) {
			if c != (models.Coordinate{}) {
				nonOrigin++
			}
		}
	}
	if nonOrigin != 2 {
		t.Errorf("non-origin stones = %d, want 2", nonOrigin)
	}
}

func TestPositionedStoneLayoutPowerPlayLeftMirrorsX(t *testing.T) {
	right, err := PositionedStoneLayout(models.SideFirst, PowerPlayRight, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	left, err := PositionedStoneLayout(models.SideFirst, PowerPlayLeft, 0, true)
	if err != nil {
		t.Fatal(err)
	}

	rh := right.Stones(models.SideFirst)[0]
	lh := left.Stones(models.SideFirst)[0]
	if lh.X != -rh.X || lh.Y != rh.Y {
		t.Errorf("left house %+v is not the x-mirror of right house %+v", lh, rh)
	}
	rg := right.Stones(models.SideSecond)[0]
	lg := left.Stones(models.SideSecond)[0]
	if lg.X != -rg.X || lg.Y != rg.Y {
		t.Errorf("left guard %+v is not the x-mirror of right guard %+v", lg, rg)
	}
}

func TestPositionedStoneLayoutHouseOwnership(t *testing.T) {
	layout, err := PositionedStoneLayout(models.SideFirst, PowerPlayNone, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := layout.Stones(models.SideSecond)[0]; got != centerHouseStone {
		t.Errorf("with hammerGetsHouse=false the non-hammer side should own the house, got %+v", got)
	}
	if got := layout.Stones(models.SideFirst)[0]; got != centerGuardStones[0] {
		t.Errorf("hammer should own the guard, got %+v", got)
	}
}

func TestPositionedStoneLayoutRejectsBadPattern(t *testing.T) {
	for _, pattern := range []int{-1, 6, 42} {
		if _, err := PositionedStoneLayout(models.SideFirst, PowerPlayNone, pattern, true); err == nil {
			t.Errorf("pattern %d accepted, want error", pattern)
		}
	}
}
