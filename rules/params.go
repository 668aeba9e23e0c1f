// Package rules holds the pure match rules: mode-dependent parameters,
// positioned-stone coordinates and end scoring. Nothing here touches the
// database, the broker or the clock.
package rules

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/models"
)

// PowerPlaySide selects the wing for a mixed-doubles power play.
type PowerPlaySide string

const (
	PowerPlayNone  PowerPlaySide = ""
	PowerPlayLeft  PowerPlaySide = "left"
	PowerPlayRight PowerPlaySide = "right"
)

const patternCount = 6

// Positioned-stone coordinates are defined for the RIGHT side; the left
// side flips x.
var (
	centerHouseStone = models.Coordinate{X: 0.0, Y: 38.870}
	powerPlayHouse   = models.Coordinate{X: 1.219, Y: 38.260}

	centerGuardStones = [patternCount]models.Coordinate{
		{X: 0.0, Y: 35.350},
		{X: 0.0, Y: 35.060},
		{X: 0.0, Y: 34.435},
		{X: 0.0, Y: 34.145},
		{X: 0.0, Y: 33.520},
		{X: 0.0, Y: 33.230},
	}

	powerPlayGuards = [patternCount]models.Coordinate{
		{X: 1.093, Y: 35.350},
		{X: 1.087, Y: 35.060},
		{X: 1.073, Y: 34.435},
		{X: 1.067, Y: 34.145},
		{X: 1.053, Y: 33.520},
		{X: 1.047, Y: 33.230},
	}
)

// StonesPerTeam returns how many stones each side throws in an end.
func StonesPerTeam(mode models.GameMode) int {
	if mode == models.ModeMixedDoubles {
		return 6
	}
	return 8
}

// ThrowsPerTeam returns how many stones a side actually delivers in an
// end. In mixed doubles one of the six stones is positioned, not thrown.
func ThrowsPerTeam(mode models.GameMode) int {
	if mode == models.ModeMixedDoubles {
		return StonesPerTeam(mode) - 1
	}
	return StonesPerTeam(mode)
}

// ShotsPerEnd returns the total shots both sides deliver in an end.
func ShotsPerEnd(mode models.GameMode) int {
	return 2 * ThrowsPerTeam(mode)
}

// Variant returns the sheet rule applied for a mode.
func Variant(mode models.GameMode) models.RuleVariant {
	if mode == models.ModeMixedDoubles {
		return models.RuleModifiedFGZ
	}
	return models.RuleFiveRock
}

// FreshEndLayout builds the all-at-origin layout a new end starts from.
func FreshEndLayout(mode models.GameMode) *models.StoneLayout {
	n := StonesPerTeam(mode)
	return &models.StoneLayout{
		ID:     uuid.New(),
		First:  make([]models.Coordinate, n),
		Second: make([]models.Coordinate, n),
	}
}

// PositionedStoneLayout builds the mixed-doubles pre-end layout: one house
// stone and one guard stone, mirrored in x when the power play is on the
// left. hammerGetsHouse decides which team's first stone sits in the house;
// the other team owns the guard.
func PositionedStoneLayout(hammer models.Side, ppSide PowerPlaySide, pattern int, hammerGetsHouse bool) (*models.StoneLayout, error) {
	if pattern < 0 || pattern >= patternCount {
		return nil, fmt.Errorf("positioned stones pattern must be 0-%d, got %d", patternCount-1, pattern)
	}

	house := centerHouseStone
	guard := centerGuardStones[pattern]
	if ppSide == PowerPlayLeft || ppSide == PowerPlayRight {
		house = powerPlayHouse
		guard = powerPlayGuards[pattern]
		if ppSide == PowerPlayLeft {
			house.X = -house.X
			guard.X = -guard.X
		}
	}

	houseSide, guardSide := hammer, hammer.Opponent()
	if !hammerGetsHouse {
		houseSide, guardSide = guardSide, houseSide
	}

	layout := FreshEndLayout(models.ModeMixedDoubles)
	layout.Stones(houseSide)[0] = house
	layout.Stones(guardSide)[0] = guard
	return layout, nil
}
