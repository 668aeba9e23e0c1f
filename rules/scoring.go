package rules

import (
	"math"
	"sort"

	"github.com/icehouse-dev/curling-server/models"
)

// Sheet geometry, metres.
const (
	TeeLineY    = 38.405
	HouseRadius = 1.829
	StoneRadius = 0.145

	// A stone counts only if any part of it overlaps the house.
	ScoreDistance = HouseRadius + StoneRadius
)

// Distance is the distance of a stone from the tee.
func Distance(c models.Coordinate) float64 {
	return math.Hypot(c.X, c.Y-TeeLineY)
}

type stoneDistance struct {
	side models.Side
	dist float64
}

// EndScore applies the closest-stone rule to a final end layout: the side
// with the closest stone scores one point per stone strictly closer than
// the opponent's closest, counting only stones within the scoring radius.
// A house with no stones in it scores nobody; ok is false in that case.
func EndScore(layout *models.StoneLayout) (winner models.Side, points int, ok bool) {
	distances := make([]stoneDistance, 0, len(layout.First)+len(layout.Second))
	for _, side := range []models.Side{models.SideFirst, models.SideSecond} {
		for _, c := range layout.Stones(side) {
			if c == (models.Coordinate{}) {
				continue // unthrown or removed stones are parked at the origin
			}
			distances = append(distances, stoneDistance{side: side, dist: Distance(c)})
		}
	}
	sort.Slice(distances, func(i, j int) bool { return distances[i].dist < distances[j].dist })

	if len(distances) == 0 || distances[0].dist > ScoreDistance {
		return 0, 0, false
	}

	winner = distances[0].side
	points = 1
	for _, d := range distances[1:] {
		if d.side != winner || d.dist > ScoreDistance {
			break
		}
		points++
	}
	return winner, points, true
}
