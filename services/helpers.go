package services

import (
	"fmt"

	"github.com/icehouse-dev/curling-server/models"
)

func intPtr(v int) *int { return &v }

// rosterSize is the number of throwers a side registers per mode.
func rosterSize(mode models.GameMode) int {
	if mode == models.ModeMixedDoubles {
		return 2
	}
	return 4
}

// defaultRoster fills roster slots the client left unspecified.
func defaultRoster(mode models.GameMode) []models.PlayerConfig {
	n := rosterSize(mode)
	out := make([]models.PlayerConfig, n)
	for i := range out {
		out[i] = models.DefaultPlayerConfig(fmt.Sprintf("player%d", i+1))
	}
	return out
}

// extraEnd reports whether endNumber is past regulation.
func extraEnd(endNumber, standardEndCount int) bool {
	return endNumber >= standardEndCount
}
