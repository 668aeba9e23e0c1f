package services

import (
	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/models"
)

// BuildStateView renders one state row as the client-facing snapshot.
// Internal team UUIDs are translated to side labels; setup and lastShot
// are optional and only populated when the state has them.
func BuildStateView(match *models.Match, state *models.State, setup *models.EndSetup, lastShot *models.ShotRecord) *models.StateView {
	view := &models.StateView{
		WinnerTeam:           sideLabelOf(match, state.WinnerTeamID),
		FirstTeamName:        match.FirstTeamName,
		SecondTeamName:       match.SecondTeamName,
		EndNumber:            state.EndNumber,
		ShotNumber:           state.ShotNumber,
		TotalShotNumber:      state.TotalShotNumber,
		NextShotTeam:         sideLabelOf(match, state.NextShotTeamID),
		FirstRemaining:       state.FirstRemaining,
		SecondRemaining:      state.SecondRemaining,
		FirstExtraRemaining:  state.FirstExtraRemaining,
		SecondExtraRemaining: state.SecondExtraRemaining,
	}

	if state.StoneLayout != nil {
		view.StoneLayout = models.StoneLayoutView{
			Team0: state.StoneLayout.First,
			Team1: state.StoneLayout.Second,
		}
	}
	if state.Score != nil {
		view.Score = models.ScoreView{
			Team0: state.Score.First,
			Team1: state.Score.Second,
		}
	}

	if match.Mode == models.ModeMixedDoubles && match.MixedDoubles != nil {
		md := &models.MixedDoublesView{
			PositionedStonesPattern: match.MixedDoubles.PositionedStonesPattern,
			PowerPlayEnd: models.PowerPlayView{
				Team0: match.MixedDoubles.FirstPowerPlayEnd,
				Team1: match.MixedDoubles.SecondPowerPlayEnd,
			},
		}
		if setup != nil {
			if side, ok := match.SideOf(setup.SetupTeamID); ok {
				md.EndSetupTeam = side.String()
			}
		}
		view.MixedDoubles = md
	}

	if lastShot != nil {
		view.LastMove = &models.LastMoveView{
			Velocity:       lastShot.Requested.Velocity,
			Angle:          lastShot.Requested.Angle,
			Spin:           lastShot.Requested.Spin,
			ActualVelocity: lastShot.ActualVelocity,
			ActualAngle:    lastShot.ActualAngle,
		}
	}

	return view
}

func sideLabelOf(match *models.Match, teamID *uuid.UUID) *string {
	if teamID == nil {
		return nil
	}
	side, ok := match.SideOf(*teamID)
	if !ok {
		return nil
	}
	label := side.String()
	return &label
}
