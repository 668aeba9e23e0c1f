package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/models"
)

func TestPerformEndSetupGating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	standard := env.startConfiguredMatch(t, models.ModeStandard, 2)
	if _, err := env.setups.PerformEndSetup(ctx, standard.ID, models.SideFirst, SelectionCenterHouse); !errors.Is(err, ErrNotMixedDoubles) {
		t.Errorf("standard match: got %v, want ErrNotMixedDoubles", err)
	}

	match := env.startConfiguredMatch(t, models.ModeMixedDoubles, 8)

	if _, err := env.shots.SubmitShot(ctx, match.ID, models.SideFirst, models.ShotParams{
		Velocity: 2, Spin: models.SpinClockwise,
	}); !errors.Is(err, ErrEndSetupRequired) {
		t.Errorf("shot before setup: got %v, want ErrEndSetupRequired", err)
	}

	// The second slot selects the opening end.
	if _, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideFirst, SelectionCenterHouse); !errors.Is(err, ErrEndSetupWrongTeam) {
		t.Errorf("wrong selector: got %v, want ErrEndSetupWrongTeam", err)
	}
	if _, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideSecond, "corner_freeze"); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("unknown selection: got %v, want ErrInvalidSelection", err)
	}
}

func TestPerformEndSetupPowerPlayRight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.startConfiguredMatch(t, models.ModeMixedDoubles, 8)

	view, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideSecond, SelectionPowerPlayRight)
	if err != nil {
		t.Fatalf("PerformEndSetup: %v", err)
	}

	// The selector keeps the hammer and its positioned stone moves to the
	// right wing of the house; the opponent's guard follows it.
	if got, want := view.StoneLayout.Team1[0], (models.Coordinate{X: 1.219, Y: 38.260}); got != want {
		t.Errorf("hammer house stone = %+v, want %+v", got, want)
	}
	if got, want := view.StoneLayout.Team0[0], (models.Coordinate{X: 1.093, Y: 35.350}); got != want {
		t.Errorf("guard stone = %+v, want %+v", got, want)
	}
	if view.NextShotTeam == nil || *view.NextShotTeam != "team0" {
		t.Errorf("opener = %v, want the non-hammer side team0", view.NextShotTeam)
	}
	if view.TotalShotNumber == nil || *view.TotalShotNumber != 0 {
		t.Errorf("total shot number = %v, want 0", view.TotalShotNumber)
	}
	if view.MixedDoubles == nil {
		t.Fatal("mixed doubles view missing")
	}
	if pp := view.MixedDoubles.PowerPlayEnd.Team1; pp == nil || *pp != 0 {
		t.Errorf("team1 power play end = %v, want 0", pp)
	}
	if view.MixedDoubles.PowerPlayEnd.Team0 != nil {
		t.Errorf("team0 power play end = %v, want unused", *view.MixedDoubles.PowerPlayEnd.Team0)
	}

	if _, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideSecond, SelectionCenterHouse); !errors.Is(err, ErrEndSetupDone) {
		t.Errorf("repeated setup: got %v, want ErrEndSetupDone", err)
	}
}

func TestPerformEndSetupCenterGuardHandsOverHammer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.startConfiguredMatch(t, models.ModeMixedDoubles, 8)

	view, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideSecond, SelectionCenterGuard)
	if err != nil {
		t.Fatalf("PerformEndSetup: %v", err)
	}

	// Choosing the guard gives the opponent the hammer and the house stone;
	// the selector's own team then opens the end.
	if got, want := view.StoneLayout.Team0[0], (models.Coordinate{X: 0, Y: 38.870}); got != want {
		t.Errorf("house stone = %+v, want %+v on team0", got, want)
	}
	if got, want := view.StoneLayout.Team1[0], (models.Coordinate{X: 0, Y: 35.350}); got != want {
		t.Errorf("guard stone = %+v, want %+v on team1", got, want)
	}
	if view.NextShotTeam == nil || *view.NextShotTeam != "team1" {
		t.Errorf("opener = %v, want team1", view.NextShotTeam)
	}
}

func TestMixedDoublesEndFlowAndSelectorSuccession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.startConfiguredMatch(t, models.ModeMixedDoubles, 8)

	if _, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideSecond, SelectionCenterHouse); err != nil {
		t.Fatalf("PerformEndSetup: %v", err)
	}

	// team0 stacks the button past team1's positioned house stone.
	stub.setPlacement(placeScorerNearTee(models.SideFirst))
	view := env.playEnd(t, match, models.SideFirst)

	if view.EndNumber != 1 {
		t.Fatalf("end number = %d, want 1", view.EndNumber)
	}
	if view.Score.Team0[0] != 5 {
		t.Errorf("team0 end-0 score = %d, want 5", view.Score.Team0[0])
	}
	// The rollover state waits for the next setup.
	if view.NextShotTeam != nil || view.ShotNumber != nil || view.TotalShotNumber != nil {
		t.Errorf("rollover state = next %v, counters %v/%v, want all nil",
			view.NextShotTeam, view.ShotNumber, view.TotalShotNumber)
	}
	if view.WinnerTeam != nil {
		t.Errorf("winner = %v, want none", *view.WinnerTeam)
	}
	// The scoring side selects the next end setup.
	if view.MixedDoubles == nil || view.MixedDoubles.EndSetupTeam != "team0" {
		t.Fatalf("end setup team = %+v, want team0", view.MixedDoubles)
	}

	if _, err := env.shots.SubmitShot(ctx, match.ID, models.SideFirst, models.ShotParams{
		Velocity: 2, Spin: models.SpinClockwise,
	}); !errors.Is(err, ErrEndSetupRequired) {
		t.Errorf("shot during setup window: got %v, want ErrEndSetupRequired", err)
	}

	assertMixedDoublesRotation(t, env, match)
}

// assertMixedDoublesRotation checks the fixed throwing order of the end just
// played: the first roster slot delivers the team's first and last stones,
// the second slot the middle three.
func assertMixedDoublesRotation(t *testing.T, env *testEnv, match *models.Match) {
	t.Helper()

	stored, err := env.matches.GetMatch(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	roster := stored.FirstPlayerIDs
	if len(roster) != 2 {
		t.Fatalf("roster = %d players, want 2", len(roster))
	}

	var throwers []uuid.UUID
	for _, state := range env.store.states {
		if state.MatchID != match.ID || state.ShotID == nil {
			continue
		}
		shot := env.store.shots[*state.ShotID]
		if shot.TeamID == match.FirstTeamID {
			throwers = append(throwers, shot.PlayerID)
		}
	}
	want := []uuid.UUID{roster[0], roster[1], roster[1], roster[1], roster[0]}
	if len(throwers) != len(want) {
		t.Fatalf("team0 threw %d stones, want %d", len(throwers), len(want))
	}
	for i := range want {
		if throwers[i] != want[i] {
			t.Errorf("team0 throw %d by player %s, want %s", i, throwers[i], want[i])
		}
	}
}

func TestPowerPlayConsumedOncePerTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.startConfiguredMatch(t, models.ModeMixedDoubles, 8)

	// End 0: team1 selects, team0 scores and earns the next selection.
	if _, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideSecond, SelectionCenterHouse); err != nil {
		t.Fatalf("end 0 setup: %v", err)
	}
	stub.setPlacement(placeScorerNearTee(models.SideFirst))
	env.playEnd(t, match, models.SideFirst)

	// End 1: team0 burns its power play.
	view, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideFirst, SelectionPowerPlayLeft)
	if err != nil {
		t.Fatalf("end 1 setup: %v", err)
	}
	if got, want := view.StoneLayout.Team0[0], (models.Coordinate{X: -1.219, Y: 38.260}); got != want {
		t.Errorf("power play house stone = %+v, want %+v", got, want)
	}
	if pp := view.MixedDoubles.PowerPlayEnd.Team0; pp == nil || *pp != 1 {
		t.Errorf("team0 power play end = %v, want 1", pp)
	}

	// team0 scores again and selects end 2, but the power play is spent.
	env.playEnd(t, match, models.SideSecond)
	if _, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideFirst, SelectionPowerPlayRight); !errors.Is(err, ErrPowerPlayUsed) {
		t.Errorf("second power play: got %v, want ErrPowerPlayUsed", err)
	}
}

func TestPowerPlayFallsBackToCenterInExtraEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.startConfiguredMatch(t, models.ModeMixedDoubles, 2)

	// End 0: team1 selects, team0 scores 5.
	if _, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideSecond, SelectionCenterHouse); err != nil {
		t.Fatalf("end 0 setup: %v", err)
	}
	stub.setPlacement(placeScorerNearTee(models.SideFirst))
	env.playEnd(t, match, models.SideFirst)

	// End 1: team0 selects, team1 scores 5 and ties the game.
	if _, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideFirst, SelectionCenterHouse); err != nil {
		t.Fatalf("end 1 setup: %v", err)
	}
	stub.setPlacement(placeScorerNearTee(models.SideSecond))
	view := env.playEnd(t, match, models.SideSecond)

	if view.WinnerTeam != nil {
		t.Fatalf("winner = %v, want extra end on a tie", *view.WinnerTeam)
	}
	if view.EndNumber != 2 {
		t.Fatalf("end number = %d, want extra end 2", view.EndNumber)
	}
	if view.MixedDoubles == nil || view.MixedDoubles.EndSetupTeam != "team1" {
		t.Fatalf("end setup team = %+v, want team1", view.MixedDoubles)
	}

	// Power plays are unavailable in extra ends: the selection succeeds but
	// resolves to the plain centre setup and stays unconsumed.
	view, err := env.setups.PerformEndSetup(ctx, match.ID, models.SideSecond, SelectionPowerPlayRight)
	if err != nil {
		t.Fatalf("extra end setup: %v", err)
	}
	if got, want := view.StoneLayout.Team1[0], (models.Coordinate{X: 0, Y: 38.870}); got != want {
		t.Errorf("house stone = %+v, want centre %+v", got, want)
	}
	if view.MixedDoubles.PowerPlayEnd.Team1 != nil {
		t.Errorf("team1 power play end = %v, want still unused", *view.MixedDoubles.PowerPlayEnd.Team1)
	}
}
