package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/coordination"
	"github.com/icehouse-dev/curling-server/models"
	"github.com/icehouse-dev/curling-server/repositories"
	"github.com/icehouse-dev/curling-server/rules"
	"github.com/icehouse-dev/curling-server/simulator"
)

type ShotService interface {
	// SubmitShot runs the full pipeline: turn validation, player rotation,
	// dispersion, physics, clock accounting, end and match resolution. The
	// resulting state is persisted atomically and announced on the match
	// channel.
	SubmitShot(ctx context.Context, matchID uuid.UUID, side models.Side, params models.ShotParams) (*models.StateView, error)
}

type shotService struct {
	tx          repositories.TxRunner
	matches     MatchService
	stateRepo   repositories.StateRepository
	layoutRepo  repositories.StoneLayoutRepository
	scoreRepo   repositories.ScoreRepository
	playerRepo  repositories.PlayerRepository
	shotRepo    repositories.ShotRepository
	setupRepo   repositories.EndSetupRepository
	matchRepo   repositories.MatchRepository
	coordinator *coordination.Coordinator
	logger      *slog.Logger

	// Injection points for deterministic tests.
	now    func() time.Time
	normal func() float64
}

func NewShotService(
	tx repositories.TxRunner,
	matches MatchService,
	stateRepo repositories.StateRepository,
	layoutRepo repositories.StoneLayoutRepository,
	scoreRepo repositories.ScoreRepository,
	playerRepo repositories.PlayerRepository,
	shotRepo repositories.ShotRepository,
	setupRepo repositories.EndSetupRepository,
	matchRepo repositories.MatchRepository,
	coordinator *coordination.Coordinator,
	logger *slog.Logger,
) ShotService {
	return &shotService{
		tx:          tx,
		matches:     matches,
		stateRepo:   stateRepo,
		layoutRepo:  layoutRepo,
		scoreRepo:   scoreRepo,
		playerRepo:  playerRepo,
		shotRepo:    shotRepo,
		setupRepo:   setupRepo,
		matchRepo:   matchRepo,
		coordinator: coordinator,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		normal:      rand.NormFloat64,
	}
}

func (s *shotService) SubmitShot(ctx context.Context, matchID uuid.UUID, side models.Side, params models.ShotParams) (*models.StateView, error) {
	if params.Spin != models.SpinClockwise && params.Spin != models.SpinCounterClockwise {
		return nil, ErrInvalidSpin
	}
	if params.Velocity < 0 {
		return nil, fmt.Errorf("%w: velocity must not be negative", ErrValidationFailed)
	}

	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	prev, err := s.stateRepo.GetLatestByMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrStateNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to load latest state: %w", err)
	}
	if prev.Finished() {
		return nil, ErrMatchFinished
	}
	if prev.AwaitingEndSetup() {
		return nil, ErrEndSetupRequired
	}
	if prev.NextShotTeamID == nil || *prev.NextShotTeamID != match.TeamID(side) {
		return nil, ErrNotYourTurn
	}

	player, err := s.throwingPlayer(ctx, match, side, *prev.TotalShotNumber)
	if err != nil {
		return nil, err
	}

	// Thinking time is charged wall-clock since the previous state was
	// produced; a side that runs out forfeits on the spot.
	isExtra := extraEnd(prev.EndNumber, match.StandardEndCount)
	elapsed := s.now().Sub(prev.CreatedAt).Seconds()
	remaining := prev.Remaining(side, isExtra) - elapsed
	if remaining < 0 {
		view, err := s.forfeitOnTime(ctx, match, prev, side, isExtra)
		if err != nil {
			return nil, err
		}
		return view, nil
	}

	actualVelocity, actualAngle := s.disperse(player, params)

	sim, err := simulator.Get(match.SimulatorName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSimulator, match.SimulatorName)
	}
	layout, trajectory, simErr := sim.Simulate(simulator.Request{
		Layout:     prev.StoneLayout,
		Side:       side,
		StoneIndex: s.stoneIndex(match.Mode, *prev.TotalShotNumber),
		ShotNumber: *prev.TotalShotNumber,
		Velocity:   actualVelocity,
		Angle:      actualAngle,
		SpinSign:   params.Spin.Sign(),
		Variant:    match.AppliedRule,
	})
	if simErr != nil {
		return nil, fmt.Errorf("simulation failed: %w", simErr)
	}

	final, rollover, score, setup, err := s.advance(ctx, match, prev, side, layout, isExtra, remaining)
	if err != nil {
		return nil, err
	}

	shot := &models.ShotRecord{
		ID:             uuid.New(),
		PlayerID:       player.ID,
		TeamID:         match.TeamID(side),
		PreStateID:     prev.ID,
		PostStateID:    final.ID,
		Requested:      params,
		ActualVelocity: actualVelocity,
		ActualAngle:    actualAngle,
		TrajectoryID:   &trajectory.ID,
	}

	err = s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.layoutRepo.Create(ctx, exec, layout); err != nil {
			return err
		}
		if err := s.shotRepo.CreateTrajectory(ctx, exec, trajectory); err != nil {
			return err
		}
		if score != nil {
			if err := s.scoreRepo.Update(ctx, exec, score); err != nil {
				return err
			}
		}
		if err := s.stateRepo.Create(ctx, exec, final); err != nil {
			return err
		}
		if err := s.shotRepo.Create(ctx, exec, shot); err != nil {
			return err
		}
		if err := s.stateRepo.LinkShot(ctx, exec, final.ID, shot.ID); err != nil {
			return err
		}
		if rollover != nil {
			if err := s.layoutRepo.Create(ctx, exec, rollover.StoneLayout); err != nil {
				return err
			}
			if err := s.stateRepo.Create(ctx, exec, rollover); err != nil {
				return err
			}
		}
		if setup != nil {
			if err := s.setupRepo.CreateEndSetup(ctx, exec, setup); err != nil {
				return err
			}
		}
		if final.WinnerTeamID != nil {
			if err := s.matchRepo.SetWinner(ctx, exec, matchID, *final.WinnerTeamID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	final.ShotID = &shot.ID

	// Announce the closing state before the rollover so streams observe the
	// end's final stone positions before the layout resets.
	if err := s.coordinator.PublishStateChanged(ctx, matchID, final.ID); err != nil {
		s.logger.Warn("failed to publish state change", slog.Any("error", err))
	}
	latest := final
	if rollover != nil {
		if err := s.coordinator.PublishStateChanged(ctx, matchID, rollover.ID); err != nil {
			s.logger.Warn("failed to publish state change", slog.Any("error", err))
		}
		latest = rollover
	}
	return s.matches.StateView(ctx, match, latest)
}

// throwingPlayer applies the fixed rotation. Standard play: four players,
// two consecutive stones each. Mixed doubles: the first thrower delivers
// the team's first and last stones, the second thrower the middle three.
func (s *shotService) throwingPlayer(ctx context.Context, match *models.Match, side models.Side, preTotal int) (*models.Player, error) {
	roster := match.PlayerIDs(side)
	if len(roster) != rosterSize(match.Mode) {
		return nil, fmt.Errorf("%w: side %s has %d players", ErrInvalidRosterSize, side, len(roster))
	}

	var idx int
	if match.Mode == models.ModeMixedDoubles {
		teamShot := preTotal / 2
		if teamShot == 0 || teamShot == rules.ThrowsPerTeam(match.Mode)-1 {
			idx = 0
		} else {
			idx = 1
		}
	} else {
		idx = preTotal / 4
	}

	player, err := s.playerRepo.GetByID(ctx, roster[idx])
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to load player: %w", err)
	}
	return player, nil
}

// stoneIndex maps the team's next throw onto its slot in the layout. In
// mixed doubles slot 0 holds the positioned stone.
func (s *shotService) stoneIndex(mode models.GameMode, preTotal int) int {
	teamShot := preTotal / 2
	if mode == models.ModeMixedDoubles {
		return teamShot + 1
	}
	return teamShot
}

// disperse perturbs the requested parameters with the thrower's skill
// model: velocity is capped at the player's maximum, both axes get
// Gaussian noise, and velocity never goes negative.
func (s *shotService) disperse(player *models.Player, params models.ShotParams) (velocity, angle float64) {
	v := params.Velocity
	if v > player.MaxVelocity {
		v = player.MaxVelocity
	}
	v += s.normal() * player.VelocityStdDev
	if v < 0 {
		v = 0
	}
	return v, params.Angle + s.normal()*player.AngleStdDev
}

// advance builds the states the shot produces. Every shot yields the final
// state carrying the simulated layout and incremented counters; the last
// shot of a non-terminal end additionally yields the rollover state that
// opens the next end, with the updated score and, in mixed doubles, the
// next end-setup row.
func (s *shotService) advance(ctx context.Context, match *models.Match, prev *models.State, side models.Side, layout *models.StoneLayout, isExtra bool, remaining float64) (*models.State, *models.State, *models.Score, *models.EndSetup, error) {
	totalAfter := *prev.TotalShotNumber + 1
	teamShotAfter := *prev.TotalShotNumber/2 + 1

	final := &models.State{
		ID:                   uuid.New(),
		MatchID:              match.ID,
		EndNumber:            prev.EndNumber,
		ShotNumber:           intPtr(teamShotAfter),
		TotalShotNumber:      intPtr(totalAfter),
		FirstRemaining:       prev.FirstRemaining,
		SecondRemaining:      prev.SecondRemaining,
		FirstExtraRemaining:  prev.FirstExtraRemaining,
		SecondExtraRemaining: prev.SecondExtraRemaining,
		StoneLayoutID:        layout.ID,
		ScoreID:              prev.ScoreID,
		CreatedAt:            s.now(),
		StoneLayout:          layout,
		Score:                prev.Score,
	}
	final.SetRemaining(side, isExtra, remaining)

	if totalAfter < rules.ShotsPerEnd(match.Mode) {
		opponent := match.TeamID(side.Opponent())
		final.NextShotTeamID = &opponent
		return final, nil, nil, nil, nil
	}

	// Last shot of the end: resolve the score. The final state keeps the
	// closing stone positions with the full shot count; no thrower follows
	// from it.
	score := prev.Score
	scoringSide, points, scored := rules.EndScore(layout)
	if scored {
		score.Add(scoringSide, prev.EndNumber, points)
	}
	final.Score = score

	regulationDone := prev.EndNumber+1 >= match.StandardEndCount
	tied := score.Total(models.SideFirst) == score.Total(models.SideSecond)
	if regulationDone && !tied {
		winnerSide := models.SideFirst
		if score.Total(models.SideSecond) > score.Total(models.SideFirst) {
			winnerSide = models.SideSecond
		}
		winner := match.TeamID(winnerSide)
		final.WinnerTeamID = &winner
		return final, nil, score, nil, nil
	}

	// Another end: regulation continues, or the game is tied after the
	// last scheduled end and extra ends run until the tie breaks.
	freshLayout := rules.FreshEndLayout(match.Mode)
	rollover := &models.State{
		ID:                   uuid.New(),
		MatchID:              match.ID,
		EndNumber:            prev.EndNumber + 1,
		FirstRemaining:       final.FirstRemaining,
		SecondRemaining:      final.SecondRemaining,
		FirstExtraRemaining:  final.FirstExtraRemaining,
		SecondExtraRemaining: final.SecondExtraRemaining,
		StoneLayoutID:        freshLayout.ID,
		ScoreID:              prev.ScoreID,
		// Strictly after the final state so the timeline stays totally
		// ordered even at coarse clock resolution.
		CreatedAt:   final.CreatedAt.Add(time.Millisecond),
		StoneLayout: freshLayout,
		Score:       score,
	}

	thisOpener := side.Opponent() // the hammer throws the end's last stone
	nextOpener := thisOpener.Opponent()
	if scored {
		nextOpener = scoringSide.Opponent()
	}

	if match.Mode == models.ModeMixedDoubles {
		// The new end waits for its setup; the selector follows the score
		// the same way the opener does.
		setup, err := s.setupRepo.GetEndSetup(ctx, match.ID, prev.EndNumber)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to load end setup: %w", err)
		}
		thisSelector, ok := match.SideOf(setup.SetupTeamID)
		if !ok {
			return nil, nil, nil, nil, fmt.Errorf("end setup selector team %s is not in match %s", setup.SetupTeamID, match.ID)
		}
		nextSelector := thisSelector.Opponent()
		if scored {
			nextSelector = scoringSide
		}
		nextSetup := &models.EndSetup{
			MatchID:     match.ID,
			EndNumber:   rollover.EndNumber,
			SetupTeamID: match.TeamID(nextSelector),
		}
		return final, rollover, score, nextSetup, nil
	}

	rollover.ShotNumber = intPtr(0)
	rollover.TotalShotNumber = intPtr(0)
	opener := match.TeamID(nextOpener)
	rollover.NextShotTeamID = &opener
	return final, rollover, score, nil, nil
}

// forfeitOnTime ends the match in the opponent's favour when the thrower's
// clock is already exhausted.
func (s *shotService) forfeitOnTime(ctx context.Context, match *models.Match, prev *models.State, side models.Side, isExtra bool) (*models.StateView, error) {
	winner := match.TeamID(side.Opponent())
	next := &models.State{
		ID:                   uuid.New(),
		MatchID:              match.ID,
		WinnerTeamID:         &winner,
		EndNumber:            prev.EndNumber,
		FirstRemaining:       prev.FirstRemaining,
		SecondRemaining:      prev.SecondRemaining,
		FirstExtraRemaining:  prev.FirstExtraRemaining,
		SecondExtraRemaining: prev.SecondExtraRemaining,
		StoneLayoutID:        prev.StoneLayoutID,
		ScoreID:              prev.ScoreID,
		CreatedAt:            s.now(),
		StoneLayout:          prev.StoneLayout,
		Score:                prev.Score,
	}
	next.SetRemaining(side, isExtra, 0)

	err := s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.stateRepo.Create(ctx, exec, next); err != nil {
			return err
		}
		return s.matchRepo.SetWinner(ctx, exec, match.ID, winner)
	})
	if err != nil {
		return nil, err
	}

	if err := s.coordinator.PublishStateChanged(ctx, match.ID, next.ID); err != nil {
		s.logger.Warn("failed to publish state change", slog.Any("error", err))
	}
	s.logger.Info("match forfeited on time",
		slog.String("match_id", match.ID.String()),
		slog.String("forfeiting_side", side.String()),
	)
	return s.matches.StateView(ctx, match, next)
}
