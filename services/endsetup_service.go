package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/coordination"
	"github.com/icehouse-dev/curling-server/models"
	"github.com/icehouse-dev/curling-server/repositories"
	"github.com/icehouse-dev/curling-server/rules"
)

// EndSetupSelection is the mixed-doubles pre-end choice made by the
// selector team.
type EndSetupSelection string

const (
	SelectionPowerPlayLeft  EndSetupSelection = "power_play_left"
	SelectionPowerPlayRight EndSetupSelection = "power_play_right"
	SelectionCenterHouse    EndSetupSelection = "center_house"
	SelectionCenterGuard    EndSetupSelection = "center_guard"
)

type EndSetupService interface {
	// PerformEndSetup resolves the selector's choice into the positioned
	// stones and opens the end for throwing.
	PerformEndSetup(ctx context.Context, matchID uuid.UUID, side models.Side, selection EndSetupSelection) (*models.StateView, error)
}

type endSetupService struct {
	tx          repositories.TxRunner
	matches     MatchService
	stateRepo   repositories.StateRepository
	layoutRepo  repositories.StoneLayoutRepository
	setupRepo   repositories.EndSetupRepository
	coordinator *coordination.Coordinator
	logger      *slog.Logger
}

func NewEndSetupService(
	tx repositories.TxRunner,
	matches MatchService,
	stateRepo repositories.StateRepository,
	layoutRepo repositories.StoneLayoutRepository,
	setupRepo repositories.EndSetupRepository,
	coordinator *coordination.Coordinator,
	logger *slog.Logger,
) EndSetupService {
	return &endSetupService{
		tx:          tx,
		matches:     matches,
		stateRepo:   stateRepo,
		layoutRepo:  layoutRepo,
		setupRepo:   setupRepo,
		coordinator: coordinator,
		logger:      logger,
	}
}

func (s *endSetupService) PerformEndSetup(ctx context.Context, matchID uuid.UUID, side models.Side, selection EndSetupSelection) (*models.StateView, error) {
	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Mode != models.ModeMixedDoubles {
		return nil, ErrNotMixedDoubles
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
	if !prev.AwaitingEndSetup() {
		return nil, ErrEndSetupDone
	}

	var next *models.State
	err = s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		// The settings row lock serializes concurrent setup requests for
		// the whole match; the end-setup lock is then checked under it.
		settings, err := s.setupRepo.GetSettingsForUpdate(ctx, exec, matchID)
		if err != nil {
			return fmt.Errorf("failed to lock mixed doubles settings: %w", err)
		}
		match.MixedDoubles = settings

		setup, err := s.setupRepo.GetEndSetupForUpdate(ctx, exec, matchID, prev.EndNumber)
		if err != nil {
			if errors.Is(err, repositories.ErrEndSetupNotFound) {
				return ErrEndSetupRequired
			}
			return fmt.Errorf("failed to lock end setup: %w", err)
		}
		if setup.SetupDone {
			return ErrEndSetupDone
		}
		selector, ok := match.SideOf(setup.SetupTeamID)
		if !ok {
			return fmt.Errorf("end setup selector team %s is not in match %s", setup.SetupTeamID, matchID)
		}
		if side != selector {
			return ErrEndSetupWrongTeam
		}

		hammer, ppSide, err := s.resolveSelection(ctx, exec, match, selector, prev.EndNumber, selection)
		if err != nil {
			return err
		}

		layout, err := rules.PositionedStoneLayout(hammer, ppSide, settings.PositionedStonesPattern, true)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		if err := s.layoutRepo.Create(ctx, exec, layout); err != nil {
			return err
		}
		if err := s.setupRepo.MarkSetupDone(ctx, exec, matchID, prev.EndNumber); err != nil {
			return err
		}

		opener := match.TeamID(hammer.Opponent())
		next = &models.State{
			ID:                   uuid.New(),
			MatchID:              matchID,
			EndNumber:            prev.EndNumber,
			ShotNumber:           intPtr(0),
			TotalShotNumber:      intPtr(0),
			FirstRemaining:       prev.FirstRemaining,
			SecondRemaining:      prev.SecondRemaining,
			FirstExtraRemaining:  prev.FirstExtraRemaining,
			SecondExtraRemaining: prev.SecondExtraRemaining,
			StoneLayoutID:        layout.ID,
			ScoreID:              prev.ScoreID,
			NextShotTeamID:       &opener,
			CreatedAt:            time.Now().UTC(),
			StoneLayout:          layout,
			Score:                prev.Score,
		}
		return s.stateRepo.Create(ctx, exec, next)
	})
	if err != nil {
		return nil, err
	}

	if err := s.coordinator.PublishStateChanged(ctx, matchID, next.ID); err != nil {
		s.logger.Warn("failed to publish state change", slog.Any("error", err))
	}
	s.logger.Info("end setup performed",
		slog.String("match_id", matchID.String()),
		slog.Int("end", prev.EndNumber),
		slog.String("selection", string(selection)),
	)
	return s.matches.StateView(ctx, match, next)
}

// resolveSelection maps a selection to the hammer side and power-play wing,
// consuming the selector's power play when one is requested. House
// selections make the selector the hammer; the guard selection hands both
// hammer and house stone to the opponent. The non-hammer side always
// throws first.
func (s *endSetupService) resolveSelection(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, selector models.Side, endNumber int, selection EndSetupSelection) (models.Side, rules.PowerPlaySide, error) {
	switch selection {
	case SelectionCenterHouse:
		return selector, rules.PowerPlayNone, nil
	case SelectionCenterGuard:
		return selector.Opponent(), rules.PowerPlayNone, nil
	case SelectionPowerPlayLeft, SelectionPowerPlayRight:
		// Power plays are unavailable in extra ends; the request silently
		// falls back to the plain house setup.
		if extraEnd(endNumber, match.StandardEndCount) {
			return selector, rules.PowerPlayNone, nil
		}
		if match.MixedDoubles.PowerPlayEnd(selector) != nil {
			return 0, rules.PowerPlayNone, ErrPowerPlayUsed
		}
		if err := s.setupRepo.SetPowerPlayEnd(ctx, exec, match.ID, selector, endNumber); err != nil {
			return 0, rules.PowerPlayNone, err
		}
		end := endNumber
		if selector == models.SideFirst {
			match.MixedDoubles.FirstPowerPlayEnd = &end
		} else {
			match.MixedDoubles.SecondPowerPlayEnd = &end
		}
		wing := rules.PowerPlayLeft
		if selection == SelectionPowerPlayRight {
			wing = rules.PowerPlayRight
		}
		return selector, wing, nil
	}
	return 0, rules.PowerPlayNone, fmt.Errorf("%w: %q", ErrInvalidSelection, selection)
}
