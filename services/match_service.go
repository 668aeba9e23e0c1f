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
	"github.com/icehouse-dev/curling-server/simulator"
)

// Defaults applied when a start request leaves a knob unset. Thinking time
// is per side, seconds.
const (
	defaultStandardEnds      = 10
	defaultMixedDoublesEnds  = 8
	defaultTimeLimit         = 2280.0
	defaultMDTimeLimit       = 1320.0
	defaultExtraEndTime      = 270.0
	defaultMDExtraEndTime    = 180.0
	defaultSimulatorName     = "linear"
	defaultPositionedPattern = 0
)

type StartMatchInput struct {
	Name                    string          `json:"name"`
	Mode                    models.GameMode `json:"game_mode"`
	TimeLimit               float64         `json:"time_limit"`
	ExtraEndTime            float64         `json:"extra_end_time_limit"`
	StandardEndCount        int             `json:"standard_end_count"`
	SimulatorName           string          `json:"simulator_name"`
	PositionedStonesPattern *int            `json:"positioned_stones_pattern"`
	TournamentName          string          `json:"tournament_name"`
}

type ConfigureTeamInput struct {
	TeamName string `json:"team_name"`
	// ExpectedSide names the slot the caller wants, "team0" or "team1".
	// Empty takes the first free slot; a taken slot falls back to the
	// other one.
	ExpectedSide string                `json:"expected_side"`
	Players      []models.PlayerConfig `json:"players"`
}

type MatchService interface {
	StartMatch(ctx context.Context, input StartMatchInput) (*models.Match, error)
	// GetMatch loads a match with its mixed-doubles settings attached.
	GetMatch(ctx context.Context, matchID uuid.UUID) (*models.Match, error)
	// ConfigureTeam claims a team slot for the user, or recognizes a
	// returning user by its match binding.
	ConfigureTeam(ctx context.Context, userID, matchID uuid.UUID, input ConfigureTeamInput) (models.Side, error)
	// SideOf resolves the team slot a user holds in a match.
	SideOf(ctx context.Context, userID, matchID uuid.UUID) (models.Side, error)

	LatestStateView(ctx context.Context, matchID uuid.UUID) (*models.StateView, error)
	StateViewByID(ctx context.Context, matchID, stateID uuid.UUID) (*models.StateView, error)
	EndStateViews(ctx context.Context, matchID uuid.UUID, endNumber int) ([]*models.StateView, error)
	StateView(ctx context.Context, match *models.Match, state *models.State) (*models.StateView, error)
}

type matchService struct {
	tx          repositories.TxRunner
	matchRepo   repositories.MatchRepository
	scoreRepo   repositories.ScoreRepository
	layoutRepo  repositories.StoneLayoutRepository
	stateRepo   repositories.StateRepository
	playerRepo  repositories.PlayerRepository
	bindingRepo repositories.BindingRepository
	setupRepo   repositories.EndSetupRepository
	shotRepo    repositories.ShotRepository
	coordinator *coordination.Coordinator
	logger      *slog.Logger
}

func NewMatchService(
	tx repositories.TxRunner,
	matchRepo repositories.MatchRepository,
	scoreRepo repositories.ScoreRepository,
	layoutRepo repositories.StoneLayoutRepository,
	stateRepo repositories.StateRepository,
	playerRepo repositories.PlayerRepository,
	bindingRepo repositories.BindingRepository,
	setupRepo repositories.EndSetupRepository,
	shotRepo repositories.ShotRepository,
	coordinator *coordination.Coordinator,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		tx:          tx,
		matchRepo:   matchRepo,
		scoreRepo:   scoreRepo,
		layoutRepo:  layoutRepo,
		stateRepo:   stateRepo,
		playerRepo:  playerRepo,
		bindingRepo: bindingRepo,
		setupRepo:   setupRepo,
		shotRepo:    shotRepo,
		coordinator: coordinator,
		logger:      logger,
	}
}

func (s *matchService) StartMatch(ctx context.Context, input StartMatchInput) (*models.Match, error) {
	if input.Mode == "" {
		input.Mode = models.ModeStandard
	}
	if input.Mode != models.ModeStandard && input.Mode != models.ModeMixedDoubles {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGameMode, input.Mode)
	}
	mixedDoubles := input.Mode == models.ModeMixedDoubles

	if input.StandardEndCount <= 0 {
		if mixedDoubles {
			input.StandardEndCount = defaultMixedDoublesEnds
		} else {
			input.StandardEndCount = defaultStandardEnds
		}
	}
	if input.TimeLimit <= 0 {
		input.TimeLimit = defaultTimeLimit
		if mixedDoubles {
			input.TimeLimit = defaultMDTimeLimit
		}
	}
	if input.ExtraEndTime <= 0 {
		input.ExtraEndTime = defaultExtraEndTime
		if mixedDoubles {
			input.ExtraEndTime = defaultMDExtraEndTime
		}
	}
	if input.SimulatorName == "" {
		input.SimulatorName = defaultSimulatorName
	}
	if _, err := simulator.Get(input.SimulatorName); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSimulator, input.SimulatorName)
	}

	pattern := defaultPositionedPattern
	if input.PositionedStonesPattern != nil {
		pattern = *input.PositionedStonesPattern
	}
	if mixedDoubles {
		// Validate the pattern up front, against the same table that will
		// build every pre-end layout.
		if _, err := rules.PositionedStoneLayout(models.SideSecond, rules.PowerPlayNone, pattern, true); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
	}

	now := time.Now().UTC()
	score := models.NewScore(input.StandardEndCount)
	layout := rules.FreshEndLayout(input.Mode)

	match := &models.Match{
		ID:               uuid.New(),
		Name:             input.Name,
		Mode:             input.Mode,
		AppliedRule:      rules.Variant(input.Mode),
		FirstTeamID:      uuid.New(),
		SecondTeamID:     uuid.New(),
		ScoreID:          score.ID,
		TimeLimit:        input.TimeLimit,
		ExtraEndTime:     input.ExtraEndTime,
		StandardEndCount: input.StandardEndCount,
		SimulatorName:    input.SimulatorName,
		TournamentID:     uuid.New(),
		TournamentName:   input.TournamentName,
		CreatedAt:        now,
		StartedAt:        now,
	}

	state := &models.State{
		ID:                   uuid.New(),
		MatchID:              match.ID,
		EndNumber:            0,
		FirstRemaining:       input.TimeLimit,
		SecondRemaining:      input.TimeLimit,
		FirstExtraRemaining:  input.ExtraEndTime,
		SecondExtraRemaining: input.ExtraEndTime,
		StoneLayoutID:        layout.ID,
		ScoreID:              score.ID,
		CreatedAt:            now,
	}
	if mixedDoubles {
		// The first state is the end-setup window: no shot counters, no
		// thrower, until the selector places the positioned stones.
	} else {
		state.ShotNumber = intPtr(0)
		state.TotalShotNumber = intPtr(0)
		first := match.FirstTeamID
		state.NextShotTeamID = &first
	}

	err := s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.scoreRepo.Create(ctx, exec, score); err != nil {
			return err
		}
		if err := s.layoutRepo.Create(ctx, exec, layout); err != nil {
			return err
		}
		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return err
		}
		if mixedDoubles {
			settings := &models.MixedDoublesSettings{
				MatchID:                 match.ID,
				PositionedStonesPattern: pattern,
			}
			if err := s.setupRepo.CreateSettings(ctx, exec, settings); err != nil {
				return err
			}
			match.MixedDoubles = settings
			// The second slot selects the opening end setup.
			setup := &models.EndSetup{
				MatchID:     match.ID,
				EndNumber:   0,
				SetupTeamID: match.SecondTeamID,
			}
			if err := s.setupRepo.CreateEndSetup(ctx, exec, setup); err != nil {
				return err
			}
		}
		return s.stateRepo.Create(ctx, exec, state)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match started",
		slog.String("match_id", match.ID.String()),
		slog.String("mode", string(match.Mode)),
		slog.Int("ends", match.StandardEndCount),
	)
	return match, nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID uuid.UUID) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match: %w", err)
	}
	if match.Mode == models.ModeMixedDoubles {
		settings, err := s.setupRepo.GetSettings(ctx, matchID)
		if err != nil {
			return nil, fmt.Errorf("failed to load mixed doubles settings: %w", err)
		}
		match.MixedDoubles = settings
	}
	return match, nil
}

func (s *matchService) ConfigureTeam(ctx context.Context, userID, matchID uuid.UUID, input ConfigureTeamInput) (models.Side, error) {
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return 0, err
	}

	// A returning user keeps the slot it claimed before; nothing about the
	// request body can move it to the other team.
	binding, err := s.bindingRepo.Get(ctx, userID, matchID)
	if err == nil {
		if err := s.coordinator.MarkTeamConfigured(ctx, matchID, binding.Side); err != nil {
			s.logger.Warn("failed to refresh team config key", slog.Any("error", err))
		}
		return binding.Side, nil
	}
	if !errors.Is(err, repositories.ErrBindingNotFound) {
		return 0, fmt.Errorf("failed to check match binding: %w", err)
	}

	if input.TeamName == "" {
		return 0, fmt.Errorf("%w: team name is required", ErrValidationFailed)
	}
	players := input.Players
	if len(players) == 0 {
		players = defaultRoster(match.Mode)
	}
	if len(players) != rosterSize(match.Mode) {
		return 0, fmt.Errorf("%w: %s needs %d players, got %d",
			ErrInvalidRosterSize, match.Mode, rosterSize(match.Mode), len(players))
	}

	preferred := models.SideFirst
	if input.ExpectedSide != "" {
		parsed, err := models.ParseSide(input.ExpectedSide)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		preferred = parsed
	}

	var side models.Side
	err = s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		won, err := s.matchRepo.ClaimTeamSlot(ctx, exec, matchID, preferred, input.TeamName)
		if err != nil {
			return err
		}
		if won {
			side = preferred
		} else {
			won, err = s.matchRepo.ClaimTeamSlot(ctx, exec, matchID, preferred.Opponent(), input.TeamName)
			if err != nil {
				return err
			}
			if !won {
				return ErrTeamSlotsTaken
			}
			side = preferred.Opponent()
		}

		teamID := match.TeamID(side)
		ids := make([]uuid.UUID, 0, len(players))
		for _, cfg := range players {
			player, err := s.resolvePlayer(ctx, exec, teamID, cfg)
			if err != nil {
				return err
			}
			ids = append(ids, player.ID)
		}
		if err := s.matchRepo.SetPlayers(ctx, exec, matchID, side, ids); err != nil {
			return err
		}

		return s.bindingRepo.Create(ctx, exec, &models.MatchBinding{
			UserID:    userID,
			MatchID:   matchID,
			Side:      side,
			CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return 0, err
	}

	if err := s.coordinator.MarkTeamConfigured(ctx, matchID, side); err != nil {
		s.logger.Warn("failed to mark team configured", slog.Any("error", err))
	}
	s.logger.Info("team configured",
		slog.String("match_id", matchID.String()),
		slog.String("side", side.String()),
		slog.String("team_name", input.TeamName),
	)
	return side, nil
}

// resolvePlayer reuses a roster entry by (team, name) so repeated
// configuration never mints duplicate identities.
func (s *matchService) resolvePlayer(ctx context.Context, exec repositories.SQLExecutor, teamID uuid.UUID, cfg models.PlayerConfig) (*models.Player, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: player name is required", ErrValidationFailed)
	}
	existing, err := s.playerRepo.FindByTeamAndName(ctx, teamID, cfg.Name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrPlayerNotFound) {
		return nil, fmt.Errorf("failed to look up player: %w", err)
	}

	player := &models.Player{
		ID:             uuid.New(),
		TeamID:         teamID,
		Name:           cfg.Name,
		MaxVelocity:    cfg.MaxVelocity,
		VelocityStdDev: cfg.VelocityStdDev,
		AngleStdDev:    cfg.AngleStdDev,
	}
	if player.MaxVelocity <= 0 {
		player.MaxVelocity = models.DefaultMaxVelocity
	}
	if player.VelocityStdDev < 0 || player.AngleStdDev < 0 {
		return nil, fmt.Errorf("%w: dispersion must not be negative", ErrValidationFailed)
	}
	if err := s.playerRepo.Create(ctx, exec, player); err != nil {
		return nil, err
	}
	return player, nil
}

func (s *matchService) SideOf(ctx context.Context, userID, matchID uuid.UUID) (models.Side, error) {
	binding, err := s.bindingRepo.Get(ctx, userID, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrBindingNotFound) {
			return 0, ErrNotMatchPlayer
		}
		return 0, fmt.Errorf("failed to load match binding: %w", err)
	}
	return binding.Side, nil
}

func (s *matchService) LatestStateView(ctx context.Context, matchID uuid.UUID) (*models.StateView, error) {
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	state, err := s.stateRepo.GetLatestByMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrStateNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to load latest state: %w", err)
	}
	return s.StateView(ctx, match, state)
}

func (s *matchService) StateViewByID(ctx context.Context, matchID, stateID uuid.UUID) (*models.StateView, error) {
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	state, err := s.stateRepo.GetByID(ctx, stateID)
	if err != nil {
		if errors.Is(err, repositories.ErrStateNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if state.MatchID != matchID {
		return nil, ErrStateNotFound
	}
	return s.StateView(ctx, match, state)
}

func (s *matchService) EndStateViews(ctx context.Context, matchID uuid.UUID, endNumber int) ([]*models.StateView, error) {
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	states, err := s.stateRepo.ListByEnd(ctx, matchID, endNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load states for end %d: %w", endNumber, err)
	}
	views := make([]*models.StateView, 0, len(states))
	for _, state := range states {
		view, err := s.StateView(ctx, match, state)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// StateView assembles the client snapshot for one state, loading the
// end-setup selector and the producing shot when the state has them.
func (s *matchService) StateView(ctx context.Context, match *models.Match, state *models.State) (*models.StateView, error) {
	var setup *models.EndSetup
	if match.Mode == models.ModeMixedDoubles {
		es, err := s.setupRepo.GetEndSetup(ctx, match.ID, state.EndNumber)
		if err == nil {
			setup = es
		} else if !errors.Is(err, repositories.ErrEndSetupNotFound) {
			return nil, fmt.Errorf("failed to load end setup: %w", err)
		}
	}

	var lastShot *models.ShotRecord
	if state.ShotID != nil {
		shot, err := s.shotRepo.GetByID(ctx, *state.ShotID)
		if err == nil {
			lastShot = shot
		} else if !errors.Is(err, repositories.ErrShotNotFound) {
			return nil, fmt.Errorf("failed to load shot record: %w", err)
		}
	}

	return BuildStateView(match, state, setup, lastShot), nil
}
