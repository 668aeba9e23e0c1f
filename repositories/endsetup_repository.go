package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/models"
)

var (
	ErrMixedDoublesSettingsNotFound = errors.New("mixed doubles settings not found")
	ErrEndSetupNotFound             = errors.New("end setup not found")
)

// EndSetupRepository persists the mixed-doubles configuration and the
// per-end selector log. The ForUpdate getters take row locks so that
// concurrent setup requests for the same end serialize on the database.
type EndSetupRepository interface {
	CreateSettings(ctx context.Context, exec SQLExecutor, settings *models.MixedDoublesSettings) error
	GetSettings(ctx context.Context, matchID uuid.UUID) (*models.MixedDoublesSettings, error)
	GetSettingsForUpdate(ctx context.Context, exec SQLExecutor, matchID uuid.UUID) (*models.MixedDoublesSettings, error)
	SetPowerPlayEnd(ctx context.Context, exec SQLExecutor, matchID uuid.UUID, side models.Side, endNumber int) error

	CreateEndSetup(ctx context.Context, exec SQLExecutor, setup *models.EndSetup) error
	GetEndSetup(ctx context.Context, matchID uuid.UUID, endNumber int) (*models.EndSetup, error)
	GetEndSetupForUpdate(ctx context.Context, exec SQLExecutor, matchID uuid.UUID, endNumber int) (*models.EndSetup, error)
	MarkSetupDone(ctx context.Context, exec SQLExecutor, matchID uuid.UUID, endNumber int) error
}

type postgresEndSetupRepository struct {
	db *sql.DB
}

func NewPostgresEndSetupRepository(db *sql.DB) EndSetupRepository {
	return &postgresEndSetupRepository{db: db}
}

func (r *postgresEndSetupRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresEndSetupRepository) CreateSettings(ctx context.Context, exec SQLExecutor, settings *models.MixedDoublesSettings) error {
	query := `
		INSERT INTO mixed_doubles_settings
			(match_id, positioned_stones_pattern, first_power_play_end, second_power_play_end)
		VALUES ($1, $2, $3, $4)`

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		settings.MatchID, settings.PositionedStonesPattern,
		settings.FirstPowerPlayEnd, settings.SecondPowerPlayEnd)
	if err != nil {
		return fmt.Errorf("failed to create mixed doubles settings: %w", err)
	}
	return nil
}

func (r *postgresEndSetupRepository) GetSettings(ctx context.Context, matchID uuid.UUID) (*models.MixedDoublesSettings, error) {
	query := `
		SELECT match_id, positioned_stones_pattern, first_power_play_end, second_power_play_end
		FROM mixed_doubles_settings
		WHERE match_id = $1`
	return r.scanSettings(r.db.QueryRowContext(ctx, query, matchID))
}

func (r *postgresEndSetupRepository) GetSettingsForUpdate(ctx context.Context, exec SQLExecutor, matchID uuid.UUID) (*models.MixedDoublesSettings, error) {
	query := `
		SELECT match_id, positioned_stones_pattern, first_power_play_end, second_power_play_end
		FROM mixed_doubles_settings
		WHERE match_id = $1
		FOR UPDATE`
	return r.scanSettings(r.getExecutor(exec).QueryRowContext(ctx, query, matchID))
}

func (r *postgresEndSetupRepository) scanSettings(row *sql.Row) (*models.MixedDoublesSettings, error) {
	settings := &models.MixedDoublesSettings{}
	err := row.Scan(
		&settings.MatchID, &settings.PositionedStonesPattern,
		&settings.FirstPowerPlayEnd, &settings.SecondPowerPlayEnd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMixedDoublesSettingsNotFound
		}
		return nil, fmt.Errorf("failed to scan mixed doubles settings: %w", err)
	}
	return settings, nil
}

func (r *postgresEndSetupRepository) SetPowerPlayEnd(ctx context.Context, exec SQLExecutor, matchID uuid.UUID, side models.Side, endNumber int) error {
	column := "first_power_play_end"
	if side == models.SideSecond {
		column = "second_power_play_end"
	}
	query := fmt.Sprintf(`UPDATE mixed_doubles_settings SET %s = $1 WHERE match_id = $2`, column)

	result, err := r.getExecutor(exec).ExecContext(ctx, query, endNumber, matchID)
	if err != nil {
		return fmt.Errorf("failed to set power play end: %w", err)
	}
	return checkAffectedRows(result, ErrMixedDoublesSettingsNotFound)
}

func (r *postgresEndSetupRepository) CreateEndSetup(ctx context.Context, exec SQLExecutor, setup *models.EndSetup) error {
	query := `
		INSERT INTO end_setups (match_id, end_number, setup_team_id, setup_done)
		VALUES ($1, $2, $3, $4)`

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		setup.MatchID, setup.EndNumber, setup.SetupTeamID, setup.SetupDone)
	if err != nil {
		return fmt.Errorf("failed to create end setup: %w", err)
	}
	return nil
}

func (r *postgresEndSetupRepository) GetEndSetup(ctx context.Context, matchID uuid.UUID, endNumber int) (*models.EndSetup, error) {
	query := `
		SELECT match_id, end_number, setup_team_id, setup_done
		FROM end_setups
		WHERE match_id = $1 AND end_number = $2`
	return r.scanEndSetup(r.db.QueryRowContext(ctx, query, matchID, endNumber))
}

func (r *postgresEndSetupRepository) GetEndSetupForUpdate(ctx context.Context, exec SQLExecutor, matchID uuid.UUID, endNumber int) (*models.EndSetup, error) {
	query := `
		SELECT match_id, end_number, setup_team_id, setup_done
		FROM end_setups
		WHERE match_id = $1 AND end_number = $2
		FOR UPDATE`
	return r.scanEndSetup(r.getExecutor(exec).QueryRowContext(ctx, query, matchID, endNumber))
}

func (r *postgresEndSetupRepository) scanEndSetup(row *sql.Row) (*models.EndSetup, error) {
	setup := &models.EndSetup{}
	err := row.Scan(&setup.MatchID, &setup.EndNumber, &setup.SetupTeamID, &setup.SetupDone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEndSetupNotFound
		}
		return nil, fmt.Errorf("failed to scan end setup: %w", err)
	}
	return setup, nil
}

func (r *postgresEndSetupRepository) MarkSetupDone(ctx context.Context, exec SQLExecutor, matchID uuid.UUID, endNumber int) error {
	query := `UPDATE end_setups SET setup_done = TRUE WHERE match_id = $1 AND end_number = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, matchID, endNumber)
	if err != nil {
		return fmt.Errorf("failed to mark end setup done: %w", err)
	}
	return checkAffectedRows(result, ErrEndSetupNotFound)
}
