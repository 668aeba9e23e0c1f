package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/icehouse-dev/curling-server/models"
)

var ErrMatchNotFound = errors.New("match not found")

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error)
	// ClaimTeamSlot writes the team name only when the slot is still free
	// and reports whether this caller won the claim.
	ClaimTeamSlot(ctx context.Context, exec SQLExecutor, id uuid.UUID, side models.Side, name string) (bool, error)
	SetPlayers(ctx context.Context, exec SQLExecutor, id uuid.UUID, side models.Side, playerIDs []uuid.UUID) error
	SetWinner(ctx context.Context, exec SQLExecutor, id uuid.UUID, winnerTeamID uuid.UUID) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches
			(id, name, game_mode, applied_rule, first_team_id, second_team_id,
			 first_team_name, second_team_name, first_player_ids, second_player_ids,
			 winner_team_id, score_id, time_limit, extra_end_time_limit,
			 standard_end_count, simulator_name, tournament_id, tournament_name,
			 created_at, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		match.ID,
		match.Name,
		match.Mode,
		match.AppliedRule,
		match.FirstTeamID,
		match.SecondTeamID,
		match.FirstTeamName,
		match.SecondTeamName,
		pq.Array(match.FirstPlayerIDs),
		pq.Array(match.SecondPlayerIDs),
		match.WinnerTeamID,
		match.ScoreID,
		match.TimeLimit,
		match.ExtraEndTime,
		match.StandardEndCount,
		match.SimulatorName,
		match.TournamentID,
		match.TournamentName,
		match.CreatedAt,
		match.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	query := `
		SELECT id, name, game_mode, applied_rule, first_team_id, second_team_id,
		       first_team_name, second_team_name, first_player_ids, second_player_ids,
		       winner_team_id, score_id, time_limit, extra_end_time_limit,
		       standard_end_count, simulator_name, tournament_id, tournament_name,
		       created_at, started_at
		FROM matches
		WHERE id = $1`

	match := &models.Match{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.Name,
		&match.Mode,
		&match.AppliedRule,
		&match.FirstTeamID,
		&match.SecondTeamID,
		&match.FirstTeamName,
		&match.SecondTeamName,
		pq.Array(&match.FirstPlayerIDs),
		pq.Array(&match.SecondPlayerIDs),
		&match.WinnerTeamID,
		&match.ScoreID,
		&match.TimeLimit,
		&match.ExtraEndTime,
		&match.StandardEndCount,
		&match.SimulatorName,
		&match.TournamentID,
		&match.TournamentName,
		&match.CreatedAt,
		&match.StartedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %s: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ClaimTeamSlot(ctx context.Context, exec SQLExecutor, id uuid.UUID, side models.Side, name string) (bool, error) {
	column := "first_team_name"
	if side == models.SideSecond {
		column = "second_team_name"
	}
	// The IS NULL guard is the compare-and-set: under the caller's row
	// lock two concurrent first-claims cannot both see a free slot.
	query := fmt.Sprintf(`UPDATE matches SET %s = $1 WHERE id = $2 AND %s IS NULL`, column, column)

	result, err := r.getExecutor(exec).ExecContext(ctx, query, name, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim team slot: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *postgresMatchRepository) SetPlayers(ctx context.Context, exec SQLExecutor, id uuid.UUID, side models.Side, playerIDs []uuid.UUID) error {
	column := "first_player_ids"
	if side == models.SideSecond {
		column = "second_player_ids"
	}
	query := fmt.Sprintf(`UPDATE matches SET %s = $1 WHERE id = $2`, column)

	result, err := r.getExecutor(exec).ExecContext(ctx, query, pq.Array(playerIDs), id)
	if err != nil {
		return fmt.Errorf("failed to set players: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetWinner(ctx context.Context, exec SQLExecutor, id uuid.UUID, winnerTeamID uuid.UUID) error {
	query := `UPDATE matches SET winner_team_id = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, winnerTeamID, id)
	if err != nil {
		return fmt.Errorf("failed to set match winner: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
