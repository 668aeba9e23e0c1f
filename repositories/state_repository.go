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

var ErrStateNotFound = errors.New("match state not found")

type StateRepository interface {
	Create(ctx context.Context, exec SQLExecutor, state *models.State) error
	// GetLatestByMatch returns the newest state row with its stone layout
	// and score joined in.
	GetLatestByMatch(ctx context.Context, matchID uuid.UUID) (*models.State, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.State, error)
	// ListByEnd returns all states of one end oldest-first, layouts and
	// scores joined in.
	ListByEnd(ctx context.Context, matchID uuid.UUID, endNumber int) ([]*models.State, error)
	// LinkShot back-fills the shot that produced a state.
	LinkShot(ctx context.Context, exec SQLExecutor, stateID, shotID uuid.UUID) error
}

type postgresStateRepository struct {
	db *sql.DB
}

func NewPostgresStateRepository(db *sql.DB) StateRepository {
	return &postgresStateRepository{db: db}
}

func (r *postgresStateRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStateRepository) Create(ctx context.Context, exec SQLExecutor, state *models.State) error {
	query := `
		INSERT INTO match_states
			(id, match_id, winner_team_id, end_number, shot_number, total_shot_number,
			 first_remaining, second_remaining, first_extra_remaining, second_extra_remaining,
			 stone_layout_id, score_id, shot_id, next_shot_team_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		state.ID,
		state.MatchID,
		state.WinnerTeamID,
		state.EndNumber,
		state.ShotNumber,
		state.TotalShotNumber,
		state.FirstRemaining,
		state.SecondRemaining,
		state.FirstExtraRemaining,
		state.SecondExtraRemaining,
		state.StoneLayoutID,
		state.ScoreID,
		state.ShotID,
		state.NextShotTeamID,
		state.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create match state: %w", err)
	}
	return nil
}

const stateSelectColumns = `
	s.id, s.match_id, s.winner_team_id, s.end_number, s.shot_number, s.total_shot_number,
	s.first_remaining, s.second_remaining, s.first_extra_remaining, s.second_extra_remaining,
	s.stone_layout_id, s.score_id, s.shot_id, s.next_shot_team_id, s.created_at,
	l.first_stones, l.second_stones,
	sc.first_ends, sc.second_ends`

const stateSelectJoins = `
	FROM match_states s
	JOIN stone_layouts l ON l.id = s.stone_layout_id
	JOIN scores sc ON sc.id = s.score_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row rowScanner) (*models.State, error) {
	state := &models.State{}
	layout := &models.StoneLayout{}
	score := &models.Score{}
	var firstStones, secondStones []byte
	var firstEnds, secondEnds pq.Int64Array

	err := row.Scan(
		&state.ID,
		&state.MatchID,
		&state.WinnerTeamID,
		&state.EndNumber,
		&state.ShotNumber,
		&state.TotalShotNumber,
		&state.FirstRemaining,
		&state.SecondRemaining,
		&state.FirstExtraRemaining,
		&state.SecondExtraRemaining,
		&state.StoneLayoutID,
		&state.ScoreID,
		&state.ShotID,
		&state.NextShotTeamID,
		&state.CreatedAt,
		&firstStones,
		&secondStones,
		&firstEnds,
		&secondEnds,
	)
	if err != nil {
		return nil, err
	}

	layout.ID = state.StoneLayoutID
	if err := unmarshalStones(firstStones, &layout.First); err != nil {
		return nil, err
	}
	if err := unmarshalStones(secondStones, &layout.Second); err != nil {
		return nil, err
	}
	score.ID = state.ScoreID
	score.First = arrayToInts(firstEnds)
	score.Second = arrayToInts(secondEnds)

	state.StoneLayout = layout
	state.Score = score
	return state, nil
}

func (r *postgresStateRepository) GetLatestByMatch(ctx context.Context, matchID uuid.UUID) (*models.State, error) {
	query := `SELECT` + stateSelectColumns + stateSelectJoins + `
		WHERE s.match_id = $1
		ORDER BY s.created_at DESC
		LIMIT 1`

	state, err := scanState(r.db.QueryRowContext(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to scan latest state for match %s: %w", matchID, err)
	}
	return state, nil
}

func (r *postgresStateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.State, error) {
	query := `SELECT` + stateSelectColumns + stateSelectJoins + `
		WHERE s.id = $1`

	state, err := scanState(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to scan state %s: %w", id, err)
	}
	return state, nil
}

func (r *postgresStateRepository) ListByEnd(ctx context.Context, matchID uuid.UUID, endNumber int) ([]*models.State, error) {
	query := `SELECT` + stateSelectColumns + stateSelectJoins + `
		WHERE s.match_id = $1 AND s.end_number = $2
		ORDER BY s.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID, endNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query states for match %s end %d: %w", matchID, endNumber, err)
	}
	defer rows.Close()

	var states []*models.State
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state row: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate state rows: %w", err)
	}
	return states, nil
}

func (r *postgresStateRepository) LinkShot(ctx context.Context, exec SQLExecutor, stateID, shotID uuid.UUID) error {
	query := `UPDATE match_states SET shot_id = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, shotID, stateID)
	if err != nil {
		return fmt.Errorf("failed to link shot to state: %w", err)
	}
	return checkAffectedRows(result, ErrStateNotFound)
}
