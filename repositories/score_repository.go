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

var ErrScoreNotFound = errors.New("score not found")

type ScoreRepository interface {
	Create(ctx context.Context, exec SQLExecutor, score *models.Score) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Score, error)
	Update(ctx context.Context, exec SQLExecutor, score *models.Score) error
}

type postgresScoreRepository struct {
	db *sql.DB
}

func NewPostgresScoreRepository(db *sql.DB) ScoreRepository {
	return &postgresScoreRepository{db: db}
}

func (r *postgresScoreRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresScoreRepository) Create(ctx context.Context, exec SQLExecutor, score *models.Score) error {
	query := `INSERT INTO scores (id, first_ends, second_ends) VALUES ($1, $2, $3)`
	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		score.ID, intsToArray(score.First), intsToArray(score.Second))
	if err != nil {
		return fmt.Errorf("failed to create score: %w", err)
	}
	return nil
}

func (r *postgresScoreRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Score, error) {
	query := `SELECT id, first_ends, second_ends FROM scores WHERE id = $1`

	score := &models.Score{}
	var first, second pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, id).Scan(&score.ID, &first, &second)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScoreNotFound
		}
		return nil, fmt.Errorf("failed to scan score %s: %w", id, err)
	}
	score.First = arrayToInts(first)
	score.Second = arrayToInts(second)
	return score, nil
}

func (r *postgresScoreRepository) Update(ctx context.Context, exec SQLExecutor, score *models.Score) error {
	query := `UPDATE scores SET first_ends = $1, second_ends = $2 WHERE id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		intsToArray(score.First), intsToArray(score.Second), score.ID)
	if err != nil {
		return fmt.Errorf("failed to update score: %w", err)
	}
	return checkAffectedRows(result, ErrScoreNotFound)
}

func intsToArray(vs []int) pq.Int64Array {
	out := make(pq.Int64Array, len(vs))
	for i, v := range vs {
		out[i] = int64(v)
	}
	return out
}

func arrayToInts(vs pq.Int64Array) []int {
	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = int(v)
	}
	return out
}
