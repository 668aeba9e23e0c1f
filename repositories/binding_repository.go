package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/models"
)

type BindingRepository interface {
	Create(ctx context.Context, exec SQLExecutor, binding *models.MatchBinding) error
	Get(ctx context.Context, userID, matchID uuid.UUID) (*models.MatchBinding, error)
}

type postgresBindingRepository struct {
	db *sql.DB
}

func NewPostgresBindingRepository(db *sql.DB) BindingRepository {
	return &postgresBindingRepository{db: db}
}

func (r *postgresBindingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresBindingRepository) Create(ctx context.Context, exec SQLExecutor, binding *models.MatchBinding) error {
	query := `
		INSERT INTO match_bindings (user_id, match_id, side, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		binding.UserID, binding.MatchID, int(binding.Side), binding.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match binding: %w", err)
	}
	return nil
}

func (r *postgresBindingRepository) Get(ctx context.Context, userID, matchID uuid.UUID) (*models.MatchBinding, error) {
	query := `
		SELECT user_id, match_id, side, created_at
		FROM match_bindings
		WHERE user_id = $1 AND match_id = $2`

	binding := &models.MatchBinding{}
	var side int
	err := r.db.QueryRowContext(ctx, query, userID, matchID).Scan(
		&binding.UserID, &binding.MatchID, &side, &binding.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBindingNotFound
		}
		return nil, fmt.Errorf("failed to scan match binding: %w", err)
	}
	binding.Side = models.Side(side)
	return binding, nil
}
