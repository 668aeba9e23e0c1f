package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/models"
)

var ErrStoneLayoutNotFound = errors.New("stone layout not found")

type StoneLayoutRepository interface {
	Create(ctx context.Context, exec SQLExecutor, layout *models.StoneLayout) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StoneLayout, error)
}

type postgresStoneLayoutRepository struct {
	db *sql.DB
}

func NewPostgresStoneLayoutRepository(db *sql.DB) StoneLayoutRepository {
	return &postgresStoneLayoutRepository{db: db}
}

func (r *postgresStoneLayoutRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStoneLayoutRepository) Create(ctx context.Context, exec SQLExecutor, layout *models.StoneLayout) error {
	first, err := json.Marshal(layout.First)
	if err != nil {
		return fmt.Errorf("failed to marshal first stones: %w", err)
	}
	second, err := json.Marshal(layout.Second)
	if err != nil {
		return fmt.Errorf("failed to marshal second stones: %w", err)
	}

	query := `INSERT INTO stone_layouts (id, first_stones, second_stones) VALUES ($1, $2, $3)`
	_, err = r.getExecutor(exec).ExecContext(ctx, query, layout.ID, first, second)
	if err != nil {
		return fmt.Errorf("failed to create stone layout: %w", err)
	}
	return nil
}

func (r *postgresStoneLayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoneLayout, error) {
	query := `SELECT id, first_stones, second_stones FROM stone_layouts WHERE id = $1`

	layout := &models.StoneLayout{}
	var first, second []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&layout.ID, &first, &second)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStoneLayoutNotFound
		}
		return nil, fmt.Errorf("failed to scan stone layout %s: %w", id, err)
	}
	if err := unmarshalStones(first, &layout.First); err != nil {
		return nil, err
	}
	if err := unmarshalStones(second, &layout.Second); err != nil {
		return nil, err
	}
	return layout, nil
}

func unmarshalStones(raw []byte, dst *[]models.Coordinate) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to unmarshal stone coordinates: %w", err)
	}
	return nil
}
