package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/models"
)

var ErrPlayerNotFound = errors.New("player not found")

type PlayerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, player *models.Player) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Player, error)
	FindByTeamAndName(ctx context.Context, teamID uuid.UUID, name string) (*models.Player, error)
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPlayerRepository) Create(ctx context.Context, exec SQLExecutor, player *models.Player) error {
	query := `
		INSERT INTO players (id, team_id, name, max_velocity, velocity_std_dev, angle_std_dev)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		player.ID, player.TeamID, player.Name,
		player.MaxVelocity, player.VelocityStdDev, player.AngleStdDev)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	query := `
		SELECT id, team_id, name, max_velocity, velocity_std_dev, angle_std_dev
		FROM players WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresPlayerRepository) FindByTeamAndName(ctx context.Context, teamID uuid.UUID, name string) (*models.Player, error) {
	query := `
		SELECT id, team_id, name, max_velocity, velocity_std_dev, angle_std_dev
		FROM players WHERE team_id = $1 AND name = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, teamID, name))
}

func (r *postgresPlayerRepository) scanOne(row *sql.Row) (*models.Player, error) {
	player := &models.Player{}
	err := row.Scan(
		&player.ID, &player.TeamID, &player.Name,
		&player.MaxVelocity, &player.VelocityStdDev, &player.AngleStdDev)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player: %w", err)
	}
	return player, nil
}
