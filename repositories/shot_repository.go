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

var (
	ErrShotNotFound       = errors.New("shot record not found")
	ErrTrajectoryNotFound = errors.New("trajectory not found")
)

type ShotRepository interface {
	Create(ctx context.Context, exec SQLExecutor, shot *models.ShotRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ShotRecord, error)
	CreateTrajectory(ctx context.Context, exec SQLExecutor, trajectory *models.Trajectory) error
	GetTrajectory(ctx context.Context, id uuid.UUID) (*models.Trajectory, error)
}

type postgresShotRepository struct {
	db *sql.DB
}

func NewPostgresShotRepository(db *sql.DB) ShotRepository {
	return &postgresShotRepository{db: db}
}

func (r *postgresShotRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresShotRepository) Create(ctx context.Context, exec SQLExecutor, shot *models.ShotRecord) error {
	query := `
		INSERT INTO shot_records
			(id, player_id, team_id, pre_state_id, post_state_id,
			 velocity, angle, spin, actual_velocity, actual_angle, trajectory_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		shot.ID,
		shot.PlayerID,
		shot.TeamID,
		shot.PreStateID,
		shot.PostStateID,
		shot.Requested.Velocity,
		shot.Requested.Angle,
		string(shot.Requested.Spin),
		shot.ActualVelocity,
		shot.ActualAngle,
		shot.TrajectoryID,
	)
	if err != nil {
		return fmt.Errorf("failed to create shot record: %w", err)
	}
	return nil
}

func (r *postgresShotRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ShotRecord, error) {
	query := `
		SELECT id, player_id, team_id, pre_state_id, post_state_id,
		       velocity, angle, spin, actual_velocity, actual_angle, trajectory_id
		FROM shot_records
		WHERE id = $1`

	shot := &models.ShotRecord{}
	var spin string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&shot.ID,
		&shot.PlayerID,
		&shot.TeamID,
		&shot.PreStateID,
		&shot.PostStateID,
		&shot.Requested.Velocity,
		&shot.Requested.Angle,
		&spin,
		&shot.ActualVelocity,
		&shot.ActualAngle,
		&shot.TrajectoryID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShotNotFound
		}
		return nil, fmt.Errorf("failed to scan shot record %s: %w", id, err)
	}
	shot.Requested.Spin = models.Spin(spin)
	return shot, nil
}

func (r *postgresShotRepository) CreateTrajectory(ctx context.Context, exec SQLExecutor, trajectory *models.Trajectory) error {
	data, err := json.Marshal(trajectory.Frames)
	if err != nil {
		return fmt.Errorf("failed to marshal trajectory frames: %w", err)
	}

	query := `INSERT INTO trajectories (id, data) VALUES ($1, $2)`
	_, err = r.getExecutor(exec).ExecContext(ctx, query, trajectory.ID, data)
	if err != nil {
		return fmt.Errorf("failed to create trajectory: %w", err)
	}
	return nil
}

func (r *postgresShotRepository) GetTrajectory(ctx context.Context, id uuid.UUID) (*models.Trajectory, error) {
	query := `SELECT id, data FROM trajectories WHERE id = $1`

	trajectory := &models.Trajectory{}
	var data []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&trajectory.ID, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTrajectoryNotFound
		}
		return nil, fmt.Errorf("failed to scan trajectory %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &trajectory.Frames); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trajectory frames: %w", err)
	}
	return trajectory, nil
}
