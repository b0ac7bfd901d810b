package datastore

import (
	"context"
	"time"

	"missionlog/internal/models"

	"github.com/uptrace/bun"
)

// columns written by every state change
var executionStateColumns = []string{
	"status",
	"started_at",
	"completed_at",
	"duration_minutes",
	"exp_earned",
	"note",
	"image_url",
	"feed_id",
	"updated_at",
}

func CreateTableMissionExecution(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.MissionExecution)(nil)).IfNotExists().
		ForeignKey(`("participant_id") REFERENCES "mission_participant" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.MissionExecution)(nil)).Index("index_mission_execution_participant_date").IfNotExists().Unique().Column("participant_id", "execution_date").Exec(ctx)
	if err != nil {
		return err
	}

	// at most one running execution per user
	_, err = db.NewCreateIndex().Model((*models.MissionExecution)(nil)).Index("index_mission_execution_user_in_progress").IfNotExists().Unique().Column("user_id").
		Where("status = ?", models.EXECUTION_STATUS_IN_PROGRESS).
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.MissionExecution)(nil)).Index("index_mission_execution_user_date").IfNotExists().Column("user_id", "execution_date").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

type ExecutionStore struct {
	db bun.IDB
}

func NewExecutionStore(db bun.IDB) *ExecutionStore {
	return &ExecutionStore{db}
}

func (s *ExecutionStore) GetExecution(ctx context.Context, id int64) (*models.MissionExecution, error) {
	var execution models.MissionExecution
	err := s.db.NewSelect().Model(&execution).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &execution, nil
}

func (s *ExecutionStore) GetExecutionByDate(ctx context.Context, participantID int64, date time.Time) (*models.MissionExecution, error) {
	var execution models.MissionExecution
	err := s.db.NewSelect().Model(&execution).
		Where("participant_id = ?", participantID).
		Where("execution_date = ?", sqlDate(date)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &execution, nil
}

func (s *ExecutionStore) ExistsInProgressExecution(ctx context.Context, userID int64) (bool, error) {
	return s.db.NewSelect().Model((*models.MissionExecution)(nil)).
		Where("user_id = ?", userID).
		Where("status = ?", models.EXECUTION_STATUS_IN_PROGRESS).
		Exists(ctx)
}

func (s *ExecutionStore) InsertExecution(ctx context.Context, execution *models.MissionExecution) error {
	_, err := s.db.NewInsert().Model(execution).Exec(ctx)
	return translateError(err)
}

// UpdateExecution persists the state columns only if the stored status is
// still the expected one.
func (s *ExecutionStore) UpdateExecution(ctx context.Context, execution *models.MissionExecution, expected models.ExecutionStatus) error {
	res, err := s.db.NewUpdate().Model(execution).
		Column(executionStateColumns...).
		WherePK().
		Where("status = ?", expected).
		Exec(ctx)
	return affectedOne(res, err)
}

// UpdateExecutionImage writes only the image url of a completed execution.
func (s *ExecutionStore) UpdateExecutionImage(ctx context.Context, execution *models.MissionExecution) error {
	res, err := s.db.NewUpdate().Model(execution).
		Column("image_url", "updated_at").
		WherePK().
		Where("status = ?", models.EXECUTION_STATUS_COMPLETED).
		Exec(ctx)
	return affectedOne(res, err)
}

// UpdateExecutionFeed stores the feed id of a completed execution unless one is
// already stored.
func (s *ExecutionStore) UpdateExecutionFeed(ctx context.Context, execution *models.MissionExecution) error {
	res, err := s.db.NewUpdate().Model(execution).
		Column("feed_id", "updated_at").
		WherePK().
		Where("status = ?", models.EXECUTION_STATUS_COMPLETED).
		Where("feed_id IS NULL").
		Exec(ctx)
	return affectedOne(res, err)
}

func (s *ExecutionStore) ListExecutionsByParticipant(ctx context.Context, participantID int64) ([]*models.MissionExecution, error) {
	var executions []*models.MissionExecution
	err := s.db.NewSelect().Model(&executions).
		Where("participant_id = ?", participantID).
		Order("execution_date ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return executions, nil
}

func (s *ExecutionStore) ListExecutionsByParticipantInRange(ctx context.Context, participantID int64, from, to time.Time) ([]*models.MissionExecution, error) {
	var executions []*models.MissionExecution
	err := s.db.NewSelect().Model(&executions).
		Where("participant_id = ?", participantID).
		Where("execution_date BETWEEN ? AND ?", sqlDate(from), sqlDate(to)).
		Order("execution_date ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return executions, nil
}

func (s *ExecutionStore) ListCompletedExecutions(ctx context.Context, userID int64, from, to time.Time) ([]*models.MissionExecution, error) {
	var executions []*models.MissionExecution
	err := s.db.NewSelect().Model(&executions).
		Where("user_id = ?", userID).
		Where("status = ?", models.EXECUTION_STATUS_COMPLETED).
		Where("execution_date BETWEEN ? AND ?", sqlDate(from), sqlDate(to)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return executions, nil
}

func (s *ExecutionStore) ListExecutionsByUserAndDate(ctx context.Context, userID int64, date time.Time) ([]*models.MissionExecution, error) {
	var executions []*models.MissionExecution
	err := s.db.NewSelect().Model(&executions).
		Where("user_id = ?", userID).
		Where("execution_date = ?", sqlDate(date)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return executions, nil
}

func (s *ExecutionStore) SumExecutionExp(ctx context.Context, userID int64, from, to time.Time) (int64, error) {
	var total int64
	err := s.db.NewSelect().Model((*models.MissionExecution)(nil)).
		ColumnExpr("COALESCE(SUM(exp_earned), 0)").
		Where("user_id = ?", userID).
		Where("status = ?", models.EXECUTION_STATUS_COMPLETED).
		Where("execution_date BETWEEN ? AND ?", sqlDate(from), sqlDate(to)).
		Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *ExecutionStore) CountCompletedExecutions(ctx context.Context, userID int64) (int, error) {
	return s.db.NewSelect().Model((*models.MissionExecution)(nil)).
		Where("user_id = ?", userID).
		Where("status = ?", models.EXECUTION_STATUS_COMPLETED).
		Count(ctx)
}
