package datastore

import (
	"context"
	"time"

	"missionlog/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableDailyMissionInstance(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.DailyMissionInstance)(nil)).IfNotExists().
		ForeignKey(`("participant_id") REFERENCES "mission_participant" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.DailyMissionInstance)(nil)).Index("index_daily_mission_instance_participant_date").IfNotExists().Unique().Column("participant_id", "instance_date").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.DailyMissionInstance)(nil)).Index("index_daily_mission_instance_user_in_progress").IfNotExists().Unique().Column("user_id").
		Where("status = ?", models.EXECUTION_STATUS_IN_PROGRESS).
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.DailyMissionInstance)(nil)).Index("index_daily_mission_instance_user_date").IfNotExists().Column("user_id", "instance_date").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

type InstanceStore struct {
	db bun.IDB
}

func NewInstanceStore(db bun.IDB) *InstanceStore {
	return &InstanceStore{db}
}

func (s *InstanceStore) GetInstance(ctx context.Context, id int64) (*models.DailyMissionInstance, error) {
	var instance models.DailyMissionInstance
	err := s.db.NewSelect().Model(&instance).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (s *InstanceStore) GetInstanceByDate(ctx context.Context, participantID int64, date time.Time) (*models.DailyMissionInstance, error) {
	var instance models.DailyMissionInstance
	err := s.db.NewSelect().Model(&instance).
		Where("participant_id = ?", participantID).
		Where("instance_date = ?", sqlDate(date)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (s *InstanceStore) ExistsInstanceByDate(ctx context.Context, participantID int64, date time.Time) (bool, error) {
	return s.db.NewSelect().Model((*models.DailyMissionInstance)(nil)).
		Where("participant_id = ?", participantID).
		Where("instance_date = ?", sqlDate(date)).
		Exists(ctx)
}

func (s *InstanceStore) ExistsInProgressInstance(ctx context.Context, userID int64) (bool, error) {
	return s.db.NewSelect().Model((*models.DailyMissionInstance)(nil)).
		Where("user_id = ?", userID).
		Where("status = ?", models.EXECUTION_STATUS_IN_PROGRESS).
		Exists(ctx)
}

// InsertInstanceIfAbsent reports false when another request already created
// the instance for the same participant and date.
func (s *InstanceStore) InsertInstanceIfAbsent(ctx context.Context, instance *models.DailyMissionInstance) (bool, error) {
	res, err := s.db.NewInsert().Model(instance).
		On("CONFLICT (participant_id, instance_date) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, translateError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *InstanceStore) UpdateInstance(ctx context.Context, instance *models.DailyMissionInstance, expected models.ExecutionStatus) error {
	res, err := s.db.NewUpdate().Model(instance).
		Column(executionStateColumns...).
		WherePK().
		Where("status = ?", expected).
		Exec(ctx)
	return affectedOne(res, err)
}

// UpdateInstanceImage writes only the image url of a completed instance.
func (s *InstanceStore) UpdateInstanceImage(ctx context.Context, instance *models.DailyMissionInstance) error {
	res, err := s.db.NewUpdate().Model(instance).
		Column("image_url", "updated_at").
		WherePK().
		Where("status = ?", models.EXECUTION_STATUS_COMPLETED).
		Exec(ctx)
	return affectedOne(res, err)
}

// UpdateInstanceFeed stores the feed id of a completed instance unless one is
// already stored.
func (s *InstanceStore) UpdateInstanceFeed(ctx context.Context, instance *models.DailyMissionInstance) error {
	res, err := s.db.NewUpdate().Model(instance).
		Column("feed_id", "updated_at").
		WherePK().
		Where("status = ?", models.EXECUTION_STATUS_COMPLETED).
		Where("feed_id IS NULL").
		Exec(ctx)
	return affectedOne(res, err)
}

func (s *InstanceStore) ListInstancesByParticipant(ctx context.Context, participantID int64) ([]*models.DailyMissionInstance, error) {
	var instances []*models.DailyMissionInstance
	err := s.db.NewSelect().Model(&instances).
		Where("participant_id = ?", participantID).
		Order("instance_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (s *InstanceStore) ListInstancesByParticipantInRange(ctx context.Context, participantID int64, from, to time.Time) ([]*models.DailyMissionInstance, error) {
	var instances []*models.DailyMissionInstance
	err := s.db.NewSelect().Model(&instances).
		Where("participant_id = ?", participantID).
		Where("instance_date BETWEEN ? AND ?", sqlDate(from), sqlDate(to)).
		Order("instance_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (s *InstanceStore) ListCompletedInstances(ctx context.Context, userID int64, from, to time.Time) ([]*models.DailyMissionInstance, error) {
	var instances []*models.DailyMissionInstance
	err := s.db.NewSelect().Model(&instances).
		Where("user_id = ?", userID).
		Where("status = ?", models.EXECUTION_STATUS_COMPLETED).
		Where("instance_date BETWEEN ? AND ?", sqlDate(from), sqlDate(to)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (s *InstanceStore) ListInstancesByUserAndDate(ctx context.Context, userID int64, date time.Time) ([]*models.DailyMissionInstance, error) {
	var instances []*models.DailyMissionInstance
	err := s.db.NewSelect().Model(&instances).
		Where("user_id = ?", userID).
		Where("instance_date = ?", sqlDate(date)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (s *InstanceStore) SumInstanceExp(ctx context.Context, userID int64, from, to time.Time) (int64, error) {
	var total int64
	err := s.db.NewSelect().Model((*models.DailyMissionInstance)(nil)).
		ColumnExpr("COALESCE(SUM(exp_earned), 0)").
		Where("user_id = ?", userID).
		Where("status = ?", models.EXECUTION_STATUS_COMPLETED).
		Where("instance_date BETWEEN ? AND ?", sqlDate(from), sqlDate(to)).
		Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *InstanceStore) CountCompletedInstances(ctx context.Context, userID int64) (int, error) {
	return s.db.NewSelect().Model((*models.DailyMissionInstance)(nil)).
		Where("user_id = ?", userID).
		Where("status = ?", models.EXECUTION_STATUS_COMPLETED).
		Count(ctx)
}
