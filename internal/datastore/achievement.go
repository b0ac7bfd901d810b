package datastore

import (
	"context"

	"missionlog/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableUserAchievement(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.UserAchievement)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.UserAchievement)(nil)).Index("index_user_achievement_user_code").IfNotExists().Unique().Column("user_id", "code").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

type AchievementStore struct {
	db bun.IDB
}

func NewAchievementStore(db bun.IDB) *AchievementStore {
	return &AchievementStore{db}
}

func (s *AchievementStore) UnlockAchievement(ctx context.Context, achievement *models.UserAchievement) (bool, error) {
	res, err := s.db.NewInsert().Model(achievement).On("CONFLICT (user_id, code) DO NOTHING").Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *AchievementStore) ListAchievements(ctx context.Context, userID int64) ([]*models.UserAchievement, error) {
	var achievements []*models.UserAchievement
	err := s.db.NewSelect().Model(&achievements).Where("user_id = ?", userID).Order("unlocked_at ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return achievements, nil
}
