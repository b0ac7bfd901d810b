package datastore

import (
	"context"
	"time"

	"missionlog/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableUserExperience(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.UserExperience)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateTable().Model((*models.ExperienceHistory)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.ExperienceHistory)(nil)).Index("index_experience_history_source").IfNotExists().Unique().Column("source").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.ExperienceHistory)(nil)).Index("index_experience_history_user_id").IfNotExists().Column("user_id").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

type ExperienceStore struct {
	db bun.IDB
}

func NewExperienceStore(db bun.IDB) *ExperienceStore {
	return &ExperienceStore{db}
}

// AddExperience records the grant in the history and bumps the user total in
// one transaction. A source that was already granted leaves both untouched
// and reports false.
func (s *ExperienceStore) AddExperience(ctx context.Context, userID int64, amount int, source string) (*models.UserExperience, bool, error) {
	now := time.Now().UTC()
	experience := &models.UserExperience{
		UserID:    userID,
		TotalExp:  int64(amount),
		Level:     models.LevelForExperience(int64(amount)),
		UpdatedAt: now,
	}
	granted := false

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		history := &models.ExperienceHistory{
			UserID:    userID,
			Amount:    amount,
			Source:    source,
			CreatedAt: now,
		}
		res, err := tx.NewInsert().Model(history).On("CONFLICT (source) DO NOTHING").Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		_, err = tx.NewInsert().Model(experience).
			On("CONFLICT (user_id) DO UPDATE").
			Set("total_exp = user_experience.total_exp + EXCLUDED.total_exp").
			Set("level = 1 + (user_experience.total_exp + EXCLUDED.total_exp) / ?", models.EXP_PER_LEVEL).
			Set("updated_at = EXCLUDED.updated_at").
			Returning("total_exp, level").
			Exec(ctx)
		if err != nil {
			return err
		}
		granted = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return experience, granted, nil
}

func (s *ExperienceStore) GetUserExperience(ctx context.Context, userID int64) (*models.UserExperience, error) {
	var experience models.UserExperience
	err := s.db.NewSelect().Model(&experience).Where("user_id = ?", userID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &experience, nil
}
