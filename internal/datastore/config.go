package datastore

import (
	"context"

	"missionlog/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableConfig(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Config)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}
	return nil
}

type ConfigStore struct {
	db bun.IDB
}

func NewConfigStore(db bun.IDB) *ConfigStore {
	return &ConfigStore{db}
}

// InsertConfig keeps the stored value when the key already exists.
func (s *ConfigStore) InsertConfig(ctx context.Context, config *models.Config) error {
	_, err := s.db.NewInsert().Model(config).On("CONFLICT (key) DO NOTHING").Exec(ctx)
	return err
}

func (s *ConfigStore) GetConfigByKey(ctx context.Context, key string) (*models.Config, error) {
	var config models.Config
	err := s.db.NewSelect().Model(&config).Where("key = ?", key).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (s *ConfigStore) EditConfig(ctx context.Context, config *models.Config) (*models.Config, error) {
	_, err := s.db.NewUpdate().Model(config).Column("value", "updated_at").WherePK().Exec(ctx)
	if err != nil {
		return nil, err
	}

	return config, nil
}
