package services

import (
	"context"
	"database/sql"
	"errors"

	"missionlog/internal/interfaces"
	"missionlog/internal/models"
	"missionlog/internal/pkg/caching"

	"github.com/samber/do"
	"github.com/sirupsen/logrus"
)

type ServiceExperience struct {
	container     *do.Injector
	store         interfaces.ExperienceStore
	cache         caching.Cache
	readonlyCache caching.ReadOnlyCache
	logger        logrus.FieldLogger
}

func NewServiceExperience(container *do.Injector) (*ServiceExperience, error) {
	store, err := do.Invoke[interfaces.ExperienceStore](container)
	if err != nil {
		return nil, err
	}

	cache, err := do.Invoke[caching.Cache](container)
	if err != nil {
		return nil, err
	}

	readOnlyCache, err := do.Invoke[caching.ReadOnlyCache](container)
	if err != nil {
		return nil, err
	}

	logger, err := do.Invoke[*logrus.Logger](container)
	if err != nil {
		return nil, err
	}

	return &ServiceExperience{container, store, cache, readOnlyCache, logger}, nil
}

// GrantExperience adds amount once per source, a repeated source is a no-op.
func (service *ServiceExperience) GrantExperience(ctx context.Context, userID int64, amount int, source string) error {
	if amount <= 0 {
		return nil
	}

	experience, granted, err := service.store.AddExperience(ctx, userID, amount, source)
	if err != nil {
		return err
	}

	logger := service.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"source":  source,
	})
	if !granted {
		logger.Debug("experience already granted")
		return nil
	}

	logger.WithFields(logrus.Fields{
		"amount":    amount,
		"total_exp": experience.TotalExp,
		"level":     experience.Level,
	}).Info("experience granted")

	if err := caching.Invalidate(ctx, service.cache, DBKeyUserExperience(userID)); err != nil {
		logger.WithError(err).Warn("invalidate experience cache")
	}
	return nil
}

func (service *ServiceExperience) GetUserExperience(ctx context.Context, userID int64) (*models.UserExperience, error) {
	callback := func() (*models.UserExperience, error) {
		experience, err := service.store.GetUserExperience(ctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return &models.UserExperience{UserID: userID, Level: models.LevelForExperience(0)}, nil
		}
		return experience, err
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyUserExperience(userID), CACHE_TTL_1_MIN, callback)
}
