package services

import (
	"context"
	"database/sql"
	"errors"

	"missionlog/internal/interfaces"
	"missionlog/internal/models"
	"missionlog/internal/pkg/caching"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
)

type ServiceStrategyResolver struct {
	container     *do.Injector
	missions      interfaces.MissionStore
	cache         caching.Cache
	readonlyCache caching.ReadOnlyCache
	regular       *RegularExecutionStrategy
	pinned        *PinnedExecutionStrategy
}

func NewServiceStrategyResolver(container *do.Injector) (*ServiceStrategyResolver, error) {
	missions, err := do.Invoke[interfaces.MissionStore](container)
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

	regular, err := do.Invoke[*RegularExecutionStrategy](container)
	if err != nil {
		return nil, err
	}

	pinned, err := do.Invoke[*PinnedExecutionStrategy](container)
	if err != nil {
		return nil, err
	}

	return &ServiceStrategyResolver{container, missions, cache, readOnlyCache, regular, pinned}, nil
}

func (service *ServiceStrategyResolver) GetMission(ctx context.Context, missionID int64) (*models.Mission, error) {
	callback := func() (*models.Mission, error) {
		mission, err := service.missions.GetMission(ctx, missionID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errorx.Wrap(ErrMissionNotFound, errorx.NotExist)
		}
		return mission, err
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyMission(missionID), CACHE_TTL_5_MINS, callback)
}

// Resolve picks the strategy from the mission's pinned flag. userID is part
// of the contract but the choice depends on the mission only.
func (service *ServiceStrategyResolver) Resolve(ctx context.Context, missionID int64, userID int64) (ExecutionStrategy, error) {
	mission, err := service.GetMission(ctx, missionID)
	if err != nil {
		return nil, err
	}

	if mission.Kind() == models.EXECUTION_KIND_PINNED {
		return service.pinned, nil
	}
	return service.regular, nil
}
