package services

import (
	"context"

	"missionlog/internal/interfaces"
	"missionlog/internal/models"

	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type ServiceAchievement struct {
	container    *do.Injector
	store        interfaces.AchievementStore
	executions   interfaces.ExecutionStore
	instances    interfaces.InstanceStore
	achievements []models.Achievement
	logger       logrus.FieldLogger
}

func NewServiceAchievement(container *do.Injector) (*ServiceAchievement, error) {
	store, err := do.Invoke[interfaces.AchievementStore](container)
	if err != nil {
		return nil, err
	}

	executions, err := do.Invoke[interfaces.ExecutionStore](container)
	if err != nil {
		return nil, err
	}

	instances, err := do.Invoke[interfaces.InstanceStore](container)
	if err != nil {
		return nil, err
	}

	logger, err := do.Invoke[*logrus.Logger](container)
	if err != nil {
		return nil, err
	}

	return &ServiceAchievement{container, store, executions, instances, models.Achievements, logger}, nil
}

// Evaluate unlocks every achievement whose threshold the user's completions
// across both record kinds have reached.
func (service *ServiceAchievement) Evaluate(ctx context.Context, userID int64, trigger models.AchievementTrigger) error {
	var executions, instances int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		executions, err = service.executions.CountCompletedExecutions(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		instances, err = service.instances.CountCompletedInstances(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	completed := executions + instances
	for _, achievement := range service.achievements {
		if completed < achievement.Threshold {
			continue
		}

		unlocked, err := service.store.UnlockAchievement(ctx, &models.UserAchievement{
			UserID: userID,
			Code:   achievement.Code,
			Title:  achievement.Title,
		})
		if err != nil {
			return err
		}
		if unlocked {
			service.logger.WithFields(logrus.Fields{
				"user_id":   userID,
				"code":      achievement.Code,
				"kind":      trigger.Kind,
				"record_id": trigger.RecordID,
			}).Info("achievement unlocked")
		}
	}

	return nil
}

func (service *ServiceAchievement) ListAchievements(ctx context.Context, userID int64) ([]*models.UserAchievement, error) {
	return service.store.ListAchievements(ctx, userID)
}
