package services

import (
	"context"
	"time"

	"missionlog/internal/models"

	"github.com/samber/do"
)

// PinnedExecutionStrategy hands every call to the daily instance service.
type PinnedExecutionStrategy struct {
	instances *ServiceDailyInstance
}

func NewPinnedExecutionStrategy(container *do.Injector) (*PinnedExecutionStrategy, error) {
	instances, err := do.Invoke[*ServiceDailyInstance](container)
	if err != nil {
		return nil, err
	}

	return &PinnedExecutionStrategy{instances}, nil
}

func (strategy *PinnedExecutionStrategy) StartExecution(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	return strategy.instances.Start(ctx, missionID, userID, date)
}

func (strategy *PinnedExecutionStrategy) SkipExecution(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	return strategy.instances.Skip(ctx, missionID, userID, date)
}

func (strategy *PinnedExecutionStrategy) CompleteExecution(ctx context.Context, missionID int64, userID int64, date time.Time, note string, shareToFeed bool) (*CompletionResult, error) {
	return strategy.instances.Complete(ctx, missionID, userID, date, note, shareToFeed)
}

func (strategy *PinnedExecutionStrategy) UploadExecutionImage(ctx context.Context, missionID int64, userID int64, date time.Time, file *models.ImageUpload) (*models.ExecutionResponse, error) {
	return strategy.instances.UploadImage(ctx, missionID, userID, date, file)
}

func (strategy *PinnedExecutionStrategy) DeleteExecutionImage(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	return strategy.instances.DeleteImage(ctx, missionID, userID, date)
}

func (strategy *PinnedExecutionStrategy) ShareExecutionToFeed(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	return strategy.instances.Share(ctx, missionID, userID, date)
}

func (strategy *PinnedExecutionStrategy) GetExecutionByDate(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	return strategy.instances.GetByDate(ctx, missionID, userID, date)
}
