package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"missionlog/internal/interfaces"
	"missionlog/internal/models"
	"missionlog/internal/pkg"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
)

// RegularExecutionStrategy works on ad-hoc execution rows, one per
// participant and date.
type RegularExecutionStrategy struct {
	container    *do.Injector
	participants interfaces.ParticipantStore
	executions   interfaces.ExecutionStore
	completion   *ServiceCompletion
	ops          *recordOperations
}

func NewRegularExecutionStrategy(container *do.Injector) (*RegularExecutionStrategy, error) {
	participants, err := do.Invoke[interfaces.ParticipantStore](container)
	if err != nil {
		return nil, err
	}

	executions, err := do.Invoke[interfaces.ExecutionStore](container)
	if err != nil {
		return nil, err
	}

	completion, err := do.Invoke[*ServiceCompletion](container)
	if err != nil {
		return nil, err
	}

	ops, err := newRecordOperations(container)
	if err != nil {
		return nil, err
	}

	return &RegularExecutionStrategy{container, participants, executions, completion, ops}, nil
}

func (strategy *RegularExecutionStrategy) writer(execution *models.MissionExecution) recordWriter {
	return executionWriter{strategy.executions, execution}
}

func (strategy *RegularExecutionStrategy) findExecution(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.MissionExecution, error) {
	participant, err := resolveParticipant(ctx, strategy.participants, missionID, userID)
	if err != nil {
		return nil, err
	}

	execution, err := strategy.executions.GetExecutionByDate(ctx, participant.ID, pkg.DateOf(date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errorx.Wrap(ErrExecutionNotFound, errorx.NotExist)
	}
	if err != nil {
		return nil, err
	}

	return execution, nil
}

func (strategy *RegularExecutionStrategy) loader(missionID int64, userID int64, date time.Time) recordLoader {
	return func(ctx context.Context) (models.ExecutionRecord, recordWriter, error) {
		execution, err := strategy.findExecution(ctx, missionID, userID, date)
		if err != nil {
			return nil, nil, err
		}
		return execution, strategy.writer(execution), nil
	}
}

// StartExecution inserts a PENDING row when the date has none and then moves
// it to IN_PROGRESS.
func (strategy *RegularExecutionStrategy) StartExecution(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	date = pkg.DateOf(date)

	load := func(ctx context.Context) (models.ExecutionRecord, recordWriter, error) {
		participant, err := resolveParticipant(ctx, strategy.participants, missionID, userID)
		if err != nil {
			return nil, nil, err
		}

		execution, err := strategy.executions.GetExecutionByDate(ctx, participant.ID, date)
		if errors.Is(err, sql.ErrNoRows) {
			execution = models.NewMissionExecution(participant, date, strategy.ops.now())
			if err := strategy.executions.InsertExecution(ctx, execution); err != nil {
				return nil, nil, storeError(err, ErrExecutionChanged)
			}
		} else if err != nil {
			return nil, nil, err
		}

		return execution, strategy.writer(execution), nil
	}

	return strategy.ops.start(ctx, userID, load)
}

func (strategy *RegularExecutionStrategy) SkipExecution(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	execution, err := strategy.findExecution(ctx, missionID, userID, date)
	if err != nil {
		return nil, err
	}

	return strategy.ops.skip(ctx, execution, strategy.writer(execution))
}

func (strategy *RegularExecutionStrategy) CompleteExecution(ctx context.Context, missionID int64, userID int64, date time.Time, note string, shareToFeed bool) (*CompletionResult, error) {
	execution, err := strategy.findExecution(ctx, missionID, userID, date)
	if err != nil {
		return nil, err
	}

	return strategy.completion.CompleteExecution(ctx, execution.ID, userID, note, shareToFeed)
}

func (strategy *RegularExecutionStrategy) UploadExecutionImage(ctx context.Context, missionID int64, userID int64, date time.Time, file *models.ImageUpload) (*models.ExecutionResponse, error) {
	if err := strategy.ops.validateImage(ctx, file); err != nil {
		return nil, err
	}

	err := strategy.ops.allow(ctx, LimitKeyImageUpload(userID), CONFIG_IMAGE_UPLOAD_RATE_LIMIT_PER_MINUTE, DEFAULT_IMAGE_UPLOAD_RATE_LIMIT_PER_MINUTE)
	if err != nil {
		return nil, err
	}

	date = pkg.DateOf(date)
	lockKey := LockKeyExecutionRecord(models.EXECUTION_KIND_REGULAR, missionID, userID, date)
	return strategy.ops.mutate(ctx, lockKey, strategy.loader(missionID, userID, date), func(ctx context.Context, record models.ExecutionRecord, writer recordWriter) (*models.ExecutionResponse, error) {
		return strategy.ops.uploadImage(ctx, record, writer, file)
	})
}

func (strategy *RegularExecutionStrategy) DeleteExecutionImage(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	date = pkg.DateOf(date)
	lockKey := LockKeyExecutionRecord(models.EXECUTION_KIND_REGULAR, missionID, userID, date)
	return strategy.ops.mutate(ctx, lockKey, strategy.loader(missionID, userID, date), strategy.ops.deleteImage)
}

func (strategy *RegularExecutionStrategy) ShareExecutionToFeed(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	err := strategy.ops.allow(ctx, LimitKeyShare(userID), CONFIG_SHARE_RATE_LIMIT_PER_MINUTE, DEFAULT_SHARE_RATE_LIMIT_PER_MINUTE)
	if err != nil {
		return nil, err
	}

	date = pkg.DateOf(date)
	lockKey := LockKeyExecutionRecord(models.EXECUTION_KIND_REGULAR, missionID, userID, date)
	return strategy.ops.mutate(ctx, lockKey, strategy.loader(missionID, userID, date), strategy.ops.share)
}

func (strategy *RegularExecutionStrategy) GetExecutionByDate(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	execution, err := strategy.findExecution(ctx, missionID, userID, date)
	if err != nil {
		return nil, err
	}
	return execution.Response(), nil
}
