package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"missionlog/internal/datastore"
	"missionlog/internal/interfaces"
	"missionlog/internal/models"
	"missionlog/internal/pkg"
	"missionlog/internal/pkg/caching"
	"missionlog/internal/pkg/limiter"
	"missionlog/internal/pkg/locker"

	"github.com/go-redis/redis_rate/v10"
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
)

// ExecutionStrategy is the operation set shared by regular and pinned
// missions. Dates are calendar days, anything below a day is ignored.
type ExecutionStrategy interface {
	StartExecution(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error)
	SkipExecution(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error)
	CompleteExecution(ctx context.Context, missionID int64, userID int64, date time.Time, note string, shareToFeed bool) (*CompletionResult, error)
	UploadExecutionImage(ctx context.Context, missionID int64, userID int64, date time.Time, file *models.ImageUpload) (*models.ExecutionResponse, error)
	DeleteExecutionImage(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error)
	ShareExecutionToFeed(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error)
	GetExecutionByDate(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error)
}

// recordWriter stores one loaded record. Every write is conditional on the
// stored row, image and feed writes touch their own columns only.
type recordWriter interface {
	// UpdateState writes the state columns if the stored status still equals
	// expected.
	UpdateState(ctx context.Context, expected models.ExecutionStatus) error
	UpdateImage(ctx context.Context) error
	// UpdateFeed fails with datastore.ErrStaleRecord when a feed id is
	// already stored.
	UpdateFeed(ctx context.Context) error
}

type recordLoader func(ctx context.Context) (models.ExecutionRecord, recordWriter, error)

type executionWriter struct {
	store     interfaces.ExecutionStore
	execution *models.MissionExecution
}

func (w executionWriter) UpdateState(ctx context.Context, expected models.ExecutionStatus) error {
	return w.store.UpdateExecution(ctx, w.execution, expected)
}

func (w executionWriter) UpdateImage(ctx context.Context) error {
	return w.store.UpdateExecutionImage(ctx, w.execution)
}

func (w executionWriter) UpdateFeed(ctx context.Context) error {
	return w.store.UpdateExecutionFeed(ctx, w.execution)
}

type instanceWriter struct {
	store    interfaces.InstanceStore
	instance *models.DailyMissionInstance
}

func (w instanceWriter) UpdateState(ctx context.Context, expected models.ExecutionStatus) error {
	return w.store.UpdateInstance(ctx, w.instance, expected)
}

func (w instanceWriter) UpdateImage(ctx context.Context) error {
	return w.store.UpdateInstanceImage(ctx, w.instance)
}

func (w instanceWriter) UpdateFeed(ctx context.Context) error {
	return w.store.UpdateInstanceFeed(ctx, w.instance)
}

// recordOperations holds the state machine driven operations that regular
// executions and daily instances have in common.
type recordOperations struct {
	executions    interfaces.ExecutionStore
	instances     interfaces.InstanceStore
	locker        interfaces.Locker
	limiter       interfaces.Limiter
	images        interfaces.ImageStorage
	feed          interfaces.FeedPublisher
	serviceConfig *ServiceConfig
	cache         caching.Cache
	logger        logrus.FieldLogger
	now           func() time.Time
}

func newRecordOperations(container *do.Injector) (*recordOperations, error) {
	executions, err := do.Invoke[interfaces.ExecutionStore](container)
	if err != nil {
		return nil, err
	}

	instances, err := do.Invoke[interfaces.InstanceStore](container)
	if err != nil {
		return nil, err
	}

	lock, err := do.Invoke[interfaces.Locker](container)
	if err != nil {
		return nil, err
	}

	limit, err := do.Invoke[interfaces.Limiter](container)
	if err != nil {
		return nil, err
	}

	images, err := do.Invoke[interfaces.ImageStorage](container)
	if err != nil {
		return nil, err
	}

	feed, err := do.Invoke[interfaces.FeedPublisher](container)
	if err != nil {
		return nil, err
	}

	serviceConfig, err := do.Invoke[*ServiceConfig](container)
	if err != nil {
		return nil, err
	}

	cache, err := do.Invoke[caching.Cache](container)
	if err != nil {
		return nil, err
	}

	logger, err := do.Invoke[*logrus.Logger](container)
	if err != nil {
		return nil, err
	}

	return &recordOperations{executions, instances, lock, limit, images, feed, serviceConfig, cache, logger, time.Now}, nil
}

func (ops *recordOperations) today() time.Time {
	return pkg.DateOf(ops.now())
}

// ensureNoActiveExecution looks at both record kinds: a user runs at most one
// mission at a time.
func (ops *recordOperations) ensureNoActiveExecution(ctx context.Context, userID int64) error {
	running, err := ops.executions.ExistsInProgressExecution(ctx, userID)
	if err != nil {
		return err
	}
	if running {
		return errorx.Wrap(ErrExecutionInProgress, errorx.Invalid)
	}

	running, err = ops.instances.ExistsInProgressInstance(ctx, userID)
	if err != nil {
		return err
	}
	if running {
		return errorx.Wrap(ErrExecutionInProgress, errorx.Invalid)
	}

	return nil
}

func (ops *recordOperations) start(ctx context.Context, userID int64, load recordLoader) (*models.ExecutionResponse, error) {
	unlock, err := ops.locker.Lock(ctx, LockKeyUserExecution(userID))
	if err != nil {
		return nil, lockError(err, ErrUserExecutionLock)
	}
	defer unlock()

	if err := ops.ensureNoActiveExecution(ctx, userID); err != nil {
		return nil, err
	}

	record, writer, err := load(ctx)
	if err != nil {
		return nil, err
	}

	state := record.State()
	previous := state.Status
	if err := state.Start(ops.now()); err != nil {
		return nil, errorx.Wrap(err, errorx.Invalid)
	}

	// the partial unique index on running records is the last line here
	if err := writer.UpdateState(ctx, previous); err != nil {
		return nil, storeError(err, ErrExecutionInProgress)
	}

	return record.Response(), nil
}

func (ops *recordOperations) skip(ctx context.Context, record models.ExecutionRecord, writer recordWriter) (*models.ExecutionResponse, error) {
	state := record.State()
	previous := state.Status
	if err := state.Skip(ops.now()); err != nil {
		return nil, errorx.Wrap(err, errorx.Invalid)
	}

	if err := writer.UpdateState(ctx, previous); err != nil {
		return nil, storeError(err, ErrExecutionChanged)
	}

	return record.Response(), nil
}

// mutate serializes image and feed changes on one record. The record is
// loaded after the lock is held.
func (ops *recordOperations) mutate(ctx context.Context, lockKey string, load recordLoader, fn func(ctx context.Context, record models.ExecutionRecord, writer recordWriter) (*models.ExecutionResponse, error)) (*models.ExecutionResponse, error) {
	unlock, err := ops.locker.Lock(ctx, lockKey)
	if err != nil {
		return nil, lockError(err, ErrExecutionRecordLock)
	}
	defer unlock()

	record, writer, err := load(ctx)
	if err != nil {
		return nil, err
	}

	return fn(ctx, record, writer)
}

func (ops *recordOperations) validateImage(ctx context.Context, file *models.ImageUpload) error {
	if file == nil || file.Body == nil || file.Size <= 0 {
		return errorx.Wrap(ErrImageRequired, errorx.Validation)
	}

	if !AllowedImageTypes[file.ContentType] {
		return errorx.Wrap(ErrImageType, errorx.Validation)
	}

	maxSizeMB, err := ops.serviceConfig.GetIntConfig(ctx, CONFIG_IMAGE_MAX_SIZE_MB, DEFAULT_IMAGE_MAX_SIZE_MB)
	if err != nil {
		ops.logger.WithError(err).Warn("read image size limit")
	}
	if file.Size > int64(maxSizeMB)<<20 {
		return errorx.Wrap(ErrImageTooLarge, errorx.Validation)
	}

	return nil
}

func (ops *recordOperations) allow(ctx context.Context, key string, configKey string, defaultPerMinute int) error {
	perMinute, err := ops.serviceConfig.GetIntConfig(ctx, configKey, defaultPerMinute)
	if err != nil {
		ops.logger.WithError(err).WithField("config", configKey).Warn("read rate limit")
	}

	err = ops.limiter.Allow(ctx, key, redis_rate.PerMinute(perMinute))
	if err != nil {
		if errors.Is(err, limiter.ErrRateLimited) {
			return errorx.Wrap(err, errorx.RateLimiting)
		}
		return err
	}

	return nil
}

// uploadImage deletes the old object before the new one is stored.
func (ops *recordOperations) uploadImage(ctx context.Context, record models.ExecutionRecord, writer recordWriter, file *models.ImageUpload) (*models.ExecutionResponse, error) {
	state := record.State()
	if !state.IsCompleted() {
		return nil, errorx.Wrap(ErrExecutionNotCompleted, errorx.Invalid)
	}

	logger := ops.logger.WithFields(logrus.Fields{
		"kind":      record.Kind(),
		"record_id": record.RecordID(),
		"user_id":   record.OwnerID(),
	})

	previous := state.ImageURL
	if previous != "" {
		if err := ops.images.Delete(ctx, previous); err != nil {
			return nil, err
		}
	}

	url, err := ops.images.Store(ctx, file, record.OwnerID(), record.MissionRef())
	if err != nil {
		if previous != "" {
			state.ImageURL = ""
			state.UpdatedAt = ops.now()
			if werr := writer.UpdateImage(ctx); werr != nil {
				logger.WithError(werr).Error("clear deleted image url")
			}
			invalidateCalendar(ctx, ops.cache, record, logger)
		}
		return nil, err
	}

	state.ImageURL = url
	state.UpdatedAt = ops.now()
	if err := writer.UpdateImage(ctx); err != nil {
		if derr := ops.images.Delete(ctx, url); derr != nil {
			logger.WithError(derr).WithField("url", url).Error("delete orphaned image")
		}
		return nil, storeError(err, ErrExecutionChanged)
	}

	invalidateCalendar(ctx, ops.cache, record, logger)
	return record.Response(), nil
}

func (ops *recordOperations) deleteImage(ctx context.Context, record models.ExecutionRecord, writer recordWriter) (*models.ExecutionResponse, error) {
	state := record.State()
	if !state.IsCompleted() {
		return nil, errorx.Wrap(ErrExecutionNotCompleted, errorx.Invalid)
	}

	if err := ops.images.Delete(ctx, state.ImageURL); err != nil {
		return nil, err
	}

	state.ImageURL = ""
	state.UpdatedAt = ops.now()
	if err := writer.UpdateImage(ctx); err != nil {
		return nil, storeError(err, ErrExecutionChanged)
	}

	invalidateCalendar(ctx, ops.cache, record, ops.logger)
	return record.Response(), nil
}

func (ops *recordOperations) share(ctx context.Context, record models.ExecutionRecord, writer recordWriter) (*models.ExecutionResponse, error) {
	state := record.State()
	if !state.IsCompleted() {
		return nil, errorx.Wrap(ErrExecutionNotCompleted, errorx.Invalid)
	}
	if state.IsShared() {
		return nil, errorx.Wrap(ErrExecutionAlreadyShared, errorx.Invalid)
	}

	feedID, err := ops.feed.CreateShareEntry(ctx, models.NewFeedShareContext(record))
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}

	state.FeedID = &feedID
	state.UpdatedAt = ops.now()
	if err := writer.UpdateFeed(ctx); err != nil {
		ops.logger.WithError(err).WithField("feed_id", feedID).Error("feed entry created but not stored")
		if errors.Is(err, datastore.ErrStaleRecord) {
			return nil, errorx.Wrap(ErrExecutionAlreadyShared, errorx.Invalid)
		}
		return nil, storeError(err, ErrExecutionChanged)
	}

	invalidateCalendar(ctx, ops.cache, record, ops.logger)
	return record.Response(), nil
}

// invalidateCalendar drops the cached month that shows record.
func invalidateCalendar(ctx context.Context, cache caching.Cache, record models.ExecutionRecord, logger logrus.FieldLogger) {
	date := record.Date()
	key := DBKeyMonthlyCalendar(record.OwnerID(), date.Year(), int(date.Month()))
	if err := caching.Invalidate(ctx, cache, key); err != nil {
		logger.WithError(err).WithField("key", key).Warn("invalidate calendar cache")
	}
}

func resolveParticipant(ctx context.Context, participants interfaces.ParticipantStore, missionID int64, userID int64) (*models.MissionParticipant, error) {
	participant, err := participants.GetParticipant(ctx, missionID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errorx.Wrap(ErrParticipantNotFound, errorx.NotExist)
	}
	if err != nil {
		return nil, err
	}
	return participant, nil
}

func lockError(err error, sentinel error) error {
	if errors.Is(err, locker.ErrLocked) {
		return errorx.Wrap(sentinel, errorx.Invalid)
	}
	return err
}

// storeError maps datastore sentinels. conflict is reported for unique
// violations.
func storeError(err error, conflict error) error {
	switch {
	case errors.Is(err, datastore.ErrConflict):
		return errorx.Wrap(conflict, errorx.Invalid)
	case errors.Is(err, datastore.ErrStaleRecord):
		return errorx.Wrap(ErrExecutionChanged, errorx.Invalid)
	}
	return err
}
