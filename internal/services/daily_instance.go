package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"missionlog/internal/interfaces"
	"missionlog/internal/models"
	"missionlog/internal/pkg"
	"missionlog/internal/pkg/metrics"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
)

type ServiceDailyInstance struct {
	container    *do.Injector
	participants interfaces.ParticipantStore
	instances    interfaces.InstanceStore
	completion   *ServiceCompletion
	metrics      *metrics.Metrics
	ops          *recordOperations
}

func NewServiceDailyInstance(container *do.Injector) (*ServiceDailyInstance, error) {
	participants, err := do.Invoke[interfaces.ParticipantStore](container)
	if err != nil {
		return nil, err
	}

	instances, err := do.Invoke[interfaces.InstanceStore](container)
	if err != nil {
		return nil, err
	}

	completion, err := do.Invoke[*ServiceCompletion](container)
	if err != nil {
		return nil, err
	}

	m, err := do.Invoke[*metrics.Metrics](container)
	if err != nil {
		return nil, err
	}

	ops, err := newRecordOperations(container)
	if err != nil {
		return nil, err
	}

	return &ServiceDailyInstance{container, participants, instances, completion, m, ops}, nil
}

// GetOrCreateInstance returns the instance of participant for date and
// creates it on first touch. Concurrent first touches insert one row, the
// losers re-read it.
func (service *ServiceDailyInstance) GetOrCreateInstance(ctx context.Context, participant *models.MissionParticipant, date time.Time) (*models.DailyMissionInstance, error) {
	date = pkg.DateOf(date)

	instance, err := service.instances.GetInstanceByDate(ctx, participant.ID, date)
	if err == nil {
		service.metrics.InstanceMaterialized.WithLabelValues("existing").Inc()
		return instance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	instance = models.NewDailyMissionInstance(participant, date, service.ops.now())
	created, err := service.instances.InsertInstanceIfAbsent(ctx, instance)
	if err != nil {
		return nil, err
	}
	if created {
		service.metrics.InstanceMaterialized.WithLabelValues("created").Inc()
		service.ops.logger.WithFields(logrus.Fields{
			"participant_id": participant.ID,
			"user_id":        participant.UserID,
			"date":           date.Format(models.DATE_FORMAT),
		}).Debug("daily instance materialized")
		return instance, nil
	}

	service.metrics.InstanceMaterialized.WithLabelValues("conflict").Inc()
	return service.instances.GetInstanceByDate(ctx, participant.ID, date)
}

func (service *ServiceDailyInstance) instanceFor(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.DailyMissionInstance, error) {
	date = pkg.DateOf(date)
	if date.After(service.ops.today()) {
		return nil, errorx.Wrap(ErrFutureDate, errorx.Validation)
	}

	participant, err := resolveParticipant(ctx, service.participants, missionID, userID)
	if err != nil {
		return nil, err
	}

	return service.GetOrCreateInstance(ctx, participant, date)
}

func (service *ServiceDailyInstance) writer(instance *models.DailyMissionInstance) recordWriter {
	return instanceWriter{service.instances, instance}
}

func (service *ServiceDailyInstance) loader(missionID int64, userID int64, date time.Time) recordLoader {
	return func(ctx context.Context) (models.ExecutionRecord, recordWriter, error) {
		instance, err := service.instanceFor(ctx, missionID, userID, date)
		if err != nil {
			return nil, nil, err
		}
		return instance, service.writer(instance), nil
	}
}

func (service *ServiceDailyInstance) Start(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	return service.ops.start(ctx, userID, service.loader(missionID, userID, date))
}

func (service *ServiceDailyInstance) Skip(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	instance, err := service.instanceFor(ctx, missionID, userID, date)
	if err != nil {
		return nil, err
	}

	return service.ops.skip(ctx, instance, service.writer(instance))
}

func (service *ServiceDailyInstance) Complete(ctx context.Context, missionID int64, userID int64, date time.Time, note string, shareToFeed bool) (*CompletionResult, error) {
	instance, err := service.instanceFor(ctx, missionID, userID, date)
	if err != nil {
		return nil, err
	}

	return service.completion.CompleteInstance(ctx, instance.ID, userID, note, shareToFeed)
}

func (service *ServiceDailyInstance) UploadImage(ctx context.Context, missionID int64, userID int64, date time.Time, file *models.ImageUpload) (*models.ExecutionResponse, error) {
	if err := service.ops.validateImage(ctx, file); err != nil {
		return nil, err
	}

	err := service.ops.allow(ctx, LimitKeyImageUpload(userID), CONFIG_IMAGE_UPLOAD_RATE_LIMIT_PER_MINUTE, DEFAULT_IMAGE_UPLOAD_RATE_LIMIT_PER_MINUTE)
	if err != nil {
		return nil, err
	}

	lockKey := LockKeyExecutionRecord(models.EXECUTION_KIND_PINNED, missionID, userID, pkg.DateOf(date))
	return service.ops.mutate(ctx, lockKey, service.loader(missionID, userID, date), func(ctx context.Context, record models.ExecutionRecord, writer recordWriter) (*models.ExecutionResponse, error) {
		return service.ops.uploadImage(ctx, record, writer, file)
	})
}

func (service *ServiceDailyInstance) DeleteImage(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	lockKey := LockKeyExecutionRecord(models.EXECUTION_KIND_PINNED, missionID, userID, pkg.DateOf(date))
	return service.ops.mutate(ctx, lockKey, service.loader(missionID, userID, date), service.ops.deleteImage)
}

func (service *ServiceDailyInstance) Share(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	err := service.ops.allow(ctx, LimitKeyShare(userID), CONFIG_SHARE_RATE_LIMIT_PER_MINUTE, DEFAULT_SHARE_RATE_LIMIT_PER_MINUTE)
	if err != nil {
		return nil, err
	}

	lockKey := LockKeyExecutionRecord(models.EXECUTION_KIND_PINNED, missionID, userID, pkg.DateOf(date))
	return service.ops.mutate(ctx, lockKey, service.loader(missionID, userID, date), service.ops.share)
}

func (service *ServiceDailyInstance) GetByDate(ctx context.Context, missionID int64, userID int64, date time.Time) (*models.ExecutionResponse, error) {
	instance, err := service.instanceFor(ctx, missionID, userID, date)
	if err != nil {
		return nil, err
	}
	return instance.Response(), nil
}
