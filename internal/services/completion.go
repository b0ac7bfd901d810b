package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"missionlog/internal/datastore"
	"missionlog/internal/interfaces"
	"missionlog/internal/models"
	"missionlog/internal/pkg/caching"
	"missionlog/internal/pkg/metrics"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
)

type CompletionOutcome string

const (
	COMPLETION_OUTCOME_COMPLETED CompletionOutcome = "completed"
	COMPLETION_OUTCOME_DEGRADED  CompletionOutcome = "completed_degraded"
	COMPLETION_OUTCOME_FAILED    CompletionOutcome = "failed"
)

type CompletionResult struct {
	Outcome     CompletionOutcome         `json:"outcome"`
	Execution   *models.ExecutionResponse `json:"execution"`
	ExpEarned   int                       `json:"exp_earned"`
	FailedSteps []string                  `json:"failed_steps,omitempty"`
}

// Completed reports whether the record was durably marked complete.
func (r *CompletionResult) Completed() bool {
	return r != nil && r.Outcome != COMPLETION_OUTCOME_FAILED
}

// Degraded reports whether an enrichment step failed after completion.
func (r *CompletionResult) Degraded() bool {
	return r != nil && r.Outcome == COMPLETION_OUTCOME_DEGRADED
}

type completionRun struct {
	kind        models.ExecutionKind
	userID      int64
	note        string
	shareToFeed bool
	load        recordLoader

	record  models.ExecutionRecord
	writer  recordWriter
	mission *models.Mission
	exp     int
}

type sagaStep struct {
	name     string
	critical bool
	when     func(run *completionRun) bool
	run      func(ctx context.Context, run *completionRun) error
}

// ServiceCompletion is the completion saga. Critical steps abort the run,
// best-effort steps are fenced one by one and only degrade the outcome.
type ServiceCompletion struct {
	container     *do.Injector
	missions      interfaces.MissionStore
	executions    interfaces.ExecutionStore
	instances     interfaces.InstanceStore
	experience    interfaces.ExperienceGranter
	achievements  interfaces.AchievementEvaluator
	feed          interfaces.FeedPublisher
	locker        interfaces.Locker
	serviceConfig *ServiceConfig
	cache         caching.Cache
	metrics       *metrics.Metrics
	logger        logrus.FieldLogger
	now           func() time.Time
	steps         []sagaStep
}

func NewServiceCompletion(container *do.Injector) (*ServiceCompletion, error) {
	missions, err := do.Invoke[interfaces.MissionStore](container)
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

	experience, err := do.Invoke[interfaces.ExperienceGranter](container)
	if err != nil {
		return nil, err
	}

	achievements, err := do.Invoke[interfaces.AchievementEvaluator](container)
	if err != nil {
		return nil, err
	}

	feed, err := do.Invoke[interfaces.FeedPublisher](container)
	if err != nil {
		return nil, err
	}

	lock, err := do.Invoke[interfaces.Locker](container)
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

	m, err := do.Invoke[*metrics.Metrics](container)
	if err != nil {
		return nil, err
	}

	logger, err := do.Invoke[*logrus.Logger](container)
	if err != nil {
		return nil, err
	}

	service := &ServiceCompletion{
		container:     container,
		missions:      missions,
		executions:    executions,
		instances:     instances,
		experience:    experience,
		achievements:  achievements,
		feed:          feed,
		locker:        lock,
		serviceConfig: serviceConfig,
		cache:         cache,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
	service.steps = []sagaStep{
		{name: STEP_LOAD, critical: true, run: service.loadRecord},
		{name: STEP_COMPUTE_REWARD, critical: true, run: service.computeReward},
		{name: STEP_PERSIST, critical: true, run: service.persistCompletion},
		{name: STEP_GRANT_EXPERIENCE, run: service.grantExperience, when: func(run *completionRun) bool { return run.exp > 0 }},
		{name: STEP_EVALUATE_ACHIEVEMENTS, run: service.evaluateAchievements},
		{name: STEP_SHARE_TO_FEED, run: service.shareToFeed, when: func(run *completionRun) bool { return run.shareToFeed }},
	}
	return service, nil
}

// CompleteExecution completes a regular execution owned by userID.
func (service *ServiceCompletion) CompleteExecution(ctx context.Context, executionID int64, userID int64, note string, shareToFeed bool) (*CompletionResult, error) {
	load := func(ctx context.Context) (models.ExecutionRecord, recordWriter, error) {
		execution, err := service.executions.GetExecution(ctx, executionID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, errorx.Wrap(ErrExecutionNotFound, errorx.NotExist)
		}
		if err != nil {
			return nil, nil, err
		}
		return execution, executionWriter{service.executions, execution}, nil
	}

	return service.execute(ctx, &completionRun{
		kind:        models.EXECUTION_KIND_REGULAR,
		userID:      userID,
		note:        note,
		shareToFeed: shareToFeed,
		load:        load,
	})
}

// CompleteInstance completes a daily instance owned by userID.
func (service *ServiceCompletion) CompleteInstance(ctx context.Context, instanceID int64, userID int64, note string, shareToFeed bool) (*CompletionResult, error) {
	load := func(ctx context.Context) (models.ExecutionRecord, recordWriter, error) {
		instance, err := service.instances.GetInstance(ctx, instanceID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, errorx.Wrap(ErrExecutionNotFound, errorx.NotExist)
		}
		if err != nil {
			return nil, nil, err
		}
		return instance, instanceWriter{service.instances, instance}, nil
	}

	return service.execute(ctx, &completionRun{
		kind:        models.EXECUTION_KIND_PINNED,
		userID:      userID,
		note:        note,
		shareToFeed: shareToFeed,
		load:        load,
	})
}

func (service *ServiceCompletion) execute(ctx context.Context, run *completionRun) (*CompletionResult, error) {
	logger := service.logger.WithFields(logrus.Fields{
		"kind":    run.kind,
		"user_id": run.userID,
	})

	result := &CompletionResult{Outcome: COMPLETION_OUTCOME_COMPLETED}
	timeout := service.stepTimeout(ctx)

	// a caller going away after the persist must not cut the enrichment short
	detached := context.WithoutCancel(ctx)
	for _, step := range service.steps {
		if step.when != nil && !step.when(run) {
			continue
		}

		if step.critical {
			if err := step.run(ctx, run); err != nil {
				service.metrics.CompletionStepFailures.WithLabelValues(step.name).Inc()
				service.metrics.CompletionTotal.WithLabelValues(string(run.kind), string(COMPLETION_OUTCOME_FAILED)).Inc()
				logger.WithError(err).WithField("step", step.name).Warn("completion failed")
				return &CompletionResult{Outcome: COMPLETION_OUTCOME_FAILED, FailedSteps: []string{step.name}}, err
			}

			if step.name == STEP_PERSIST {
				invalidateCalendar(detached, service.cache, run.record, logger)
			}
			continue
		}

		if err := service.runBestEffort(detached, timeout, step, run); err != nil {
			service.metrics.CompletionStepFailures.WithLabelValues(step.name).Inc()
			logger.WithError(err).WithFields(logrus.Fields{
				"step":      step.name,
				"record_id": run.record.RecordID(),
			}).Error("completion step failed")
			result.Outcome = COMPLETION_OUTCOME_DEGRADED
			result.FailedSteps = append(result.FailedSteps, step.name)
		}
	}

	result.Execution = run.record.Response()
	result.ExpEarned = run.exp
	service.metrics.CompletionTotal.WithLabelValues(string(run.kind), string(result.Outcome)).Inc()
	return result, nil
}

func (service *ServiceCompletion) runBestEffort(ctx context.Context, timeout time.Duration, step sagaStep, run *completionRun) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", step.name, r)
		}
	}()

	return step.run(ctx, run)
}

func (service *ServiceCompletion) stepTimeout(ctx context.Context) time.Duration {
	seconds, err := service.serviceConfig.GetIntConfig(ctx, CONFIG_SAGA_STEP_TIMEOUT_SECONDS, DEFAULT_SAGA_STEP_TIMEOUT_SECONDS)
	if err != nil {
		service.logger.WithError(err).Warn("read saga step timeout")
	}
	if seconds <= 0 {
		seconds = DEFAULT_SAGA_STEP_TIMEOUT_SECONDS
	}
	return time.Duration(seconds) * time.Second
}

func (service *ServiceCompletion) loadRecord(ctx context.Context, run *completionRun) error {
	record, writer, err := run.load(ctx)
	if err != nil {
		return err
	}

	if record.OwnerID() != run.userID {
		return errorx.Wrap(ErrExecutionNotFound, errorx.NotExist)
	}

	if record.State().Status != models.EXECUTION_STATUS_IN_PROGRESS {
		return errorx.Wrap(ErrExecutionNotInProgress, errorx.Invalid)
	}

	run.record = record
	run.writer = writer
	return nil
}

// computeReward grants the mission's flat reward, there is no partial credit.
func (service *ServiceCompletion) computeReward(ctx context.Context, run *completionRun) error {
	mission, err := service.missions.GetMission(ctx, run.record.MissionRef())
	if errors.Is(err, sql.ErrNoRows) {
		return errorx.Wrap(ErrMissionNotFound, errorx.NotExist)
	}
	if err != nil {
		return err
	}

	run.mission = mission
	run.exp = mission.ExpPerCompletion
	return nil
}

func (service *ServiceCompletion) persistCompletion(ctx context.Context, run *completionRun) error {
	state := run.record.State()
	if err := state.Complete(service.now(), run.exp, run.note); err != nil {
		return errorx.Wrap(err, errorx.Invalid)
	}

	err := run.writer.UpdateState(ctx, models.EXECUTION_STATUS_IN_PROGRESS)
	if errors.Is(err, datastore.ErrStaleRecord) {
		return errorx.Wrap(ErrExecutionNotInProgress, errorx.Invalid)
	}
	return err
}

func (service *ServiceCompletion) grantExperience(ctx context.Context, run *completionRun) error {
	source := ExperienceSource(run.record.Kind(), run.record.RecordID())
	return service.experience.GrantExperience(ctx, run.userID, run.exp, source)
}

func (service *ServiceCompletion) evaluateAchievements(ctx context.Context, run *completionRun) error {
	trigger := models.AchievementTrigger{
		Kind:      run.record.Kind(),
		RecordID:  run.record.RecordID(),
		MissionID: run.record.MissionRef(),
	}
	if completedAt := run.record.State().CompletedAt; completedAt != nil {
		trigger.CompletedAt = *completedAt
	}
	return service.achievements.Evaluate(ctx, run.userID, trigger)
}

// shareToFeed holds the same record lock as the direct image and share
// operations and works on a re-loaded copy of the record.
func (service *ServiceCompletion) shareToFeed(ctx context.Context, run *completionRun) error {
	lockKey := LockKeyExecutionRecord(run.record.Kind(), run.record.MissionRef(), run.record.OwnerID(), run.record.Date())
	unlock, err := service.locker.Lock(ctx, lockKey)
	if err != nil {
		return fmt.Errorf("lock %s: %w", lockKey, err)
	}
	defer unlock()

	record, writer, err := run.load(ctx)
	if err != nil {
		return err
	}
	run.record = record
	run.writer = writer

	state := record.State()
	if state.IsShared() {
		return nil
	}

	feedID, err := service.feed.CreateShareEntry(ctx, models.NewFeedShareContext(record))
	if err != nil {
		return err
	}

	state.FeedID = &feedID
	state.UpdatedAt = service.now()
	if err := writer.UpdateFeed(ctx); err != nil {
		state.FeedID = nil
		if errors.Is(err, datastore.ErrStaleRecord) {
			// another request stored its feed id first
			if fresh, _, lerr := run.load(ctx); lerr == nil {
				run.record = fresh
			}
		}
		return fmt.Errorf("store feed id %d: %w", feedID, err)
	}

	invalidateCalendar(ctx, service.cache, record, service.logger)
	return nil
}
