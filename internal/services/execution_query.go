package services

import (
	"context"
	"sort"
	"time"

	"missionlog/internal/interfaces"
	"missionlog/internal/models"
	"missionlog/internal/pkg"
	"missionlog/internal/pkg/caching"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const todayMaterializeConcurrency = 4

// ServiceExecutionQuery reads regular executions and daily instances and
// merges them by calendar date.
type ServiceExecutionQuery struct {
	container     *do.Injector
	participants  interfaces.ParticipantStore
	executions    interfaces.ExecutionStore
	instances     interfaces.InstanceStore
	resolver      *ServiceStrategyResolver
	dailyInstance *ServiceDailyInstance
	serviceConfig *ServiceConfig
	cache         caching.Cache
	readonlyCache caching.ReadOnlyCache
	logger        logrus.FieldLogger
	now           func() time.Time
}

func NewServiceExecutionQuery(container *do.Injector) (*ServiceExecutionQuery, error) {
	participants, err := do.Invoke[interfaces.ParticipantStore](container)
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

	resolver, err := do.Invoke[*ServiceStrategyResolver](container)
	if err != nil {
		return nil, err
	}

	dailyInstance, err := do.Invoke[*ServiceDailyInstance](container)
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

	readOnlyCache, err := do.Invoke[caching.ReadOnlyCache](container)
	if err != nil {
		return nil, err
	}

	logger, err := do.Invoke[*logrus.Logger](container)
	if err != nil {
		return nil, err
	}

	return &ServiceExecutionQuery{
		container:     container,
		participants:  participants,
		executions:    executions,
		instances:     instances,
		resolver:      resolver,
		dailyInstance: dailyInstance,
		serviceConfig: serviceConfig,
		cache:         cache,
		readonlyCache: readOnlyCache,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (service *ServiceExecutionQuery) MonthlyCalendar(ctx context.Context, userID int64, year int, month int) (*models.MonthlyCalendar, error) {
	first, last, err := pkg.MonthRange(year, month)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Validation)
	}

	callback := func() (*models.MonthlyCalendar, error) {
		return service.buildCalendar(ctx, userID, year, month, first, last)
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyMonthlyCalendar(userID, year, month), CACHE_TTL_5_MINS, callback)
}

func (service *ServiceExecutionQuery) buildCalendar(ctx context.Context, userID int64, year int, month int, first time.Time, last time.Time) (*models.MonthlyCalendar, error) {
	var (
		executions  []*models.MissionExecution
		instances   []*models.DailyMissionInstance
		executionXP int64
		instanceXP  int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		executions, err = service.executions.ListCompletedExecutions(gctx, userID, first, last)
		return err
	})
	g.Go(func() error {
		var err error
		instances, err = service.instances.ListCompletedInstances(gctx, userID, first, last)
		return err
	})
	g.Go(func() error {
		var err error
		executionXP, err = service.executions.SumExecutionExp(gctx, userID, first, last)
		return err
	})
	g.Go(func() error {
		var err error
		instanceXP, err = service.instances.SumInstanceExp(gctx, userID, first, last)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]models.ExecutionRecord, 0, len(executions)+len(instances))
	for _, execution := range executions {
		records = append(records, execution)
	}
	for _, instance := range instances {
		records = append(records, instance)
	}

	calendar := &models.MonthlyCalendar{
		UserID:           userID,
		Year:             year,
		Month:            month,
		Days:             map[string][]*models.ExecutionResponse{},
		CompletedDates:   []string{},
		TotalExp:         executionXP + instanceXP,
		TotalCompletions: len(records),
	}
	for _, record := range records {
		key := pkg.FormatDate(record.Date())
		if _, ok := calendar.Days[key]; !ok {
			calendar.CompletedDates = append(calendar.CompletedDates, key)
		}
		calendar.Days[key] = append(calendar.Days[key], record.Response())
	}
	// ISO dates sort lexically
	sort.Strings(calendar.CompletedDates)

	return calendar, nil
}

// Today materializes the instance of every pinned mission for today before
// listing, so the view always shows them.
func (service *ServiceExecutionQuery) Today(ctx context.Context, userID int64) (*models.TodayView, error) {
	today := pkg.Today(service.now())

	participants, err := service.participants.ListPinnedParticipants(ctx, userID)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(todayMaterializeConcurrency)
	for _, participant := range participants {
		participant := participant
		g.Go(func() error {
			_, err := service.dailyInstance.GetOrCreateInstance(gctx, participant, today)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		executions []*models.MissionExecution
		instances  []*models.DailyMissionInstance
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		executions, err = service.executions.ListExecutionsByUserAndDate(gctx, userID, today)
		return err
	})
	g.Go(func() error {
		var err error
		instances, err = service.instances.ListInstancesByUserAndDate(gctx, userID, today)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &models.TodayView{
		Date:       pkg.FormatDate(today),
		Executions: make([]*models.ExecutionResponse, 0, len(executions)+len(instances)),
	}
	for _, execution := range executions {
		view.Executions = append(view.Executions, execution.Response())
	}
	for _, instance := range instances {
		view.Executions = append(view.Executions, instance.Response())
	}
	return view, nil
}

// CompletionRate is a percentage of completed records over all records of
// the participant, 0 when there are none.
func (service *ServiceExecutionQuery) CompletionRate(ctx context.Context, missionID int64, userID int64) (*models.CompletionRate, error) {
	responses, err := service.ListByParticipant(ctx, missionID, userID)
	if err != nil {
		return nil, err
	}

	rate := &models.CompletionRate{
		MissionID: missionID,
		UserID:    userID,
		Total:     len(responses),
	}
	for _, response := range responses {
		if response.Status == models.EXECUTION_STATUS_COMPLETED {
			rate.Completed++
		}
	}
	if rate.Total > 0 {
		rate.Rate = 100.0 * float64(rate.Completed) / float64(rate.Total)
	}
	return rate, nil
}

func (service *ServiceExecutionQuery) ListByParticipant(ctx context.Context, missionID int64, userID int64) ([]*models.ExecutionResponse, error) {
	mission, participant, err := service.resolve(ctx, missionID, userID)
	if err != nil {
		return nil, err
	}

	if mission.Kind() == models.EXECUTION_KIND_PINNED {
		instances, err := service.instances.ListInstancesByParticipant(ctx, participant.ID)
		if err != nil {
			return nil, err
		}
		return instanceResponses(instances), nil
	}

	executions, err := service.executions.ListExecutionsByParticipant(ctx, participant.ID)
	if err != nil {
		return nil, err
	}
	return executionResponses(executions), nil
}

func (service *ServiceExecutionQuery) ListInRange(ctx context.Context, missionID int64, userID int64, from time.Time, to time.Time) ([]*models.ExecutionResponse, error) {
	from, to = pkg.DateOf(from), pkg.DateOf(to)
	if from.After(to) {
		return nil, errorx.Wrap(ErrInvalidDateRange, errorx.Validation)
	}

	maxDays, err := service.serviceConfig.GetIntConfig(ctx, CONFIG_MAX_RANGE_DAYS, DEFAULT_MAX_RANGE_DAYS)
	if err != nil {
		service.logger.WithError(err).Warn("read max range days")
	}
	if to.Sub(from) > time.Duration(maxDays)*24*time.Hour {
		return nil, errorx.Wrap(ErrInvalidDateRange, errorx.Validation)
	}

	mission, participant, err := service.resolve(ctx, missionID, userID)
	if err != nil {
		return nil, err
	}

	if mission.Kind() == models.EXECUTION_KIND_PINNED {
		instances, err := service.instances.ListInstancesByParticipantInRange(ctx, participant.ID, from, to)
		if err != nil {
			return nil, err
		}
		return instanceResponses(instances), nil
	}

	executions, err := service.executions.ListExecutionsByParticipantInRange(ctx, participant.ID, from, to)
	if err != nil {
		return nil, err
	}
	return executionResponses(executions), nil
}

func (service *ServiceExecutionQuery) resolve(ctx context.Context, missionID int64, userID int64) (*models.Mission, *models.MissionParticipant, error) {
	mission, err := service.resolver.GetMission(ctx, missionID)
	if err != nil {
		return nil, nil, err
	}

	participant, err := resolveParticipant(ctx, service.participants, missionID, userID)
	if err != nil {
		return nil, nil, err
	}

	return mission, participant, nil
}

func executionResponses(executions []*models.MissionExecution) []*models.ExecutionResponse {
	responses := make([]*models.ExecutionResponse, 0, len(executions))
	for _, execution := range executions {
		responses = append(responses, execution.Response())
	}
	return responses
}

func instanceResponses(instances []*models.DailyMissionInstance) []*models.ExecutionResponse {
	responses := make([]*models.ExecutionResponse, 0, len(instances))
	for _, instance := range instances {
		responses = append(responses, instance.Response())
	}
	return responses
}
