package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"missionlog/internal/datastore"
	"missionlog/internal/interfaces"
	"missionlog/internal/models"
	"missionlog/internal/pkg/caching"
	"missionlog/internal/pkg/locker"
	"missionlog/internal/pkg/metrics"

	"github.com/go-redis/redis_rate/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func inRange(date, from, to time.Time) bool {
	return !date.Before(from) && !date.After(to)
}

type memMissionStore struct {
	mu       sync.Mutex
	missions map[int64]*models.Mission
}

func (s *memMissionStore) GetMission(ctx context.Context, id int64) (*models.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mission, ok := s.missions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *mission
	return &cp, nil
}

type memParticipantStore struct {
	mu           sync.Mutex
	missions     *memMissionStore
	participants []*models.MissionParticipant
}

func (s *memParticipantStore) GetParticipant(ctx context.Context, missionID int64, userID int64) (*models.MissionParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.MissionID == missionID && p.UserID == userID && p.IsActive() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memParticipantStore) ListPinnedParticipants(ctx context.Context, userID int64) ([]*models.MissionParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.MissionParticipant
	for _, p := range s.participants {
		if p.UserID != userID || !p.IsActive() {
			continue
		}
		mission, err := s.missions.GetMission(ctx, p.MissionID)
		if err != nil || !mission.IsPinned {
			continue
		}
		cp := *p
		cp.Mission = mission
		out = append(out, &cp)
	}
	return out, nil
}

// memExecutionStore enforces the same unique constraints as the table.
type memExecutionStore struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]*models.MissionExecution
	writes    []models.ExecutionStatus
	updateErr error
}

func newMemExecutionStore() *memExecutionStore {
	return &memExecutionStore{rows: map[int64]*models.MissionExecution{}}
}

func (s *memExecutionStore) conflicts(e *models.MissionExecution) bool {
	for id, row := range s.rows {
		if id == e.ID {
			continue
		}
		if row.ParticipantID == e.ParticipantID && row.ExecutionDate.Equal(e.ExecutionDate) {
			return true
		}
		if e.Status == models.EXECUTION_STATUS_IN_PROGRESS && row.UserID == e.UserID && row.Status == models.EXECUTION_STATUS_IN_PROGRESS {
			return true
		}
	}
	return false
}

func (s *memExecutionStore) seed(e *models.MissionExecution) *models.MissionExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	cp := *e
	s.rows[e.ID] = &cp
	return e
}

func (s *memExecutionStore) get(id int64) *models.MissionExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.rows[id]
	return &cp
}

func (s *memExecutionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memExecutionStore) GetExecution(ctx context.Context, id int64) (*models.MissionExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (s *memExecutionStore) GetExecutionByDate(ctx context.Context, participantID int64, date time.Time) (*models.MissionExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ParticipantID == participantID && row.ExecutionDate.Equal(date) {
			cp := *row
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memExecutionStore) ExistsInProgressExecution(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.UserID == userID && row.Status == models.EXECUTION_STATUS_IN_PROGRESS {
			return true, nil
		}
	}
	return false, nil
}

func (s *memExecutionStore) InsertExecution(ctx context.Context, execution *models.MissionExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts(execution) {
		return datastore.ErrConflict
	}
	s.nextID++
	execution.ID = s.nextID
	cp := *execution
	s.rows[execution.ID] = &cp
	s.writes = append(s.writes, execution.Status)
	return nil
}

func (s *memExecutionStore) UpdateExecution(ctx context.Context, execution *models.MissionExecution, expected models.ExecutionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	row, ok := s.rows[execution.ID]
	if !ok || row.Status != expected {
		return datastore.ErrStaleRecord
	}
	if s.conflicts(execution) {
		return datastore.ErrConflict
	}
	cp := *execution
	s.rows[execution.ID] = &cp
	s.writes = append(s.writes, execution.Status)
	return nil
}

func (s *memExecutionStore) UpdateExecutionImage(ctx context.Context, execution *models.MissionExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	row, ok := s.rows[execution.ID]
	if !ok || !row.IsCompleted() {
		return datastore.ErrStaleRecord
	}
	row.ImageURL = execution.ImageURL
	row.UpdatedAt = execution.UpdatedAt
	return nil
}

func (s *memExecutionStore) UpdateExecutionFeed(ctx context.Context, execution *models.MissionExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	row, ok := s.rows[execution.ID]
	if !ok || !row.IsCompleted() || row.FeedID != nil {
		return datastore.ErrStaleRecord
	}
	row.FeedID = execution.FeedID
	row.UpdatedAt = execution.UpdatedAt
	return nil
}

func (s *memExecutionStore) filter(match func(row *models.MissionExecution) bool) []*models.MissionExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.MissionExecution
	for _, row := range s.rows {
		if match(row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memExecutionStore) ListExecutionsByParticipant(ctx context.Context, participantID int64) ([]*models.MissionExecution, error) {
	return s.filter(func(row *models.MissionExecution) bool { return row.ParticipantID == participantID }), nil
}

func (s *memExecutionStore) ListExecutionsByParticipantInRange(ctx context.Context, participantID int64, from, to time.Time) ([]*models.MissionExecution, error) {
	return s.filter(func(row *models.MissionExecution) bool {
		return row.ParticipantID == participantID && inRange(row.ExecutionDate, from, to)
	}), nil
}

func (s *memExecutionStore) ListCompletedExecutions(ctx context.Context, userID int64, from, to time.Time) ([]*models.MissionExecution, error) {
	return s.filter(func(row *models.MissionExecution) bool {
		return row.UserID == userID && row.IsCompleted() && inRange(row.ExecutionDate, from, to)
	}), nil
}

func (s *memExecutionStore) ListExecutionsByUserAndDate(ctx context.Context, userID int64, date time.Time) ([]*models.MissionExecution, error) {
	return s.filter(func(row *models.MissionExecution) bool {
		return row.UserID == userID && row.ExecutionDate.Equal(date)
	}), nil
}

func (s *memExecutionStore) SumExecutionExp(ctx context.Context, userID int64, from, to time.Time) (int64, error) {
	rows, _ := s.ListCompletedExecutions(ctx, userID, from, to)
	var total int64
	for _, row := range rows {
		total += int64(row.ExpEarned)
	}
	return total, nil
}

func (s *memExecutionStore) CountCompletedExecutions(ctx context.Context, userID int64) (int, error) {
	rows := s.filter(func(row *models.MissionExecution) bool { return row.UserID == userID && row.IsCompleted() })
	return len(rows), nil
}

type memInstanceStore struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]*models.DailyMissionInstance
	inserts   int
	updateErr error
}

func newMemInstanceStore() *memInstanceStore {
	return &memInstanceStore{rows: map[int64]*models.DailyMissionInstance{}}
}

func (s *memInstanceStore) seed(i *models.DailyMissionInstance) *models.DailyMissionInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	i.ID = s.nextID
	cp := *i
	s.rows[i.ID] = &cp
	return i
}

func (s *memInstanceStore) get(id int64) *models.DailyMissionInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.rows[id]
	return &cp
}

func (s *memInstanceStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memInstanceStore) GetInstance(ctx context.Context, id int64) (*models.DailyMissionInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (s *memInstanceStore) GetInstanceByDate(ctx context.Context, participantID int64, date time.Time) (*models.DailyMissionInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ParticipantID == participantID && row.InstanceDate.Equal(date) {
			cp := *row
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memInstanceStore) ExistsInstanceByDate(ctx context.Context, participantID int64, date time.Time) (bool, error) {
	_, err := s.GetInstanceByDate(ctx, participantID, date)
	return err == nil, nil
}

func (s *memInstanceStore) ExistsInProgressInstance(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.UserID == userID && row.Status == models.EXECUTION_STATUS_IN_PROGRESS {
			return true, nil
		}
	}
	return false, nil
}

func (s *memInstanceStore) InsertInstanceIfAbsent(ctx context.Context, instance *models.DailyMissionInstance) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ParticipantID == instance.ParticipantID && row.InstanceDate.Equal(instance.InstanceDate) {
			return false, nil
		}
	}
	s.nextID++
	s.inserts++
	instance.ID = s.nextID
	cp := *instance
	s.rows[instance.ID] = &cp
	return true, nil
}

func (s *memInstanceStore) UpdateInstance(ctx context.Context, instance *models.DailyMissionInstance, expected models.ExecutionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	row, ok := s.rows[instance.ID]
	if !ok || row.Status != expected {
		return datastore.ErrStaleRecord
	}
	if instance.Status == models.EXECUTION_STATUS_IN_PROGRESS {
		for id, other := range s.rows {
			if id != instance.ID && other.UserID == instance.UserID && other.Status == models.EXECUTION_STATUS_IN_PROGRESS {
				return datastore.ErrConflict
			}
		}
	}
	cp := *instance
	s.rows[instance.ID] = &cp
	return nil
}

func (s *memInstanceStore) UpdateInstanceImage(ctx context.Context, instance *models.DailyMissionInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	row, ok := s.rows[instance.ID]
	if !ok || !row.IsCompleted() {
		return datastore.ErrStaleRecord
	}
	row.ImageURL = instance.ImageURL
	row.UpdatedAt = instance.UpdatedAt
	return nil
}

func (s *memInstanceStore) UpdateInstanceFeed(ctx context.Context, instance *models.DailyMissionInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	row, ok := s.rows[instance.ID]
	if !ok || !row.IsCompleted() || row.FeedID != nil {
		return datastore.ErrStaleRecord
	}
	row.FeedID = instance.FeedID
	row.UpdatedAt = instance.UpdatedAt
	return nil
}

func (s *memInstanceStore) filter(match func(row *models.DailyMissionInstance) bool) []*models.DailyMissionInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DailyMissionInstance
	for _, row := range s.rows {
		if match(row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memInstanceStore) ListInstancesByParticipant(ctx context.Context, participantID int64) ([]*models.DailyMissionInstance, error) {
	return s.filter(func(row *models.DailyMissionInstance) bool { return row.ParticipantID == participantID }), nil
}

func (s *memInstanceStore) ListInstancesByParticipantInRange(ctx context.Context, participantID int64, from, to time.Time) ([]*models.DailyMissionInstance, error) {
	return s.filter(func(row *models.DailyMissionInstance) bool {
		return row.ParticipantID == participantID && inRange(row.InstanceDate, from, to)
	}), nil
}

func (s *memInstanceStore) ListCompletedInstances(ctx context.Context, userID int64, from, to time.Time) ([]*models.DailyMissionInstance, error) {
	return s.filter(func(row *models.DailyMissionInstance) bool {
		return row.UserID == userID && row.IsCompleted() && inRange(row.InstanceDate, from, to)
	}), nil
}

func (s *memInstanceStore) ListInstancesByUserAndDate(ctx context.Context, userID int64, date time.Time) ([]*models.DailyMissionInstance, error) {
	return s.filter(func(row *models.DailyMissionInstance) bool {
		return row.UserID == userID && row.InstanceDate.Equal(date)
	}), nil
}

func (s *memInstanceStore) SumInstanceExp(ctx context.Context, userID int64, from, to time.Time) (int64, error) {
	rows, _ := s.ListCompletedInstances(ctx, userID, from, to)
	var total int64
	for _, row := range rows {
		total += int64(row.ExpEarned)
	}
	return total, nil
}

func (s *memInstanceStore) CountCompletedInstances(ctx context.Context, userID int64) (int, error) {
	rows := s.filter(func(row *models.DailyMissionInstance) bool { return row.UserID == userID && row.IsCompleted() })
	return len(rows), nil
}

type memConfigStore struct {
	values map[string]string
}

func (s *memConfigStore) GetConfigByKey(ctx context.Context, key string) (*models.Config, error) {
	value, ok := s.values[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.Config{Key: key, Value: value}, nil
}

type memAchievementStore struct {
	mu       sync.Mutex
	unlocked map[string]*models.UserAchievement
}

func (s *memAchievementStore) UnlockAchievement(ctx context.Context, achievement *models.UserAchievement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d:%s", achievement.UserID, achievement.Code)
	if _, ok := s.unlocked[key]; ok {
		return false, nil
	}
	s.unlocked[key] = achievement
	return true, nil
}

func (s *memAchievementStore) ListAchievements(ctx context.Context, userID int64) ([]*models.UserAchievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.UserAchievement
	for _, a := range s.unlocked {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type memExperienceStore struct {
	mu      sync.Mutex
	sources map[string]bool
	totals  map[int64]*models.UserExperience
}

func (s *memExperienceStore) AddExperience(ctx context.Context, userID int64, amount int, source string) (*models.UserExperience, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	experience, ok := s.totals[userID]
	if !ok {
		experience = &models.UserExperience{UserID: userID, Level: 1}
		s.totals[userID] = experience
	}
	if s.sources[source] {
		return experience, false, nil
	}
	s.sources[source] = true
	experience.TotalExp += int64(amount)
	experience.Level = models.LevelForExperience(experience.TotalExp)
	return experience, true, nil
}

func (s *memExperienceStore) GetUserExperience(ctx context.Context, userID int64) (*models.UserExperience, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	experience, ok := s.totals[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *experience
	return &cp, nil
}

// fakeLocker behaves like a non-blocking distributed lock.
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	disabled bool
}

func (l *fakeLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.disabled {
		return func() {}, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, locker.ErrLocked
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type fakeLimiter struct {
	mu   sync.Mutex
	err  error
	keys []string
}

func (l *fakeLimiter) Allow(ctx context.Context, key string, limit redis_rate.Limit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return l.err
}

type fakeImageStorage struct {
	mu       sync.Mutex
	calls    []string
	next     int
	storeErr error
}

func (s *fakeImageStorage) Store(ctx context.Context, file *models.ImageUpload, userID int64, missionID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return "", s.storeErr
	}
	if _, err := io.Copy(io.Discard, file.Body); err != nil {
		return "", err
	}
	s.next++
	url := fmt.Sprintf("https://cdn.test/missions/%d/users/%d/%d.png", missionID, userID, s.next)
	s.calls = append(s.calls, "store:"+url)
	return url, nil
}

func (s *fakeImageStorage) Delete(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if url == "" {
		return nil
	}
	s.calls = append(s.calls, "delete:"+url)
	return nil
}

// fakeFeed runs hook once, before the first entry is created.
type fakeFeed struct {
	mu     sync.Mutex
	nextID int64
	shares []models.FeedShareContext
	err    error
	hook   func()
}

func (f *fakeFeed) CreateShareEntry(ctx context.Context, share models.FeedShareContext) (int64, error) {
	f.mu.Lock()
	hook := f.hook
	f.hook = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	f.shares = append(f.shares, share)
	return 1000 + f.nextID, nil
}

type experienceGrant struct {
	UserID int64
	Amount int
	Source string
}

type fakeExperience struct {
	mu     sync.Mutex
	grants []experienceGrant
	err    error
	block  bool
}

func (f *fakeExperience) GrantExperience(ctx context.Context, userID int64, amount int, source string) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.grants = append(f.grants, experienceGrant{userID, amount, source})
	return nil
}

type fakeAchievements struct {
	mu       sync.Mutex
	triggers []models.AchievementTrigger
	panics   bool
	hook     func()
}

func (f *fakeAchievements) Evaluate(ctx context.Context, userID int64, trigger models.AchievementTrigger) error {
	if f.panics {
		panic("achievement table missing")
	}
	if f.hook != nil {
		f.hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	return nil
}

const (
	testUserID     int64 = 7
	regularMission int64 = 1
	otherMission   int64 = 2
	pinnedMission  int64 = 3
	pinnedMission2 int64 = 4
	missionReward        = 25
	pinnedReward         = 10
)

type fixture struct {
	container    *do.Injector
	missions     *memMissionStore
	participants *memParticipantStore
	executions   *memExecutionStore
	instances    *memInstanceStore
	config       *memConfigStore
	locker       *fakeLocker
	limiter      *fakeLimiter
	images       *fakeImageStorage
	feed         *fakeFeed
	experience   *fakeExperience
	achievements *fakeAchievements
	hook         *test.Hook

	mu  sync.Mutex
	now time.Time
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) today() time.Time {
	return time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) participant(missionID int64, userID int64) *models.MissionParticipant {
	f.participants.mu.Lock()
	defer f.participants.mu.Unlock()
	for _, p := range f.participants.participants {
		if p.MissionID == missionID && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (f *fixture) enroll(missionID int64, userID int64) *models.MissionParticipant {
	f.participants.mu.Lock()
	defer f.participants.mu.Unlock()
	p := &models.MissionParticipant{
		ID:        int64(len(f.participants.participants) + 1),
		MissionID: missionID,
		UserID:    userID,
		Status:    models.PARTICIPANT_STATUS_IN_PROGRESS,
	}
	f.participants.participants = append(f.participants.participants, p)
	return p
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCache(t, caching.NopCache{})
}

// newFixtureWithCache serves cache as both the primary and the read only
// cache.
func newFixtureWithCache(t *testing.T, cache caching.Cache) *fixture {
	t.Helper()

	missions := &memMissionStore{missions: map[int64]*models.Mission{
		regularMission: {ID: regularMission, Title: "Read 20 pages", ExpPerCompletion: missionReward},
		otherMission:   {ID: otherMission, Title: "Run 5k", ExpPerCompletion: missionReward},
		pinnedMission:  {ID: pinnedMission, Title: "Meditate", IsPinned: true, ExpPerCompletion: pinnedReward},
		pinnedMission2: {ID: pinnedMission2, Title: "Journal", IsPinned: true, ExpPerCompletion: pinnedReward},
	}}

	f := &fixture{
		container:    do.New(),
		missions:     missions,
		participants: &memParticipantStore{missions: missions},
		executions:   newMemExecutionStore(),
		instances:    newMemInstanceStore(),
		config:       &memConfigStore{values: map[string]string{}},
		locker:       &fakeLocker{held: map[string]bool{}},
		limiter:      &fakeLimiter{},
		images:       &fakeImageStorage{},
		feed:         &fakeFeed{},
		experience:   &fakeExperience{},
		achievements: &fakeAchievements{},
		now:          time.Date(2024, 12, 15, 9, 0, 0, 0, time.UTC),
	}

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f.hook = hook

	m, err := metrics.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	i := f.container
	do.ProvideValue[*logrus.Logger](i, logger)
	do.ProvideValue[*metrics.Metrics](i, m)
	do.ProvideValue[caching.Cache](i, cache)
	do.ProvideValue[caching.ReadOnlyCache](i, cache)
	do.ProvideValue[interfaces.MissionStore](i, f.missions)
	do.ProvideValue[interfaces.ParticipantStore](i, f.participants)
	do.ProvideValue[interfaces.ExecutionStore](i, f.executions)
	do.ProvideValue[interfaces.InstanceStore](i, f.instances)
	do.ProvideValue[interfaces.ConfigStore](i, f.config)
	do.ProvideValue[interfaces.Locker](i, f.locker)
	do.ProvideValue[interfaces.Limiter](i, f.limiter)
	do.ProvideValue[interfaces.ImageStorage](i, f.images)
	do.ProvideValue[interfaces.FeedPublisher](i, f.feed)
	do.ProvideValue[interfaces.ExperienceGranter](i, f.experience)
	do.ProvideValue[interfaces.AchievementEvaluator](i, f.achievements)

	do.Provide(i, NewServiceConfig)
	do.Provide(i, NewServiceCompletion)
	do.Provide(i, NewServiceDailyInstance)
	do.Provide(i, NewRegularExecutionStrategy)
	do.Provide(i, NewPinnedExecutionStrategy)
	do.Provide(i, NewServiceStrategyResolver)
	do.Provide(i, NewServiceExecutionQuery)

	do.MustInvoke[*ServiceCompletion](i).now = f.clock
	do.MustInvoke[*ServiceDailyInstance](i).ops.now = f.clock
	do.MustInvoke[*RegularExecutionStrategy](i).ops.now = f.clock
	do.MustInvoke[*ServiceExecutionQuery](i).now = f.clock

	return f
}

// newLocalCache is a go-redis/cache with only its in-process tier.
func newLocalCache(t *testing.T) caching.Cache {
	t.Helper()
	cache, err := caching.NewCacheRedis(nil, true)
	require.NoError(t, err)
	return cache
}

func (f *fixture) resolver() *ServiceStrategyResolver {
	return do.MustInvoke[*ServiceStrategyResolver](f.container)
}

func (f *fixture) regular() *RegularExecutionStrategy {
	return do.MustInvoke[*RegularExecutionStrategy](f.container)
}

func (f *fixture) pinned() *PinnedExecutionStrategy {
	return do.MustInvoke[*PinnedExecutionStrategy](f.container)
}

func (f *fixture) dailyInstance() *ServiceDailyInstance {
	return do.MustInvoke[*ServiceDailyInstance](f.container)
}

func (f *fixture) completion() *ServiceCompletion {
	return do.MustInvoke[*ServiceCompletion](f.container)
}

func (f *fixture) query() *ServiceExecutionQuery {
	return do.MustInvoke[*ServiceExecutionQuery](f.container)
}
