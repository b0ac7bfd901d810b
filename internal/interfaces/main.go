package interfaces

import (
	"context"
	"time"

	"missionlog/internal/models"

	"github.com/go-redis/redis_rate/v10"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) error
}

// Locker returns a release func once the named lock is held.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type ImageStorage interface {
	Store(ctx context.Context, file *models.ImageUpload, userID int64, missionID int64) (string, error)
	Delete(ctx context.Context, url string) error
}

type FeedPublisher interface {
	CreateShareEntry(ctx context.Context, share models.FeedShareContext) (int64, error)
}

type ExperienceGranter interface {
	GrantExperience(ctx context.Context, userID int64, amount int, source string) error
}

type AchievementEvaluator interface {
	Evaluate(ctx context.Context, userID int64, trigger models.AchievementTrigger) error
}

type MissionStore interface {
	GetMission(ctx context.Context, id int64) (*models.Mission, error)
}

type ParticipantStore interface {
	GetParticipant(ctx context.Context, missionID int64, userID int64) (*models.MissionParticipant, error)
	ListPinnedParticipants(ctx context.Context, userID int64) ([]*models.MissionParticipant, error)
}

type ExecutionStore interface {
	GetExecution(ctx context.Context, id int64) (*models.MissionExecution, error)
	GetExecutionByDate(ctx context.Context, participantID int64, date time.Time) (*models.MissionExecution, error)
	ExistsInProgressExecution(ctx context.Context, userID int64) (bool, error)
	InsertExecution(ctx context.Context, execution *models.MissionExecution) error
	UpdateExecution(ctx context.Context, execution *models.MissionExecution, expected models.ExecutionStatus) error
	UpdateExecutionImage(ctx context.Context, execution *models.MissionExecution) error
	UpdateExecutionFeed(ctx context.Context, execution *models.MissionExecution) error
	ListExecutionsByParticipant(ctx context.Context, participantID int64) ([]*models.MissionExecution, error)
	ListExecutionsByParticipantInRange(ctx context.Context, participantID int64, from, to time.Time) ([]*models.MissionExecution, error)
	ListCompletedExecutions(ctx context.Context, userID int64, from, to time.Time) ([]*models.MissionExecution, error)
	ListExecutionsByUserAndDate(ctx context.Context, userID int64, date time.Time) ([]*models.MissionExecution, error)
	SumExecutionExp(ctx context.Context, userID int64, from, to time.Time) (int64, error)
	CountCompletedExecutions(ctx context.Context, userID int64) (int, error)
}

type InstanceStore interface {
	GetInstance(ctx context.Context, id int64) (*models.DailyMissionInstance, error)
	GetInstanceByDate(ctx context.Context, participantID int64, date time.Time) (*models.DailyMissionInstance, error)
	ExistsInstanceByDate(ctx context.Context, participantID int64, date time.Time) (bool, error)
	ExistsInProgressInstance(ctx context.Context, userID int64) (bool, error)
	InsertInstanceIfAbsent(ctx context.Context, instance *models.DailyMissionInstance) (bool, error)
	UpdateInstance(ctx context.Context, instance *models.DailyMissionInstance, expected models.ExecutionStatus) error
	UpdateInstanceImage(ctx context.Context, instance *models.DailyMissionInstance) error
	UpdateInstanceFeed(ctx context.Context, instance *models.DailyMissionInstance) error
	ListInstancesByParticipant(ctx context.Context, participantID int64) ([]*models.DailyMissionInstance, error)
	ListInstancesByParticipantInRange(ctx context.Context, participantID int64, from, to time.Time) ([]*models.DailyMissionInstance, error)
	ListCompletedInstances(ctx context.Context, userID int64, from, to time.Time) ([]*models.DailyMissionInstance, error)
	ListInstancesByUserAndDate(ctx context.Context, userID int64, date time.Time) ([]*models.DailyMissionInstance, error)
	SumInstanceExp(ctx context.Context, userID int64, from, to time.Time) (int64, error)
	CountCompletedInstances(ctx context.Context, userID int64) (int, error)
}

type ExperienceStore interface {
	AddExperience(ctx context.Context, userID int64, amount int, source string) (*models.UserExperience, bool, error)
	GetUserExperience(ctx context.Context, userID int64) (*models.UserExperience, error)
}

type AchievementStore interface {
	UnlockAchievement(ctx context.Context, achievement *models.UserAchievement) (bool, error)
	ListAchievements(ctx context.Context, userID int64) ([]*models.UserAchievement, error)
}

type ConfigStore interface {
	GetConfigByKey(ctx context.Context, key string) (*models.Config, error)
}
