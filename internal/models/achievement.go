package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Achievement struct {
	Code      string `json:"code"`
	Title     string `json:"title"`
	Threshold int    `json:"threshold"`
}

// Achievements are unlocked by the total number of completed executions
// and daily instances of a user.
var Achievements = []Achievement{
	{Code: "FIRST_STEP", Title: "First Step", Threshold: 1},
	{Code: "HABIT_BUILDER", Title: "Habit Builder", Threshold: 10},
	{Code: "DEDICATED", Title: "Dedicated", Threshold: 50},
	{Code: "CENTURION", Title: "Centurion", Threshold: 100},
}

type UserAchievement struct {
	bun.BaseModel `bun:"table:user_achievement"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID        int64     `bun:"user_id,notnull" json:"user_id"`
	Code          string    `bun:"code,notnull" json:"code"`
	Title         string    `bun:"title,notnull" json:"title"`
	UnlockedAt    time.Time `bun:"unlocked_at,nullzero,notnull,default:current_timestamp" json:"unlocked_at"`
}

type AchievementTrigger struct {
	Kind        ExecutionKind `json:"kind"`
	RecordID    int64         `json:"record_id"`
	MissionID   int64         `json:"mission_id"`
	CompletedAt time.Time     `json:"completed_at"`
}
