package models

import "time"

// FeedShareContext is what the feed service receives when a completed
// execution is shared.
type FeedShareContext struct {
	Kind            ExecutionKind `json:"kind"`
	RecordID        int64         `json:"record_id"`
	MissionID       int64         `json:"mission_id"`
	UserID          int64         `json:"user_id"`
	Date            string        `json:"date"`
	Note            string        `json:"note"`
	ImageURL        string        `json:"image_url"`
	ExpEarned       int           `json:"exp_earned"`
	DurationMinutes int           `json:"duration_minutes"`
	CompletedAt     *time.Time    `json:"completed_at"`
}

func NewFeedShareContext(record ExecutionRecord) FeedShareContext {
	state := record.State()
	return FeedShareContext{
		Kind:            record.Kind(),
		RecordID:        record.RecordID(),
		MissionID:       record.MissionRef(),
		UserID:          record.OwnerID(),
		Date:            record.Date().Format(DATE_FORMAT),
		Note:            state.Note,
		ImageURL:        state.ImageURL,
		ExpEarned:       state.ExpEarned,
		DurationMinutes: state.DurationMinutes,
		CompletedAt:     state.CompletedAt,
	}
}
