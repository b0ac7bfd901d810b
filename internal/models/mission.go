package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	MISSION_VISIBILITY_PUBLIC  = "public"
	MISSION_VISIBILITY_PRIVATE = "private"

	MISSION_TYPE_PERSONAL = "personal"
	MISSION_TYPE_GUILD    = "guild"

	MISSION_INTERVAL_DAILY  = "daily"
	MISSION_INTERVAL_WEEKLY = "weekly"
	MISSION_INTERVAL_ONCE   = "once"

	PARTICIPANT_STATUS_IN_PROGRESS = "in_progress"
	PARTICIPANT_STATUS_ACCEPTED    = "accepted"
	PARTICIPANT_STATUS_LEFT        = "left"
)

type Mission struct {
	bun.BaseModel    `bun:"table:mission"`
	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	Title            string    `bun:"title,notnull" json:"title"`
	Description      string    `bun:"description" json:"description"`
	CreatorID        int64     `bun:"creator_id,notnull" json:"creator_id"`
	Visibility       string    `bun:"visibility,notnull,default:'public'" json:"visibility"`
	Type             string    `bun:"type,notnull,default:'personal'" json:"type"`
	Interval         string    `bun:"interval,notnull,default:'daily'" json:"interval"`
	IsPinned         bool      `bun:"is_pinned,notnull,default:false" json:"is_pinned"`
	ExpPerCompletion int       `bun:"exp_per_completion,notnull,default:0" json:"exp_per_completion"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (m *Mission) Kind() ExecutionKind {
	if m.IsPinned {
		return EXECUTION_KIND_PINNED
	}
	return EXECUTION_KIND_REGULAR
}

type MissionParticipant struct {
	bun.BaseModel `bun:"table:mission_participant"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	MissionID     int64     `bun:"mission_id,notnull" json:"mission_id"`
	UserID        int64     `bun:"user_id,notnull" json:"user_id"`
	Status        string    `bun:"status,notnull,default:'in_progress'" json:"status"`
	JoinedAt      time.Time `bun:"joined_at,nullzero,notnull,default:current_timestamp" json:"joined_at"`

	Mission *Mission `bun:"rel:belongs-to,join:mission_id=id" json:"mission,omitempty"`
}

func (p *MissionParticipant) IsActive() bool {
	return p.Status != PARTICIPANT_STATUS_LEFT
}
