package models

import (
	"time"

	"github.com/uptrace/bun"
)

const EXP_PER_LEVEL = 100

type UserExperience struct {
	bun.BaseModel `bun:"table:user_experience"`
	UserID        int64     `bun:"user_id,pk" json:"user_id"`
	TotalExp      int64     `bun:"total_exp,notnull,default:0" json:"total_exp"`
	Level         int       `bun:"level,notnull,default:1" json:"level"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// ExperienceHistory rows are keyed by source so a grant for the same
// execution is recorded at most once.
type ExperienceHistory struct {
	bun.BaseModel `bun:"table:experience_history"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID        int64     `bun:"user_id,notnull" json:"user_id"`
	Amount        int       `bun:"amount,notnull" json:"amount"`
	Source        string    `bun:"source,notnull" json:"source"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func LevelForExperience(total int64) int {
	if total < 0 {
		return 1
	}
	return 1 + int(total/EXP_PER_LEVEL)
}
