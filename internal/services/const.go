package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"missionlog/internal/models"
)

var ErrMissionNotFound = errors.New("mission not found")
var ErrParticipantNotFound = errors.New("participant not found")
var ErrExecutionNotFound = errors.New("execution not found")
var ErrExecutionInProgress = errors.New("another execution is already in progress")
var ErrExecutionNotInProgress = errors.New("execution is not in progress")
var ErrExecutionNotCompleted = errors.New("only completed executions may carry an image or be shared")
var ErrExecutionAlreadyShared = errors.New("execution already shared")
var ErrExecutionChanged = errors.New("execution was changed by another request")
var ErrUserExecutionLock = errors.New("user execution locked")
var ErrExecutionRecordLock = errors.New("execution locked by another request")
var ErrFutureDate = errors.New("date is in the future")
var ErrInvalidDateRange = errors.New("from must not be after to")
var ErrImageRequired = errors.New("image is required")
var ErrImageTooLarge = errors.New("image is too large")
var ErrImageType = errors.New("unsupported image type")

const (
	CONFIG_SAGA_STEP_TIMEOUT_SECONDS          = "SAGA_STEP_TIMEOUT_SECONDS"
	CONFIG_IMAGE_MAX_SIZE_MB                  = "IMAGE_MAX_SIZE_MB"
	CONFIG_IMAGE_UPLOAD_RATE_LIMIT_PER_MINUTE = "IMAGE_UPLOAD_RATE_LIMIT_PER_MINUTE"
	CONFIG_SHARE_RATE_LIMIT_PER_MINUTE        = "SHARE_RATE_LIMIT_PER_MINUTE"
	CONFIG_MAX_RANGE_DAYS                     = "MAX_RANGE_DAYS"

	DEFAULT_SAGA_STEP_TIMEOUT_SECONDS          = 5
	DEFAULT_IMAGE_MAX_SIZE_MB                  = 10
	DEFAULT_IMAGE_UPLOAD_RATE_LIMIT_PER_MINUTE = 10
	DEFAULT_SHARE_RATE_LIMIT_PER_MINUTE        = 10
	DEFAULT_MAX_RANGE_DAYS                     = 366

	STEP_LOAD                  = "load"
	STEP_COMPUTE_REWARD        = "compute_reward"
	STEP_PERSIST               = "persist"
	STEP_GRANT_EXPERIENCE      = "grant_experience"
	STEP_EVALUATE_ACHIEVEMENTS = "evaluate_achievements"
	STEP_SHARE_TO_FEED         = "share_to_feed"

	CACHE_TTL_1_MIN  = 1 * time.Minute
	CACHE_TTL_5_MINS = 5 * time.Minute
)

var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

func LockKeyUserExecution(userID int64) string {
	return fmt.Sprintf("lock:user-execution:%d", userID)
}

func LockKeyExecutionRecord(kind models.ExecutionKind, missionID int64, userID int64, date time.Time) string {
	return fmt.Sprintf("lock:execution-record:%s:%d:%d:%s", kind, missionID, userID, date.Format(models.DATE_FORMAT))
}

func LimitKeyImageUpload(userID int64) string {
	return fmt.Sprintf("limit:image-upload:%d", userID)
}

func LimitKeyShare(userID int64) string {
	return fmt.Sprintf("limit:share:%d", userID)
}

// db
func DBKeyMission(missionID int64) string {
	return fmt.Sprintf("mission:%d", missionID)
}

func DBKeyConfig(key string) string {
	return fmt.Sprintf("config:%s", strings.ToLower(key))
}

func DBKeyMonthlyCalendar(userID int64, year int, month int) string {
	return fmt.Sprintf("calendar:%d:%04d-%02d", userID, year, month)
}

func DBKeyUserExperience(userID int64) string {
	return fmt.Sprintf("user_experience:%d", userID)
}

func ExperienceSource(kind models.ExecutionKind, recordID int64) string {
	if kind == models.EXECUTION_KIND_REGULAR {
		return fmt.Sprintf("execution:%d", recordID)
	}
	return fmt.Sprintf("instance:%d", recordID)
}
