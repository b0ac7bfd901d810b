package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type ExecutionKind string

const (
	EXECUTION_KIND_REGULAR ExecutionKind = "regular"
	EXECUTION_KIND_PINNED  ExecutionKind = "pinned"
)

type ExecutionStatus string

const (
	EXECUTION_STATUS_PENDING     ExecutionStatus = "PENDING"
	EXECUTION_STATUS_IN_PROGRESS ExecutionStatus = "IN_PROGRESS"
	EXECUTION_STATUS_COMPLETED   ExecutionStatus = "COMPLETED"
	EXECUTION_STATUS_SKIPPED     ExecutionStatus = "SKIPPED"
)

const DATE_FORMAT = "2006-01-02"

var ErrInvalidTransition = errors.New("invalid execution status transition")

var executionTransitions = map[ExecutionStatus][]ExecutionStatus{
	EXECUTION_STATUS_PENDING:     {EXECUTION_STATUS_IN_PROGRESS, EXECUTION_STATUS_SKIPPED},
	EXECUTION_STATUS_IN_PROGRESS: {EXECUTION_STATUS_COMPLETED, EXECUTION_STATUS_SKIPPED},
}

func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	for _, allowed := range executionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ExecutionState is the part of a record shared by regular executions and
// daily instances. All status changes go through its methods.
type ExecutionState struct {
	Status          ExecutionStatus `bun:"status,notnull,default:'PENDING'" json:"status"`
	StartedAt       *time.Time      `bun:"started_at" json:"started_at"`
	CompletedAt     *time.Time      `bun:"completed_at" json:"completed_at"`
	DurationMinutes int             `bun:"duration_minutes,notnull,default:0" json:"duration_minutes"`
	ExpEarned       int             `bun:"exp_earned,notnull,default:0" json:"exp_earned"`
	Note            string          `bun:"note" json:"note"`
	ImageURL        string          `bun:"image_url" json:"image_url"`
	FeedID          *int64          `bun:"feed_id" json:"feed_id"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (s *ExecutionState) transition(next ExecutionStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, next)
	}
	s.Status = next
	return nil
}

func (s *ExecutionState) Start(now time.Time) error {
	if err := s.transition(EXECUTION_STATUS_IN_PROGRESS); err != nil {
		return err
	}
	s.StartedAt = &now
	s.UpdatedAt = now
	return nil
}

func (s *ExecutionState) Skip(now time.Time) error {
	if err := s.transition(EXECUTION_STATUS_SKIPPED); err != nil {
		return err
	}
	s.UpdatedAt = now
	return nil
}

// Complete stamps the completion time, the whole minutes elapsed since start
// and the experience earned.
func (s *ExecutionState) Complete(now time.Time, exp int, note string) error {
	if err := s.transition(EXECUTION_STATUS_COMPLETED); err != nil {
		return err
	}
	s.CompletedAt = &now
	s.DurationMinutes = 0
	if s.StartedAt != nil && now.After(*s.StartedAt) {
		s.DurationMinutes = int(now.Sub(*s.StartedAt) / time.Minute)
	}
	s.ExpEarned = exp
	s.Note = note
	s.UpdatedAt = now
	return nil
}

func (s *ExecutionState) IsCompleted() bool {
	return s.Status == EXECUTION_STATUS_COMPLETED
}

func (s *ExecutionState) IsShared() bool {
	return s.FeedID != nil
}

// ExecutionRecord is implemented by both record kinds so that completion,
// image and feed handling can be written once.
type ExecutionRecord interface {
	State() *ExecutionState
	Kind() ExecutionKind
	RecordID() int64
	OwnerID() int64
	MissionRef() int64
	Date() time.Time
	Response() *ExecutionResponse
}

type MissionExecution struct {
	bun.BaseModel `bun:"table:mission_execution"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	ParticipantID int64     `bun:"participant_id,notnull" json:"participant_id"`
	MissionID     int64     `bun:"mission_id,notnull" json:"mission_id"`
	UserID        int64     `bun:"user_id,notnull" json:"user_id"`
	ExecutionDate time.Time `bun:"execution_date,type:date,notnull" json:"execution_date"`
	ExecutionState
}

func NewMissionExecution(participant *MissionParticipant, date time.Time, now time.Time) *MissionExecution {
	return &MissionExecution{
		ParticipantID: participant.ID,
		MissionID:     participant.MissionID,
		UserID:        participant.UserID,
		ExecutionDate: date,
		ExecutionState: ExecutionState{
			Status:    EXECUTION_STATUS_PENDING,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (e *MissionExecution) State() *ExecutionState { return &e.ExecutionState }
func (e *MissionExecution) Kind() ExecutionKind    { return EXECUTION_KIND_REGULAR }
func (e *MissionExecution) RecordID() int64        { return e.ID }
func (e *MissionExecution) OwnerID() int64         { return e.UserID }
func (e *MissionExecution) MissionRef() int64      { return e.MissionID }
func (e *MissionExecution) Date() time.Time        { return e.ExecutionDate }

func (e *MissionExecution) Response() *ExecutionResponse {
	return newExecutionResponse(e, e.ParticipantID)
}

type DailyMissionInstance struct {
	bun.BaseModel `bun:"table:daily_mission_instance"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	ParticipantID int64     `bun:"participant_id,notnull" json:"participant_id"`
	MissionID     int64     `bun:"mission_id,notnull" json:"mission_id"`
	UserID        int64     `bun:"user_id,notnull" json:"user_id"`
	InstanceDate  time.Time `bun:"instance_date,type:date,notnull" json:"instance_date"`
	ExecutionState
}

func NewDailyMissionInstance(participant *MissionParticipant, date time.Time, now time.Time) *DailyMissionInstance {
	return &DailyMissionInstance{
		ParticipantID: participant.ID,
		MissionID:     participant.MissionID,
		UserID:        participant.UserID,
		InstanceDate:  date,
		ExecutionState: ExecutionState{
			Status:    EXECUTION_STATUS_PENDING,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (i *DailyMissionInstance) State() *ExecutionState { return &i.ExecutionState }
func (i *DailyMissionInstance) Kind() ExecutionKind    { return EXECUTION_KIND_PINNED }
func (i *DailyMissionInstance) RecordID() int64        { return i.ID }
func (i *DailyMissionInstance) OwnerID() int64         { return i.UserID }
func (i *DailyMissionInstance) MissionRef() int64      { return i.MissionID }
func (i *DailyMissionInstance) Date() time.Time        { return i.InstanceDate }

func (i *DailyMissionInstance) Response() *ExecutionResponse {
	return newExecutionResponse(i, i.ParticipantID)
}

// ExecutionResponse is the shape returned for either record kind.
type ExecutionResponse struct {
	Kind            ExecutionKind   `json:"kind"`
	ID              int64           `json:"id"`
	MissionID       int64           `json:"mission_id"`
	ParticipantID   int64           `json:"participant_id"`
	UserID          int64           `json:"user_id"`
	Date            string          `json:"date"`
	Status          ExecutionStatus `json:"status"`
	StartedAt       *time.Time      `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	DurationMinutes int             `json:"duration_minutes"`
	ExpEarned       int             `json:"exp_earned"`
	Note            string          `json:"note"`
	ImageURL        string          `json:"image_url"`
	FeedID          *int64          `json:"feed_id"`
}

func newExecutionResponse(record ExecutionRecord, participantID int64) *ExecutionResponse {
	state := record.State()
	return &ExecutionResponse{
		Kind:            record.Kind(),
		ID:              record.RecordID(),
		MissionID:       record.MissionRef(),
		ParticipantID:   participantID,
		UserID:          record.OwnerID(),
		Date:            record.Date().Format(DATE_FORMAT),
		Status:          state.Status,
		StartedAt:       state.StartedAt,
		CompletedAt:     state.CompletedAt,
		DurationMinutes: state.DurationMinutes,
		ExpEarned:       state.ExpEarned,
		Note:            state.Note,
		ImageURL:        state.ImageURL,
		FeedID:          state.FeedID,
	}
}
