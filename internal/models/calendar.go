package models

type MonthlyCalendar struct {
	UserID           int64                           `json:"user_id"`
	Year             int                             `json:"year"`
	Month            int                             `json:"month"`
	Days             map[string][]*ExecutionResponse `json:"days"`
	CompletedDates   []string                        `json:"completed_dates"`
	TotalExp         int64                           `json:"total_exp"`
	TotalCompletions int                             `json:"total_completions"`
}

type TodayView struct {
	Date       string               `json:"date"`
	Executions []*ExecutionResponse `json:"executions"`
}

type CompletionRate struct {
	MissionID int64   `json:"mission_id"`
	UserID    int64   `json:"user_id"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Rate      float64 `json:"rate"`
}
