package models

// UserFromAuth only use in middleware
type UserFromAuth struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
