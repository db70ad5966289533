package models

import "time"

type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "QUEUED"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// Task records one background job run by the task queue.
type Task struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Kind         string     `gorm:"not null;index" json:"kind"`
	Status       TaskStatus `gorm:"not null;default:QUEUED;index" json:"status"`
	Attempts     int        `gorm:"default:0" json:"attempts"`
	MaxAttempts  int        `json:"max_attempts"`
	LastError    string     `json:"last_error,omitempty"`
	SubmissionID *uint      `gorm:"index" json:"submission_id,omitempty"`
	Output       JSON       `gorm:"type:text" json:"output,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
