package models

import "time"

// Status is the lifecycle state of a maintenance request. The persisted
// value is the bare identifier; display labels live in the notify package.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusRejected   Status = "rejected"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s is an end state (no further transitions).
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusRejected
}

// Request is one persisted facility-issue report. Rows are never deleted;
// triage only moves Status forward.
type Request struct {
	ID                uint    `gorm:"primaryKey;autoIncrement"`
	SubmitterID       string  `gorm:"size:64;not null;index"`
	SubmitterHandle   string  `gorm:"size:64"`
	SubmitterFullName *string `gorm:"size:128"`
	Category          string  `gorm:"size:64;not null"`
	Urgency           string  `gorm:"size:64;not null"`
	Location          string  `gorm:"size:256;not null"`
	Description       string  `gorm:"type:text"`
	PhotoRef          string  `gorm:"size:256"`
	Status            Status  `gorm:"size:16;default:new;index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
