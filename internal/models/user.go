package models

import "time"

// User remembers a submitter's full name so repeat submitters skip the
// name prompt. Re-registration overwrites FullName; rows are never deleted.
type User struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	SubmitterID string `gorm:"size:64;not null;uniqueIndex"`
	FullName    string `gorm:"size:128;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
