package models

import "time"

// Metadata job states. A job only ever moves forward:
// pending -> in_progress -> done | pending (retry) | failed.
const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

// MetadataJob is a durable queue entry for fetching link preview metadata.
// Retry bookkeeping lives on the row itself so a worker crash mid-attempt
// does not lose the attempt history.
type MetadataJob struct {
	BaseModel
	LinkID        string `gorm:"not null;uniqueIndex"`
	URL           string `gorm:"not null"`
	ProviderHint  string
	Status        string    `gorm:"not null;default:'pending';index:idx_jobs_claim"`
	Attempt       int       `gorm:"not null;default:0"`
	NextAttemptAt time.Time `gorm:"not null;default:now();index:idx_jobs_claim"`
	LastError     string
}
