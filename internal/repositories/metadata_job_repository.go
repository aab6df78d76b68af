package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"commune_backend/internal/models"
)

var ErrJobNotFound = errors.New("metadata job not found")

type MetadataJobRepository interface {
	// EnqueueIfAbsent creates a pending job for the link unless one already
	// exists in any state. A link gets exactly one job over its lifetime.
	EnqueueIfAbsent(job *models.MetadataJob) error

	// ClaimNext atomically moves the oldest eligible pending job to
	// in_progress and returns it. Row locking guarantees two workers never
	// claim the same job. Returns (nil, nil) when nothing is eligible.
	ClaimNext() (*models.MetadataJob, error)

	MarkDone(jobID string) error

	// MarkRetry schedules another attempt; retry state lives on the row so a
	// worker crash does not lose attempt history.
	MarkRetry(jobID string, attempt int, nextAttemptAt time.Time, lastError string) error

	MarkFailed(jobID string, lastError string) error

	FindByLinkID(linkID string) (*models.MetadataJob, error)
}

type MetadataJobRepositoryImpl struct {
	db *gorm.DB
}

func NewMetadataJobRepository(db *gorm.DB) MetadataJobRepository {
	return &MetadataJobRepositoryImpl{db: db}
}

func (r *MetadataJobRepositoryImpl) EnqueueIfAbsent(job *models.MetadataJob) error {
	job.Status = models.JobStatusPending
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = time.Now()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "link_id"}},
		DoNothing: true,
	}).Create(job).Error
}

func (r *MetadataJobRepositoryImpl) ClaimNext() (*models.MetadataJob, error) {
	var job models.MetadataJob
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_attempt_at <= ?", models.JobStatusPending, time.Now()).
			Order("next_attempt_at ASC").
			First(&job).Error
		if err != nil {
			return err
		}
		job.Status = models.JobStatusInProgress
		return tx.Model(&job).Update("status", models.JobStatusInProgress).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *MetadataJobRepositoryImpl) MarkDone(jobID string) error {
	return r.updateJob(jobID, map[string]interface{}{
		"status":     models.JobStatusDone,
		"last_error": "",
	})
}

func (r *MetadataJobRepositoryImpl) MarkRetry(jobID string, attempt int, nextAttemptAt time.Time, lastError string) error {
	return r.updateJob(jobID, map[string]interface{}{
		"status":          models.JobStatusPending,
		"attempt":         attempt,
		"next_attempt_at": nextAttemptAt,
		"last_error":      lastError,
	})
}

func (r *MetadataJobRepositoryImpl) MarkFailed(jobID string, lastError string) error {
	return r.updateJob(jobID, map[string]interface{}{
		"status":     models.JobStatusFailed,
		"last_error": lastError,
	})
}

func (r *MetadataJobRepositoryImpl) FindByLinkID(linkID string) (*models.MetadataJob, error) {
	var job models.MetadataJob
	if err := r.db.First(&job, "link_id = ?", linkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *MetadataJobRepositoryImpl) updateJob(jobID string, updates map[string]interface{}) error {
	result := r.db.Model(&models.MetadataJob{}).Where("id = ?", jobID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}
