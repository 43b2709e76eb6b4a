package video

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	vdomain "github.com/heimdex/videosearch/internal/domain/video"
	"github.com/heimdex/videosearch/internal/pkg/logger"
)

type JobRepo interface {
	Enqueue(ctx context.Context, tx *gorm.DB, job *vdomain.SearchJob) (*vdomain.SearchJob, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*vdomain.SearchJob, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	ClaimNext(ctx context.Context, tx *gorm.DB) (*vdomain.SearchJob, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

// Enqueue inserts a job; a conflicting fingerprint (same video+kind already
// queued or running) is treated as a no-op dedupe, enforcing
// at-most-once-per-fingerprint dispatch at the DB layer.
func (r *jobRepo) Enqueue(ctx context.Context, tx *gorm.DB, job *vdomain.SearchJob) (*vdomain.SearchJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	err := transaction.WithContext(ctx).
		Where("fingerprint = ?", job.Fingerprint).
		FirstOrCreate(job, vdomain.SearchJob{Fingerprint: job.Fingerprint}).Error
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*vdomain.SearchJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var job vdomain.SearchJob
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&vdomain.SearchJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClaimNext pops the oldest queued job and marks it running inside one
// transaction, giving the at-most-once guarantee a DB-side status check.
func (r *jobRepo) ClaimNext(ctx context.Context, tx *gorm.DB) (*vdomain.SearchJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var job vdomain.SearchJob
	err := transaction.WithContext(ctx).Transaction(func(t *gorm.DB) error {
		if err := t.
			Where("status = ?", vdomain.JobStatusQueued).
			Order("queued_at ASC").
			Limit(1).
			First(&job).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		return t.Model(&vdomain.SearchJob{}).
			Where("id = ? AND status = ?", job.ID, vdomain.JobStatusQueued).
			Updates(map[string]interface{}{
				"status":     vdomain.JobStatusRunning,
				"started_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}
