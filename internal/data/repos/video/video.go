package video

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	vdomain "github.com/heimdex/videosearch/internal/domain/video"
	"github.com/heimdex/videosearch/internal/pkg/logger"
)

type VideoRepo interface {
	Create(ctx context.Context, tx *gorm.DB, v *vdomain.Video) (*vdomain.Video, error)
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*vdomain.Video, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) error
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return &videoRepo{db: db, log: baseLog.With("repo", "VideoRepo")}
}

func (r *videoRepo) Create(ctx context.Context, tx *gorm.DB, v *vdomain.Video) (*vdomain.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

func (r *videoRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*vdomain.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var v vdomain.Video
	if err := transaction.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *videoRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(ctx).
		Model(&vdomain.Video{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *videoRepo) Delete(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&vdomain.Video{}).Error
}
