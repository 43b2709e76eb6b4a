package video

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	vdomain "github.com/heimdex/videosearch/internal/domain/video"
	"github.com/heimdex/videosearch/internal/pkg/logger"
)

type PreferenceRepo interface {
	GetByTenantID(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*vdomain.UserSearchPreference, error)
	Upsert(ctx context.Context, tx *gorm.DB, pref *vdomain.UserSearchPreference) error
}

type preferenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPreferenceRepo(db *gorm.DB, baseLog *logger.Logger) PreferenceRepo {
	return &preferenceRepo{db: db, log: baseLog.With("repo", "PreferenceRepo")}
}

func (r *preferenceRepo) GetByTenantID(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*vdomain.UserSearchPreference, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var pref vdomain.UserSearchPreference
	if err := transaction.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&pref).Error; err != nil {
		return nil, err
	}
	return &pref, nil
}

func (r *preferenceRepo) Upsert(ctx context.Context, tx *gorm.DB, pref *vdomain.UserSearchPreference) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(pref).Error
}
