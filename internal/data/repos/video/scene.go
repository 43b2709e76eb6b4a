package video

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	vdomain "github.com/heimdex/videosearch/internal/domain/video"
	"github.com/heimdex/videosearch/internal/pkg/logger"
)

type SceneRepo interface {
	Create(ctx context.Context, tx *gorm.DB, scenes []*vdomain.Scene) ([]*vdomain.Scene, error)
	GetByVideoID(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) ([]*vdomain.Scene, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*vdomain.Scene, error)
	DeleteByVideoID(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) error
}

type sceneRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSceneRepo(db *gorm.DB, baseLog *logger.Logger) SceneRepo {
	return &sceneRepo{db: db, log: baseLog.With("repo", "SceneRepo")}
}

func (r *sceneRepo) Create(ctx context.Context, tx *gorm.DB, scenes []*vdomain.Scene) ([]*vdomain.Scene, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(scenes) == 0 {
		return []*vdomain.Scene{}, nil
	}
	const batchSize = 100
	if err := transaction.WithContext(ctx).CreateInBatches(scenes, batchSize).Error; err != nil {
		return nil, err
	}
	return scenes, nil
}

func (r *sceneRepo) GetByVideoID(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) ([]*vdomain.Scene, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*vdomain.Scene
	if err := transaction.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *sceneRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*vdomain.Scene, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*vdomain.Scene
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *sceneRepo) DeleteByVideoID(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Where("video_id = ?", videoID).Delete(&vdomain.Scene{}).Error
}
