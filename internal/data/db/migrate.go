package db

import (
	"fmt"

	"github.com/heimdex/videosearch/internal/domain/video"
	"gorm.io/gorm"
)

func AutoMigrateAll(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&video.Video{},
		&video.Scene{},
		&video.UserSearchPreference{},
		&video.SearchJob{},
	)
}

func EnsureVideoIndexes(gdb *gorm.DB) error {
	if err := gdb.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_scene_video_index
		ON scene (video_id, "index");
	`).Error; err != nil {
		return fmt.Errorf("create idx_scene_video_index: %w", err)
	}
	if err := gdb.Exec(`
		CREATE INDEX IF NOT EXISTS idx_search_job_status_kind
		ON search_job (status, kind);
	`).Error; err != nil {
		return fmt.Errorf("create idx_search_job_status_kind: %w", err)
	}
	return nil
}
