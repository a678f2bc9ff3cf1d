package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/castcount/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CrawlCursorRepository struct {
	db *gorm.DB
}

func NewCrawlCursorRepository(db *gorm.DB) *CrawlCursorRepository {
	return &CrawlCursorRepository{db: db}
}

// Load 读取游标，不存在时返回 fallback
func (r *CrawlCursorRepository) Load(ctx context.Context, name string, fallback model.CrawlCursor) (model.CrawlCursor, error) {
	var cursor model.CrawlCursor
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fallback.Name = name
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	return cursor, nil
}

// Save 保存游标
func (r *CrawlCursorRepository) Save(ctx context.Context, cursor model.CrawlCursor) error {
	cursor.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"page", "next_person_id", "updated_at"}),
	}).Create(&cursor).Error
}
