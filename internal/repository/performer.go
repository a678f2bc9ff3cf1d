package repository

import (
	"context"
	"errors"

	"github.com/user/castcount/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 排行榜时间窗口对应的计数字段
var windowColumns = map[string]string{
	"all": "cnt_all",
	"5":   "cnt_last5",
	"10":  "cnt_last10",
	"20":  "cnt_last20",
}

type PerformerRepository struct {
	db *gorm.DB
}

func NewPerformerRepository(db *gorm.DB) *PerformerRepository {
	return &PerformerRepository{db: db}
}

// FindByTMDBID 根据 TMDB ID 查找演员，不存在返回 nil
func (r *PerformerRepository) FindByTMDBID(ctx context.Context, tmdbID int64) (*model.Performer, error) {
	var performer model.Performer
	err := r.db.WithContext(ctx).Where("tmdb_id = ?", tmdbID).First(&performer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &performer, nil
}

// Upsert 按 TMDB ID 创建或更新演员（基础字段和派生字段整体覆盖）
func (r *PerformerRepository) Upsert(ctx context.Context, performer *model.Performer) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tmdb_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "original_name", "gender", "known_for_department", "popularity", "revenue",
			"file_path", "birthday", "deathday", "updated", "movies", "movies_total", "top5billing",
			"directed_by_women_percentage", "top_language",
			"cnt_all", "cnt_last5", "cnt_last10", "cnt_last20",
			"list_all", "list_last5", "list_last10", "list_last20",
		}),
	}).Omit("id").Create(performer).Error
	if err != nil {
		return err
	}

	stored, err := r.FindByTMDBID(ctx, performer.TMDBID)
	if err != nil {
		return err
	}
	if stored == nil {
		return gorm.ErrRecordNotFound
	}
	*performer = *stored
	return nil
}

// Top 按时间窗口的女性导演作品数排序，gender 为 nil 时不过滤
func (r *PerformerRepository) Top(ctx context.Context, window string, gender *int, limit int) ([]model.Performer, error) {
	column, ok := windowColumns[window]
	if !ok {
		column = windowColumns["all"]
	}
	if limit <= 0 {
		limit = 20
	}

	query := r.db.WithContext(ctx).Model(&model.Performer{})
	if gender != nil {
		query = query.Where("gender = ?", *gender)
	}

	var performers []model.Performer
	err := query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: true}).
		Order("popularity DESC").
		Order("tmdb_id ASC").
		Limit(limit).
		Find(&performers).Error
	return performers, err
}
