package repository

import (
	"context"
	"errors"

	"github.com/user/castcount/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DirectorRepository struct {
	db *gorm.DB
}

func NewDirectorRepository(db *gorm.DB) *DirectorRepository {
	return &DirectorRepository{db: db}
}

// FindByTMDBID 根据 TMDB ID 查找导演，不存在返回 nil
func (r *DirectorRepository) FindByTMDBID(ctx context.Context, tmdbID int64) (*model.Director, error) {
	var director model.Director
	err := r.db.WithContext(ctx).Where("tmdb_id = ?", tmdbID).First(&director).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &director, nil
}

// Upsert 按 TMDB ID 创建或更新导演
func (r *DirectorRepository) Upsert(ctx context.Context, director *model.Director) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tmdb_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "original_name", "gender", "known_for_department", "updated",
		}),
	}).Omit("id").Create(director).Error
	if err != nil {
		return err
	}

	stored, err := r.FindByTMDBID(ctx, director.TMDBID)
	if err != nil {
		return err
	}
	if stored == nil {
		return gorm.ErrRecordNotFound
	}
	*director = *stored
	return nil
}

// FindByIDs 按内部 ID 批量查询，结果保持 ids 的顺序
func (r *DirectorRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.Director, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var directors []model.Director
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&directors).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Director, len(directors))
	for _, d := range directors {
		byID[int64(d.ID)] = d
	}
	ordered := make([]model.Director, 0, len(directors))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
		}
	}
	return ordered, nil
}
