package repository

import (
	"context"
	"errors"

	"github.com/user/castcount/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FilmRepository struct {
	db *gorm.DB
}

func NewFilmRepository(db *gorm.DB) *FilmRepository {
	return &FilmRepository{db: db}
}

// FindByTMDBID 根据 TMDB ID 查找电影，不存在返回 nil
func (r *FilmRepository) FindByTMDBID(ctx context.Context, tmdbID int64) (*model.Film, error) {
	var film model.Film
	err := r.db.WithContext(ctx).Where("tmdb_id = ?", tmdbID).First(&film).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &film, nil
}

// Upsert 按 TMDB ID 创建或更新电影，完成后 film 带有稳定的内部 ID
func (r *FilmRepository) Upsert(ctx context.Context, film *model.Film) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tmdb_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "original_title", "release_date", "original_language", "runtime", "status",
			"budget", "revenue", "imdb_id", "is_documentary", "director_gender", "director",
			"lead_top5", "updated",
		}),
	}).Omit("id").Create(film).Error
	if err != nil {
		return err
	}
	return r.reload(ctx, film)
}

// FindByIDs 按内部 ID 批量查询，结果保持 ids 的顺序
func (r *FilmRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.Film, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var films []model.Film
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&films).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Film, len(films))
	for _, f := range films {
		byID[int64(f.ID)] = f
	}
	ordered := make([]model.Film, 0, len(films))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			ordered = append(ordered, f)
		}
	}
	return ordered, nil
}

func (r *FilmRepository) reload(ctx context.Context, film *model.Film) error {
	stored, err := r.FindByTMDBID(ctx, film.TMDBID)
	if err != nil {
		return err
	}
	if stored == nil {
		return gorm.ErrRecordNotFound
	}
	*film = *stored
	return nil
}
