package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/lib/pq"
	"github.com/user/castcount/internal/model"
	"github.com/user/castcount/internal/repository"
)

const (
	releaseDateLayout = "2006-01-02"
	genreDocumentary  = "Documentary"
	leadBillingSize   = 5
)

// SkipReason 电影无法使用的原因
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipNotFound    SkipReason = "not_found"
	SkipFetchFailed SkipReason = "fetch_failed"
	SkipStorage     SkipReason = "storage_error"
)

// FilmResult 单部电影的解析结果。
// Stale 为 true 表示刷新失败，Film 是库中旧记录。
type FilmResult struct {
	Film  *model.Film
	Stale bool
	Skip  SkipReason
	Err   error
}

// Skipped 是否应跳过该电影
func (r FilmResult) Skipped() bool {
	return r.Skip != SkipNone || r.Film == nil
}

// FilmResolver 获取/刷新电影，级联更新导演
type FilmResolver struct {
	films     *repository.FilmRepository
	directors *repository.DirectorRepository
	catalog   Catalog
	policy    FreshnessPolicy
	now       func() time.Time
	logger    hclog.Logger
}

func NewFilmResolver(repos *repository.Repositories, catalog Catalog, policy FreshnessPolicy, logger hclog.Logger) *FilmResolver {
	return &FilmResolver{
		films:     repos.Film,
		directors: repos.Director,
		catalog:   catalog,
		policy:    policy,
		now:       time.Now,
		logger:    logger,
	}
}

// ResolveFilm 返回电影记录。刷新失败但库中有旧记录时返回旧记录。
func (r *FilmResolver) ResolveFilm(ctx context.Context, tmdbID int64, force bool) (*model.Film, error) {
	res := r.Resolve(ctx, tmdbID, force)
	if res.Skipped() {
		return nil, res.Err
	}
	return res.Film, nil
}

// Resolve 同 ResolveFilm，但把失败作为结果的一部分返回
func (r *FilmResolver) Resolve(ctx context.Context, tmdbID int64, force bool) FilmResult {
	stored, err := r.films.FindByTMDBID(ctx, tmdbID)
	if err != nil {
		return FilmResult{Skip: SkipStorage, Err: storageError("find film", err)}
	}

	now := r.now()
	if stored != nil && !ShouldFetch(&stored.Updated, force, r.policy.Film, now) {
		return FilmResult{Film: stored}
	}

	payload, err := r.catalog.FetchMovie(ctx, tmdbID)
	if err != nil {
		if stored != nil {
			r.logger.Warn("电影刷新失败，使用库存记录", "tmdb_id", tmdbID, "error", err)
			return FilmResult{Film: stored, Stale: true, Err: err}
		}
		if errors.Is(err, ErrNotFound) {
			return FilmResult{Skip: SkipNotFound, Err: err}
		}
		return FilmResult{Skip: SkipFetchFailed, Err: err}
	}

	film := &model.Film{TMDBID: tmdbID}
	if stored != nil {
		clone := *stored
		clone.DirectorIDs = append(pq.Int64Array(nil), stored.DirectorIDs...)
		film = &clone
	}
	applyMoviePayload(film, payload)
	film.Updated = now

	if film.IsDocumentary {
		// 纪录片不扫描导演，已有的导演引用保留
		film.DirectorGender = model.DirectorGenderNoFemale
	} else {
		gender, err := r.resolveDirectors(ctx, film, payload.Credits.Crew, now)
		if err != nil {
			return r.storageFallback(stored, tmdbID, err)
		}
		film.DirectorGender = gender
	}

	if err := r.films.Upsert(ctx, film); err != nil {
		return r.storageFallback(stored, tmdbID, storageError("upsert film", err))
	}
	return FilmResult{Film: film}
}

// resolveDirectors 级联写入导演并返回 director_gender
func (r *FilmResolver) resolveDirectors(ctx context.Context, film *model.Film, crew []MovieCrewCredit, now time.Time) (int, error) {
	for _, member := range crew {
		if member.Job != model.JobDirector {
			continue
		}
		director, err := r.resolveDirector(ctx, member, now)
		if err != nil {
			return 0, err
		}
		film.AddDirector(director.ID)
	}

	directors, err := r.directors.FindByIDs(ctx, film.DirectorIDs)
	if err != nil {
		return 0, storageError("find directors", err)
	}
	for _, d := range directors {
		if d.Gender == model.GenderFemale {
			return model.DirectorGenderFemale, nil
		}
	}
	return model.DirectorGenderNoFemale, nil
}

func (r *FilmResolver) resolveDirector(ctx context.Context, member MovieCrewCredit, now time.Time) (*model.Director, error) {
	stored, err := r.directors.FindByTMDBID(ctx, member.ID)
	if err != nil {
		return nil, storageError("find director", err)
	}
	if stored != nil && !ShouldFetch(&stored.Updated, false, r.policy.Director, now) {
		return stored, nil
	}

	director := stored
	if director == nil {
		director = &model.Director{TMDBID: member.ID}
	}
	director.Name = member.Name
	director.OriginalName = member.OriginalName
	director.Gender = member.Gender
	director.KnownForDepartment = member.KnownForDepartment
	director.Updated = now

	if err := r.directors.Upsert(ctx, director); err != nil {
		return nil, storageError("upsert director", err)
	}
	return director, nil
}

func (r *FilmResolver) storageFallback(stored *model.Film, tmdbID int64, err error) FilmResult {
	r.logger.Error("电影写入失败", "tmdb_id", tmdbID, "error", err)
	if stored != nil {
		return FilmResult{Film: stored, Stale: true, Err: err}
	}
	return FilmResult{Skip: SkipStorage, Err: err}
}

// DirectorNames 按导演集合顺序拼接姓名
func (r *FilmResolver) DirectorNames(ctx context.Context, film *model.Film) ([]string, error) {
	directors, err := r.directors.FindByIDs(ctx, film.DirectorIDs)
	if err != nil {
		return nil, storageError("find directors", err)
	}
	names := make([]string, 0, len(directors))
	for _, d := range directors {
		names = append(names, d.Name)
	}
	return names, nil
}

func applyMoviePayload(film *model.Film, payload *MoviePayload) {
	film.Title = payload.Title
	film.OriginalTitle = payload.OriginalTitle
	film.ReleaseDate = parseDate(payload.ReleaseDate)
	film.OriginalLanguage = payload.OriginalLanguage
	film.Runtime = payload.Runtime
	film.Status = payload.Status
	film.Budget = payload.Budget
	film.Revenue = payload.Revenue
	film.IMDbID = nil
	if payload.IMDbID != nil && *payload.IMDbID != "" {
		id := *payload.IMDbID
		film.IMDbID = &id
	}

	film.IsDocumentary = false
	for _, g := range payload.Genres {
		if g.Name == genreDocumentary {
			film.IsDocumentary = true
			break
		}
	}

	film.LeadTop5 = leadTop5(payload.Credits.Cast)
}

// leadTop5 按番位升序取前五位演员的 TMDB ID
func leadTop5(cast []MovieCastCredit) pq.Int64Array {
	sorted := make([]MovieCastCredit, len(cast))
	copy(sorted, cast)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	n := len(sorted)
	if n > leadBillingSize {
		n = leadBillingSize
	}
	ids := make(pq.Int64Array, 0, n)
	for _, c := range sorted[:n] {
		ids = append(ids, c.ID)
	}
	return ids
}

// parseDate 无效或缺失的日期返回 nil
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(releaseDateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
