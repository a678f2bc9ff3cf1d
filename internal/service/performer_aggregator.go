package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/user/castcount/internal/model"
	"github.com/user/castcount/internal/repository"
)

const (
	imageBaseURL = "https://image.tmdb.org/t/p/w500"
	voiceMarker  = "(voice)"
)

// Outcome 刷新结果类型
type Outcome string

const (
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeFresh     Outcome = "fresh"
	OutcomeNotActing Outcome = "not_acting"
)

// RefreshResult 一次演员刷新的结果
type RefreshResult struct {
	Outcome   Outcome          `json:"outcome"`
	Performer *model.Performer `json:"performer"`
	Films     int              `json:"films"`
	Skipped   map[string]int   `json:"skipped,omitempty"`
}

// PerformerAggregator 刷新演员并重算派生统计
type PerformerAggregator struct {
	performers *repository.PerformerRepository
	films      *FilmResolver
	catalog    Catalog
	policy     FreshnessPolicy
	now        func() time.Time
	logger     hclog.Logger
	mu         sync.Mutex // 串行化刷新，共享的电影/导演只有一个写者
}

func NewPerformerAggregator(repos *repository.Repositories, films *FilmResolver, catalog Catalog, policy FreshnessPolicy, logger hclog.Logger) *PerformerAggregator {
	return &PerformerAggregator{
		performers: repos.Performer,
		films:      films,
		catalog:    catalog,
		policy:     policy,
		now:        time.Now,
		logger:     logger,
	}
}

// RefreshPerformer 抓取演员并整体重算统计。
// 根记录抓取失败才返回错误；单部电影失败只会跳过该电影。
func (a *PerformerAggregator) RefreshPerformer(ctx context.Context, tmdbID int64, force bool) (*RefreshResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored, err := a.performers.FindByTMDBID(ctx, tmdbID)
	if err != nil {
		return nil, storageError("find performer", err)
	}

	now := a.now()
	if stored != nil && !ShouldFetch(&stored.Updated, force, a.policy.Performer, now) {
		return &RefreshResult{Outcome: OutcomeFresh, Performer: stored}, nil
	}

	payload, err := a.catalog.FetchPerson(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	if payload.KnownForDepartment != model.DepartmentActing {
		a.logger.Debug("非演员，跳过", "tmdb_id", tmdbID, "department", payload.KnownForDepartment)
		return &RefreshResult{Outcome: OutcomeNotActing, Performer: stored}, nil
	}

	// 旧的收录集合：刷新失败的电影只有原本已收录才沿用库存记录
	previous := make(map[int64]bool)
	performer := &model.Performer{TMDBID: tmdbID}
	if stored != nil {
		for _, id := range stored.MovieIDs {
			previous[id] = true
		}
		performer = stored
	}

	// 先写入清零的统计，但保留旧的 updated：中途失败时下一轮仍会重算
	applyPersonPayload(performer, payload)
	performer.ResetAggregates()
	if err := a.performers.Upsert(ctx, performer); err != nil {
		return nil, storageError("upsert performer", err)
	}

	credits := sortCreditsByReleaseDesc(filterCredits(payload.MovieCredits.Cast))
	result := &RefreshResult{Outcome: OutcomeRefreshed, Skipped: map[string]int{}}
	languages := newLanguageTally()
	currentYear := now.Year()

	for _, credit := range credits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := a.films.Resolve(ctx, credit.ID, false)
		if res.Skipped() {
			result.Skipped[string(res.Skip)]++
			a.logger.Warn("跳过电影", "performer", tmdbID, "film", credit.ID, "reason", res.Skip, "error", res.Err)
			continue
		}
		film := res.Film
		if res.Stale && !previous[int64(film.ID)] {
			result.Skipped[string(SkipFetchFailed)]++
			continue
		}
		if !film.Eligible() || performer.HasMovie(film.ID) {
			continue
		}

		var entry string
		if film.DirectorGender == model.DirectorGenderFemale {
			names, err := a.films.DirectorNames(ctx, film)
			if err != nil {
				result.Skipped[string(SkipStorage)]++
				a.logger.Error("读取导演失败", "film", film.TMDBID, "error", err)
				continue
			}
			entry = fmt.Sprintf("%s by %s, %d", film.Title, strings.Join(names, ", "), film.ReleaseYear())
		}

		performer.AddMovie(film.ID)
		performer.Revenue += film.Revenue
		languages.add(film.OriginalLanguage)
		if film.LeadsInclude(performer.TMDBID) {
			performer.Top5Billing++
		}
		if entry != "" {
			performer.AddDirectedByWoman(entry, film.ReleaseYear(), currentYear)
		}
		result.Films++
	}

	performer.FinalizeTotals()
	performer.TopLanguage = languages.mode()
	performer.Updated = now
	if err := a.performers.Upsert(ctx, performer); err != nil {
		return nil, storageError("upsert performer", err)
	}

	a.logger.Info("演员统计已更新", "tmdb_id", tmdbID, "name", performer.Name,
		"movies", performer.MoviesTotal, "cnt_all", performer.CntAll)
	result.Performer = performer
	return result, nil
}

func applyPersonPayload(p *model.Performer, payload *PersonPayload) {
	p.Name = payload.Name
	p.OriginalName = payload.OriginalName
	p.Gender = payload.Gender
	p.KnownForDepartment = payload.KnownForDepartment
	p.Popularity = payload.Popularity
	p.Birthday = parseDate(payload.Birthday)
	p.Deathday = parseDate(payload.Deathday)

	// 优先使用第一张头像
	switch {
	case len(payload.Images.Profiles) > 0:
		p.FilePath = payload.Images.Profiles[0].FilePath
	case payload.ProfilePath != "":
		p.FilePath = payload.ProfilePath
	default:
		p.FilePath = ""
	}
}

// ImageURL 头像完整地址
func ImageURL(filePath string) string {
	if filePath == "" {
		return ""
	}
	return imageBaseURL + filePath
}

// filterCredits 去掉成人片、纯配音角色和重复的电影
func filterCredits(cast []PersonCastCredit) []PersonCastCredit {
	seen := make(map[int64]bool, len(cast))
	out := make([]PersonCastCredit, 0, len(cast))
	for _, c := range cast {
		if c.Adult || isVoiceRole(c.Character) || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func isVoiceRole(character string) bool {
	return strings.Contains(strings.ToLower(character), voiceMarker)
}

// sortCreditsByReleaseDesc 按上映日期从新到旧，无效日期排在最后
func sortCreditsByReleaseDesc(credits []PersonCastCredit) []PersonCastCredit {
	sort.SliceStable(credits, func(i, j int) bool {
		di, dj := parseDate(credits[i].ReleaseDate), parseDate(credits[j].ReleaseDate)
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.After(*dj)
		}
	})
	return credits
}

// languageTally 统计语言出现次数，并列时先出现的优先
type languageTally struct {
	counts map[string]int
	order  []string
}

func newLanguageTally() *languageTally {
	return &languageTally{counts: make(map[string]int)}
}

func (t *languageTally) add(lang string) {
	if lang == "" {
		return
	}
	if _, ok := t.counts[lang]; !ok {
		t.order = append(t.order, lang)
	}
	t.counts[lang]++
}

func (t *languageTally) mode() string {
	best, bestCount := "", 0
	for _, lang := range t.order {
		if t.counts[lang] > bestCount {
			best, bestCount = lang, t.counts[lang]
		}
	}
	return best
}
