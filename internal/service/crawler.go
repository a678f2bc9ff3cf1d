package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
	"github.com/user/castcount/internal/config"
	"github.com/user/castcount/internal/model"
	"github.com/user/castcount/internal/repository"
	"github.com/user/castcount/internal/utils"
)

// PerformerRefresher 由 PerformerAggregator 实现
type PerformerRefresher interface {
	RefreshPerformer(ctx context.Context, tmdbID int64, force bool) (*RefreshResult, error)
}

// TickStats 一轮抓取的统计
type TickStats struct {
	RunID      string
	Page       int
	Candidates int
	Refreshed  int
	Unchanged  int
	NotFound   int
	Failed     int
}

// CrawlScheduler 定时发现演员并刷新
type CrawlScheduler struct {
	refresher PerformerRefresher
	catalog   Catalog
	cursors   *repository.CrawlCursorRepository
	cfg       config.CrawlConfig
	logger    hclog.Logger
	sleep     func(ctx context.Context, d time.Duration) error

	running sync.Mutex // 同一时刻只允许一轮抓取
	cron    *cron.Cron
}

func NewCrawlScheduler(refresher PerformerRefresher, catalog Catalog, cursors *repository.CrawlCursorRepository, cfg config.CrawlConfig, logger hclog.Logger) *CrawlScheduler {
	return &CrawlScheduler{
		refresher: refresher,
		catalog:   catalog,
		cursors:   cursors,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// InitialCursor 首次运行时的游标
func (s *CrawlScheduler) InitialCursor() model.CrawlCursor {
	return model.CrawlCursor{Name: s.cfg.Mode, Page: s.cfg.StartPage, NextPersonID: 1}
}

// Start 启动定时抓取：先立即跑一轮，之后按 Interval 执行，未完成的轮次不会重叠
func (s *CrawlScheduler) Start(ctx context.Context) error {
	cronLogger := utils.CronLogger{Logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	job := cron.FuncJob(func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("抓取轮次失败", "error", err)
		}
	})
	entryID, err := s.cron.AddJob(fmt.Sprintf("@every %s", s.cfg.Interval), job)
	if err != nil {
		return fmt.Errorf("注册抓取任务失败: %w", err)
	}

	s.cron.Start()
	go s.cron.Entry(entryID).WrappedJob.Run()
	s.logger.Info("抓取调度已启动", "mode", s.cfg.Mode, "interval", s.cfg.Interval)
	return nil
}

// Stop 停止调度，返回的 context 在进行中的轮次结束后完成
func (s *CrawlScheduler) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}

// ErrTickInProgress 已有一轮抓取在运行
var ErrTickInProgress = errors.New("crawl tick already in progress")

// RunOnce 读取游标、跑一轮、保存游标
func (s *CrawlScheduler) RunOnce(ctx context.Context) (TickStats, error) {
	if !s.running.TryLock() {
		return TickStats{}, ErrTickInProgress
	}
	defer s.running.Unlock()

	cursor, err := s.cursors.Load(ctx, s.cfg.Mode, s.InitialCursor())
	if err != nil {
		return TickStats{}, storageError("load cursor", err)
	}

	next, stats := s.Tick(ctx, cursor)

	// 游标总是前进，即使本轮部分失败
	if err := s.cursors.Save(context.WithoutCancel(ctx), next); err != nil {
		return stats, storageError("save cursor", err)
	}
	return stats, nil
}

// Tick 根据游标执行一轮抓取，返回推进后的游标
func (s *CrawlScheduler) Tick(ctx context.Context, cursor model.CrawlCursor) (model.CrawlCursor, TickStats) {
	stats := TickStats{RunID: uuid.NewString()}
	logger := s.logger.With("run_id", stats.RunID)

	if s.cfg.Mode == config.CrawlModeSequential {
		return s.tickSequential(ctx, cursor, &stats, logger), stats
	}
	return s.tickPopular(ctx, cursor, &stats, logger), stats
}

func (s *CrawlScheduler) tickPopular(ctx context.Context, cursor model.CrawlCursor, stats *TickStats, logger hclog.Logger) model.CrawlCursor {
	page := cursor.Page
	if page < 1 || page > s.cfg.MaxPage {
		page = 1
	}
	stats.Page = page

	next := cursor
	next.Page = page + 1
	if next.Page > s.cfg.MaxPage {
		next.Page = 1
	}

	logger.Info("请求热门人物页", "page", page)
	result, err := s.catalog.FetchPopularPersons(ctx, page)
	if err != nil {
		logger.Error("获取热门人物失败", "page", page, "error", err)
		return next
	}
	// 列表已到尽头，从第一页重新开始
	if result.TotalPages > 0 && page >= result.TotalPages {
		next.Page = 1
	}
	people := result.Results
	if len(people) == 0 {
		next.Page = 1
		return next
	}

	first := true
	for _, person := range people {
		if person.KnownForDepartment != model.DepartmentActing {
			continue
		}
		if !first {
			if err := s.sleep(ctx, s.cfg.Delay); err != nil {
				logger.Warn("抓取被取消", "page", page)
				return next
			}
		}
		first = false
		s.refreshOne(ctx, person.ID, stats, logger)
	}

	logger.Info("热门人物页处理完成", "page", page, "candidates", stats.Candidates,
		"refreshed", stats.Refreshed, "unchanged", stats.Unchanged, "failed", stats.Failed)
	return next
}

func (s *CrawlScheduler) tickSequential(ctx context.Context, cursor model.CrawlCursor, stats *TickStats, logger hclog.Logger) model.CrawlCursor {
	next := cursor
	id := cursor.NextPersonID
	for i := 0; i < s.cfg.IDBatch; i++ {
		if id < 1 || id > s.cfg.MaxPersonID {
			id = 1
		}
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.Delay); err != nil {
				logger.Warn("抓取被取消", "next_person_id", id)
				break
			}
		}
		s.refreshOne(ctx, id, stats, logger)
		id++
		next.NextPersonID = id
	}
	if next.NextPersonID > s.cfg.MaxPersonID {
		next.NextPersonID = 1
	}

	logger.Info("顺序抓取完成", "next_person_id", next.NextPersonID, "candidates", stats.Candidates,
		"refreshed", stats.Refreshed, "not_found", stats.NotFound, "failed", stats.Failed)
	return next
}

func (s *CrawlScheduler) refreshOne(ctx context.Context, id int64, stats *TickStats, logger hclog.Logger) {
	stats.Candidates++
	res, err := s.refresher.RefreshPerformer(ctx, id, false)
	switch {
	case IsNotFound(err):
		stats.NotFound++
		logger.Debug("人物不存在", "tmdb_id", id)
	case err != nil:
		stats.Failed++
		logger.Error("刷新演员失败", "tmdb_id", id, "error", err)
	case res.Outcome == OutcomeRefreshed:
		stats.Refreshed++
	default:
		stats.Unchanged++
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
