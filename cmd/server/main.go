package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/user/castcount/internal/config"
	"github.com/user/castcount/internal/handler"
	"github.com/user/castcount/internal/middleware"
	"github.com/user/castcount/internal/repository"
	"github.com/user/castcount/internal/router"
	"github.com/user/castcount/internal/service"
	"github.com/user/castcount/internal/utils"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	logger := utils.NewLogger(cfg.Env, cfg.LogLevel)

	// 初始化数据库
	db, err := repository.InitDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("数据库连接失败", "error", err)
		os.Exit(1)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	// 初始化仓库
	repos := repository.NewRepositories(db)

	// 初始化缓存
	utils.InitCache()

	// 核心服务：同一轮抓取内不重复请求已确认不存在的 ID
	catalog := service.NewTMDBClient(cfg.TMDB, cfg.Crawl.Interval, logger.Named("tmdb"))
	policy := service.NewFreshnessPolicy(cfg.Stale)
	films := service.NewFilmResolver(repos, catalog, policy, logger.Named("film"))
	aggregator := service.NewPerformerAggregator(repos, films, catalog, policy, logger.Named("performer"))
	scheduler := service.NewCrawlScheduler(aggregator, catalog, repos.CrawlCursor, cfg.Crawl, logger.Named("crawler"))

	// 初始化 Gin
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// 启用 gzip，默认压缩级别
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.Logger(logger.Named("http")))

	h := handler.NewHandler(repos, cfg, aggregator, logger.Named("http"))
	router.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   2 * time.Minute, // 手动刷新会级联请求上游
		MaxHeaderBytes: 1 << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("服务器启动", "addr", "http://localhost:"+cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Crawl.Enabled {
		if err := scheduler.Start(gctx); err != nil {
			logger.Error("启动抓取调度失败", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("抓取调度已禁用")
	}

	// 等待中断信号或服务器异常退出后优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("正在关闭服务器...")

		// 5 秒超时上下文用于关闭过程
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// 等待进行中的抓取轮次结束
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("抓取轮次未在超时内结束")
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("服务器异常退出", "error", err)
		os.Exit(1)
	}
	logger.Info("服务器已退出")
}
