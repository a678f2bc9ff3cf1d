package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

// 抓取模式
const (
	CrawlModePopular    = "popular"
	CrawlModeSequential = "sequential"
)

// Config 应用配置
type Config struct {
	Env         string `validate:"required"`
	Port        string `validate:"required,numeric"`
	LogLevel    string `validate:"oneof=trace debug info warn error off"`
	AdminToken  string
	DBDriver    string `validate:"oneof=postgres sqlite"`
	DatabaseURL string `validate:"required"`

	TMDB  TMDBConfig
	Stale StaleConfig
	Crawl CrawlConfig
}

// TMDBConfig 上游目录 API 配置
type TMDBConfig struct {
	APIKey   string
	BaseURL  string        `validate:"required,url"`
	Language string        `validate:"required"`
	Timeout  time.Duration `validate:"gt=0"`
	RPS      float64       `validate:"gt=0"`
	Burst    int           `validate:"gte=1"`
}

// StaleConfig 各类实体的过期阈值（天）
type StaleConfig struct {
	PerformerDays int `validate:"gte=0"`
	FilmDays      int `validate:"gte=0"`
	DirectorDays  int `validate:"gte=0"`
}

// CrawlConfig 抓取调度配置
type CrawlConfig struct {
	Enabled     bool
	Mode        string        `validate:"oneof=popular sequential"`
	StartPage   int           `validate:"gte=1"`
	MaxPage     int           `validate:"gte=1"`
	IDBatch     int           `validate:"gte=1"`
	MaxPersonID int64         `validate:"gte=1"`
	Delay       time.Duration `validate:"gte=0"`
	Interval    time.Duration `validate:"gt=0"`
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "5005"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),
		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		DatabaseURL: databaseURL(),
		TMDB: TMDBConfig{
			APIKey:   getEnv("TMDB_API_KEY", ""),
			BaseURL:  getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
			Language: getEnv("TMDB_LANGUAGE", "en-US"),
			Timeout:  getDuration("TMDB_TIMEOUT", 15*time.Second),
			RPS:      getFloat("TMDB_RPS", 4),
			Burst:    getInt("TMDB_BURST", 2),
		},
		Stale: StaleConfig{
			PerformerDays: getInt("PERFORMER_STALE_DAYS", 7),
			FilmDays:      getInt("FILM_STALE_DAYS", 7),
			DirectorDays:  getInt("DIRECTOR_STALE_DAYS", 7),
		},
		Crawl: CrawlConfig{
			Enabled:     getBool("CRAWL_ENABLED", true),
			Mode:        getEnv("CRAWL_MODE", CrawlModePopular),
			StartPage:   getInt("CRAWL_START_PAGE", 1),
			MaxPage:     getInt("CRAWL_MAX_PAGE", 500),
			IDBatch:     getInt("CRAWL_ID_BATCH", 20),
			MaxPersonID: int64(getInt("CRAWL_MAX_PERSON_ID", 5000000)),
			Delay:       getDuration("CRAWL_DELAY", time.Second),
			Interval:    getDuration("CRAWL_INTERVAL", 10*time.Minute),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	if cfg.Crawl.Enabled && cfg.TMDB.APIKey == "" {
		fmt.Println("【警告】未设置 TMDB_API_KEY，抓取请求将被上游拒绝。")
	}

	return cfg, nil
}

// StaleThreshold 天数转换为时长
func StaleThreshold(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

func databaseURL() string {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return url
	}
	if getEnv("DB_DRIVER", "postgres") == "sqlite" {
		return getEnv("DB_PATH", "castcount.db")
	}

	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "castcount")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := cast.ToIntE(getEnv(key, ""))
	if err != nil || os.Getenv(key) == "" {
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	v, err := cast.ToFloat64E(getEnv(key, ""))
	if err != nil || os.Getenv(key) == "" {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := cast.ToBoolE(getEnv(key, ""))
	if err != nil || os.Getenv(key) == "" {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := cast.ToDurationE(getEnv(key, ""))
	if err != nil || os.Getenv(key) == "" {
		return defaultValue
	}
	return v
}
