package service

import (
	"time"

	"github.com/user/castcount/internal/config"
)

// ShouldFetch 判断是否需要从上游重新抓取。
// 记录不存在、强制刷新、或距上次更新已达到阈值时返回 true。
func ShouldFetch(lastUpdated *time.Time, force bool, threshold time.Duration, now time.Time) bool {
	if lastUpdated == nil || force {
		return true
	}
	return now.Sub(*lastUpdated) >= threshold
}

// FreshnessPolicy 每类实体一个过期阈值
type FreshnessPolicy struct {
	Performer time.Duration
	Film      time.Duration
	Director  time.Duration
}

// NewFreshnessPolicy 从配置（天）构建
func NewFreshnessPolicy(cfg config.StaleConfig) FreshnessPolicy {
	return FreshnessPolicy{
		Performer: config.StaleThreshold(cfg.PerformerDays),
		Film:      config.StaleThreshold(cfg.FilmDays),
		Director:  config.StaleThreshold(cfg.DirectorDays),
	}
}
