package model

import (
	"time"
)

// 性别编码（与 TMDB 一致）
const (
	GenderUnknown   = 0
	GenderFemale    = 1
	GenderMale      = 2
	GenderNonBinary = 3
)

// DepartmentActing 只聚合表演部门的人物
const DepartmentActing = "Acting"

// JobDirector 剧组中的导演职位
const JobDirector = "Director"

// CrawlCursor 抓取游标，持久化以便重启后继续
type CrawlCursor struct {
	Name         string    `json:"name" gorm:"primaryKey"`
	Page         int       `json:"page"`
	NextPersonID int64     `json:"next_person_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (CrawlCursor) TableName() string {
	return "crawl_cursors"
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	TMDBID   int64    `json:"tmdb_id"`
	Name     string   `json:"name"`
	FilePath string   `json:"file_path"`
	ImageURL string   `json:"image_url"`
	Gender   int      `json:"gender"`
	Count    int      `json:"count"`
	List     []string `json:"list"`
}
