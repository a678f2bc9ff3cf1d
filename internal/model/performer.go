package model

import (
	"time"

	"github.com/lib/pq"
)

// Performer 演员及其派生统计
type Performer struct {
	ID                        uint           `json:"id" gorm:"primaryKey"`
	TMDBID                    int64          `json:"tmdb_id" gorm:"column:tmdb_id;uniqueIndex;not null"`
	Name                      string         `json:"name"`
	OriginalName              string         `json:"original_name"`
	Gender                    int            `json:"gender" gorm:"index"`
	KnownForDepartment        string         `json:"known_for_department"`
	Popularity                float64        `json:"popularity"`
	Revenue                   int64          `json:"revenue"`
	FilePath                  string         `json:"file_path"`
	Birthday                  *time.Time     `json:"birthday"`
	Deathday                  *time.Time     `json:"deathday"`
	Updated                   time.Time      `json:"updated" gorm:"column:updated;index"`
	MovieIDs                  pq.Int64Array  `json:"movies" gorm:"column:movies;type:bigint[]"`
	MoviesTotal               int            `json:"movies_total"`
	Top5Billing               int            `json:"top5billing" gorm:"column:top5billing"`
	DirectedByWomenPercentage float64        `json:"directedByWomenPercentage" gorm:"column:directed_by_women_percentage"`
	TopLanguage               string         `json:"topLanguage" gorm:"column:top_language"`
	CntAll                    int            `json:"cnt_all" gorm:"column:cnt_all;index"`
	CntLast5                  int            `json:"cnt_last5" gorm:"column:cnt_last5;index"`
	CntLast10                 int            `json:"cnt_last10" gorm:"column:cnt_last10;index"`
	CntLast20                 int            `json:"cnt_last20" gorm:"column:cnt_last20;index"`
	ListAll                   pq.StringArray `json:"list_all" gorm:"column:list_all;type:text[]"`
	ListLast5                 pq.StringArray `json:"list_last5" gorm:"column:list_last5;type:text[]"`
	ListLast10                pq.StringArray `json:"list_last10" gorm:"column:list_last10;type:text[]"`
	ListLast20                pq.StringArray `json:"list_last20" gorm:"column:list_last20;type:text[]"`
}

func (Performer) TableName() string {
	return "performers"
}

// ResetAggregates 清空所有派生字段，每次刷新都是整体重算
func (p *Performer) ResetAggregates() {
	p.MovieIDs = pq.Int64Array{}
	p.MoviesTotal = 0
	p.Revenue = 0
	p.Top5Billing = 0
	p.DirectedByWomenPercentage = 0
	p.TopLanguage = ""
	p.CntAll, p.CntLast5, p.CntLast10, p.CntLast20 = 0, 0, 0, 0
	p.ListAll = pq.StringArray{}
	p.ListLast5 = pq.StringArray{}
	p.ListLast10 = pq.StringArray{}
	p.ListLast20 = pq.StringArray{}
}

// HasMovie 收录集合中是否已有该电影
func (p *Performer) HasMovie(filmID uint) bool {
	return containsID(p.MovieIDs, filmID)
}

// AddMovie 收录电影，重复则忽略
func (p *Performer) AddMovie(filmID uint) bool {
	if p.HasMovie(filmID) {
		return false
	}
	p.MovieIDs = append(p.MovieIDs, int64(filmID))
	return true
}

// AddDirectedByWoman 记录一部女性导演作品，计数与列表同步增加。
// 窗口为 [currentYear-N, currentYear]，外层窗口总是包含内层窗口。
func (p *Performer) AddDirectedByWoman(entry string, releaseYear, currentYear int) {
	p.CntAll++
	p.ListAll = append(p.ListAll, entry)
	if releaseYear >= currentYear-5 {
		p.CntLast5++
		p.ListLast5 = append(p.ListLast5, entry)
	}
	if releaseYear >= currentYear-10 {
		p.CntLast10++
		p.ListLast10 = append(p.ListLast10, entry)
	}
	if releaseYear >= currentYear-20 {
		p.CntLast20++
		p.ListLast20 = append(p.ListLast20, entry)
	}
}

// FinalizeTotals 根据收录集合计算总数和女性导演占比
func (p *Performer) FinalizeTotals() {
	p.MoviesTotal = len(p.MovieIDs)
	if p.MoviesTotal == 0 {
		p.DirectedByWomenPercentage = 0
		return
	}
	p.DirectedByWomenPercentage = float64(p.CntAll) / float64(p.MoviesTotal)
}

// Window 按时间窗口取计数和列表，window 为 "all"、"5"、"10"、"20"
func (p *Performer) Window(window string) (int, []string) {
	switch window {
	case "5":
		return p.CntLast5, p.ListLast5
	case "10":
		return p.CntLast10, p.ListLast10
	case "20":
		return p.CntLast20, p.ListLast20
	default:
		return p.CntAll, p.ListAll
	}
}
