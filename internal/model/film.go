package model

import (
	"time"

	"github.com/lib/pq"
)

// 电影状态
const (
	FilmStatusReleased = "Released"
)

// 导演性别标记
const (
	DirectorGenderNoFemale = 0
	DirectorGenderFemale   = 1
)

// 资格判定阈值
const (
	MaxDirectorsExclusive = 4
	MinRuntimeExclusive   = 40
)

// Film 电影模型（TMDB 信息 + 派生标记）
type Film struct {
	ID               uint          `json:"id" gorm:"primaryKey"`
	TMDBID           int64         `json:"tmdb_id" gorm:"column:tmdb_id;uniqueIndex;not null"`
	Title            string        `json:"title"`
	OriginalTitle    string        `json:"original_title"`
	ReleaseDate      *time.Time    `json:"release_date"` // 缺失或无法解析时为 nil
	OriginalLanguage string        `json:"original_language"`
	Runtime          int           `json:"runtime"`
	Status           string        `json:"status"`
	Budget           int64         `json:"budget"`
	Revenue          int64         `json:"revenue"`
	IMDbID           *string       `json:"imdb_id" gorm:"column:imdb_id"`
	IsDocumentary    bool          `json:"is_documentary"`
	DirectorGender   int           `json:"director_gender"`
	DirectorIDs      pq.Int64Array `json:"director" gorm:"column:director;type:bigint[]"`
	LeadTop5         pq.Int64Array `json:"lead_top5" gorm:"column:lead_top5;type:bigint[]"`
	Updated          time.Time     `json:"updated" gorm:"column:updated;index"`
}

func (Film) TableName() string {
	return "films"
}

// Eligible 电影是否计入演员统计。
// 收录、票房、前五番位和女性导演计数都只用这一个判定。
func (f *Film) Eligible() bool {
	if f == nil {
		return false
	}
	return f.ReleaseDate != nil &&
		f.Status == FilmStatusReleased &&
		len(f.DirectorIDs) < MaxDirectorsExclusive &&
		!f.IsDocumentary &&
		f.Runtime > MinRuntimeExclusive &&
		f.IMDbID != nil && *f.IMDbID != ""
}

// ReleaseYear 上映年份，日期缺失时返回 0
func (f *Film) ReleaseYear() int {
	if f.ReleaseDate == nil {
		return 0
	}
	return f.ReleaseDate.Year()
}

// HasDirector 导演集合中是否已包含该内部 ID
func (f *Film) HasDirector(id uint) bool {
	return containsID(f.DirectorIDs, id)
}

// AddDirector 加入导演引用，已存在则忽略
func (f *Film) AddDirector(id uint) bool {
	if f.HasDirector(id) {
		return false
	}
	f.DirectorIDs = append(f.DirectorIDs, int64(id))
	return true
}

// LeadsInclude 演员是否在前五番位中
func (f *Film) LeadsInclude(performerTMDBID int64) bool {
	for _, id := range f.LeadTop5 {
		if id == performerTMDBID {
			return true
		}
	}
	return false
}

func containsID(ids pq.Int64Array, id uint) bool {
	for _, v := range ids {
		if v == int64(id) {
			return true
		}
	}
	return false
}
