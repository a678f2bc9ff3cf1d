package model

import "time"

// Director 导演，多部电影共享
type Director struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	TMDBID             int64     `json:"tmdb_id" gorm:"column:tmdb_id;uniqueIndex;not null"`
	Name               string    `json:"name"`
	OriginalName       string    `json:"original_name"`
	Gender             int       `json:"gender"`
	KnownForDepartment string    `json:"known_for_department"`
	Updated            time.Time `json:"updated" gorm:"column:updated;index"`
}

func (Director) TableName() string {
	return "directors"
}
