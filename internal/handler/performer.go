package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/castcount/internal/model"
	"github.com/user/castcount/internal/service"
	"github.com/user/castcount/internal/utils"
)

const leaderboardCacheTTL = time.Minute

type leaderboardQuery struct {
	Time   string `form:"time" binding:"omitempty,oneof=all 5 10 20"`
	Gender string `form:"gender" binding:"omitempty,oneof=all 0 1 2 3"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Leaderboard 按女性导演作品数排序的演员榜单
func (h *Handler) Leaderboard(c *gin.Context) {
	var q leaderboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if q.Time == "" {
		q.Time = "all"
	}
	if q.Gender == "" {
		q.Gender = "all"
	}
	if q.Limit == 0 {
		q.Limit = 20
	}

	cacheKey := fmt.Sprintf("leaderboard:%s:%s:%d", q.Time, q.Gender, q.Limit)
	if cached, found := utils.CacheGet(cacheKey); found {
		if entries, ok := cached.([]model.LeaderboardEntry); ok {
			utils.Success(c, entries)
			return
		}
	}

	var gender *int
	if q.Gender != "all" {
		g, _ := strconv.Atoi(q.Gender)
		gender = &g
	}

	performers, err := h.Repos.Performer.Top(c.Request.Context(), q.Time, gender, q.Limit)
	if err != nil {
		h.Logger.Error("查询榜单失败", "error", err)
		utils.InternalServerError(c, "查询失败")
		return
	}

	entries := make([]model.LeaderboardEntry, 0, len(performers))
	for i := range performers {
		p := &performers[i]
		count, list := p.Window(q.Time)
		if list == nil {
			list = []string{}
		}
		entries = append(entries, model.LeaderboardEntry{
			TMDBID:   p.TMDBID,
			Name:     p.Name,
			FilePath: p.FilePath,
			ImageURL: service.ImageURL(p.FilePath),
			Gender:   p.Gender,
			Count:    count,
			List:     list,
		})
	}

	utils.CacheSet(cacheKey, entries, leaderboardCacheTTL)
	utils.Success(c, entries)
}

// Performer 演员详情及已收录电影
func (h *Handler) Performer(c *gin.Context) {
	id, ok := parseTMDBID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	performer, err := h.Repos.Performer.FindByTMDBID(ctx, id)
	if err != nil {
		h.Logger.Error("查询演员失败", "tmdb_id", id, "error", err)
		utils.InternalServerError(c, "查询失败")
		return
	}
	if performer == nil {
		utils.NotFound(c, "演员不存在")
		return
	}

	films, err := h.Repos.Film.FindByIDs(ctx, performer.MovieIDs)
	if err != nil {
		h.Logger.Error("查询电影失败", "tmdb_id", id, "error", err)
		utils.InternalServerError(c, "查询失败")
		return
	}
	if films == nil {
		films = []model.Film{}
	}

	utils.Success(c, gin.H{
		"performer": performer,
		"image_url": service.ImageURL(performer.FilePath),
		"films":     films,
	})
}

// parseTMDBID 解析路径中的外部 ID，失败时已写回 400
func parseTMDBID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.BadRequest(c, "无效的 ID")
		return 0, false
	}
	return id, true
}
