package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/castcount/internal/service"
	"github.com/user/castcount/internal/utils"
)

// ==================== 管理接口 ====================

// RefreshPerformer 强制刷新单个演员
func (h *Handler) RefreshPerformer(c *gin.Context) {
	id, ok := parseTMDBID(c)
	if !ok {
		return
	}

	v, err, shared := h.refreshes.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		return h.Refresher.RefreshPerformer(c.Request.Context(), id, true)
	})
	if err != nil {
		h.writeRefreshError(c, id, err)
		return
	}

	result := v.(*service.RefreshResult)
	if result.Outcome == service.OutcomeRefreshed {
		utils.CacheClear()
	}
	h.Logger.Info("手动刷新完成", "tmdb_id", id, "outcome", result.Outcome, "shared", shared)
	utils.Success(c, result)
}

func (h *Handler) writeRefreshError(c *gin.Context, id int64, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		utils.NotFound(c, "上游不存在该人物")
	case errors.Is(err, service.ErrTransient):
		h.Logger.Warn("手动刷新上游失败", "tmdb_id", id, "error", err)
		utils.BadGateway(c, "上游暂时不可用")
	default:
		h.Logger.Error("手动刷新失败", "tmdb_id", id, "error", err)
		utils.InternalServerError(c, "刷新失败")
	}
}
