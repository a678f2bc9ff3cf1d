package handler

import (
	"github.com/hashicorp/go-hclog"
	"github.com/user/castcount/internal/config"
	"github.com/user/castcount/internal/repository"
	"github.com/user/castcount/internal/service"
	"golang.org/x/sync/singleflight"
)

// Handler HTTP 处理器
type Handler struct {
	Repos     *repository.Repositories
	Config    *config.Config
	Refresher service.PerformerRefresher
	Logger    hclog.Logger

	refreshes singleflight.Group // 同一演员的并发手动刷新合并为一次
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories, cfg *config.Config, refresher service.PerformerRefresher, logger hclog.Logger) *Handler {
	return &Handler{
		Repos:     repos,
		Config:    cfg,
		Refresher: refresher,
		Logger:    logger,
	}
}
