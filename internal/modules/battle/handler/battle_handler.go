// Package handler 提供战斗模块的 HTTP 接入层。
package handler

import (
	"github.com/labstack/echo/v4"

	"idle-rpg-server/internal/modules/battle/service"
	"idle-rpg-server/internal/pkg/response"
)

// BattleHandler 战斗会话的 HTTP Handler
type BattleHandler struct {
	sessions   *service.BattleSessionService
	respWriter response.Writer
}

// NewBattleHandler 构造函数
func NewBattleHandler(sc *service.ServiceContainer, respWriter response.Writer) *BattleHandler {
	return &BattleHandler{
		sessions:   sc.SessionService,
		respWriter: respWriter,
	}
}

// RegisterRoutes 注册路由
func (h *BattleHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/battles", h.StartBattle)
	g.GET("/battles/:id", h.GetBattleSnapshot)
	g.DELETE("/battles/:id", h.CancelBattle)
}

type startBattleRequest struct {
	BattleType string     `json:"battle_type" validate:"required,battle_type"`
	HeroIDs    []string   `json:"hero_ids" validate:"required,min=1,dive,required"`
	Waves      [][]string `json:"waves" validate:"required,min=1"`
	Seed       int64      `json:"seed,omitempty"`
}

type cancelBattleRequest struct {
	RequesterID string `json:"requester_id"`
}

// StartBattle 开启一场战斗
// POST /api/v1/battles
func (h *BattleHandler) StartBattle(c echo.Context) error {
	var req startBattleRequest
	if err := c.Bind(&req); err != nil {
		return response.EchoBadRequest(c, h.respWriter, "请求体格式错误")
	}
	if err := c.Validate(&req); err != nil {
		return response.EchoBadRequest(c, h.respWriter, err.Error())
	}

	snapshot, err := h.sessions.StartBattle(c.Request().Context(), service.StartBattleInput{
		BattleType: req.BattleType,
		HeroIDs:    req.HeroIDs,
		Waves:      req.Waves,
		Seed:       req.Seed,
	})
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}
	return response.EchoOK(c, h.respWriter, snapshot)
}

// GetBattleSnapshot 查询战斗快照
// GET /api/v1/battles/:id
func (h *BattleHandler) GetBattleSnapshot(c echo.Context) error {
	battleID := c.Param("id")
	if battleID == "" {
		return response.EchoBadRequest(c, h.respWriter, "battle id 不能为空")
	}

	snapshot, err := h.sessions.GetBattleSnapshot(c.Request().Context(), battleID)
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}
	return response.EchoOK(c, h.respWriter, snapshot)
}

// CancelBattle 取消一场战斗（协作式，下一 tick 生效）
// DELETE /api/v1/battles/:id
func (h *BattleHandler) CancelBattle(c echo.Context) error {
	battleID := c.Param("id")
	if battleID == "" {
		return response.EchoBadRequest(c, h.respWriter, "battle id 不能为空")
	}

	// 请求体可选：携带 requester_id 时校验取消者在战斗中
	var req cancelBattleRequest
	_ = c.Bind(&req)

	if err := h.sessions.CancelBattle(c.Request().Context(), battleID, req.RequesterID); err != nil {
		return response.EchoError(c, h.respWriter, err)
	}
	return response.EchoOK(c, h.respWriter, response.EmptyData{})
}
