package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/odhis101/k3c-platform/internal/logger"
	"github.com/odhis101/k3c-platform/internal/logic"
	"github.com/odhis101/k3c-platform/internal/notifier"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由网关层控制，这里放行
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WsHandler 实时进度订阅处理器
type WsHandler struct {
	hub           *notifier.Hub
	campaignLogic *logic.CampaignLogic
}

// NewWsHandler 创建订阅处理器
func NewWsHandler(hub *notifier.Hub, campaignLogic *logic.CampaignLogic) *WsHandler {
	return &WsHandler{hub: hub, campaignLogic: campaignLogic}
}

// Subscribe 订阅指定活动的实时进度
func (h *WsHandler) Subscribe(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的活动ID"})
		return
	}

	// 活动不存在直接拒绝升级
	if _, err := h.campaignLogic.GetCampaign(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "募捐活动不存在"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Failed to upgrade websocket: %v", err)
		return
	}

	h.hub.Subscribe(id, conn)
}
