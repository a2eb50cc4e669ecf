package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/odhis101/k3c-platform/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 50 * time.Second
	clientBuffer   = 16
	broadcastDepth = 256
)

// Client 单个 websocket 订阅者
type Client struct {
	campaignId int64
	conn       *websocket.Conn
	send       chan []byte
}

// Hub 按活动分组的事件推送中心
// 显式构造、显式注入，不做包级单例
type Hub struct {
	clients    map[int64]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewHub 创建推送中心
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, broadcastDepth),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动分发循环
func (h *Hub) Start() {
	go h.loop()
}

// Stop 停止分发
func (h *Hub) Stop() {
	h.cancel()
}

// Publish 发布事件，尽力而为：队列满时丢弃而不是阻塞调用方
func (h *Hub) Publish(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		logger.Warn("Notifier queue full, dropping %s event for campaign %d", ev.Type, ev.CampaignId)
	}
}

// Subscribe 将一条 websocket 连接登记到指定活动
func (h *Hub) Subscribe(campaignId int64, conn *websocket.Conn) {
	client := &Client{
		campaignId: campaignId,
		conn:       conn,
		send:       make(chan []byte, clientBuffer),
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

// loop 分发循环，单协程顺序处理保证同活动事件有序
func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			for _, group := range h.clients {
				for client := range group {
					close(client.send)
				}
			}
			logger.Info("Notifier hub stopped")
			return

		case client := <-h.register:
			if h.clients[client.campaignId] == nil {
				h.clients[client.campaignId] = make(map[*Client]bool)
			}
			h.clients[client.campaignId][client] = true
			logger.Debug("Subscriber joined campaign %d", client.campaignId)

		case client := <-h.unregister:
			if group, ok := h.clients[client.campaignId]; ok {
				if _, ok := group[client]; ok {
					delete(group, client)
					close(client.send)
					if len(group) == 0 {
						delete(h.clients, client.campaignId)
					}
				}
			}

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Error("Failed to marshal event: %v", err)
				continue
			}
			for client := range h.clients[ev.CampaignId] {
				select {
				case client.send <- data:
				default:
					// 消费太慢的订阅者直接丢弃本条，不影响其他人
					logger.Debug("Dropping event for slow subscriber on campaign %d", ev.CampaignId)
				}
			}
		}
	}
}

// writePump 将事件写到连接，失败即退出由 readPump 负责注销
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只为感知断开，收到任何错误即注销
func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
