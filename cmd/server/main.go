package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/odhis101/k3c-platform/internal/config"
	"github.com/odhis101/k3c-platform/internal/database"
	"github.com/odhis101/k3c-platform/internal/gateway"
	"github.com/odhis101/k3c-platform/internal/logger"
	"github.com/odhis101/k3c-platform/internal/logic"
	"github.com/odhis101/k3c-platform/internal/model"
	"github.com/odhis101/k3c-platform/internal/notifier"
	"github.com/odhis101/k3c-platform/internal/router"
	"github.com/odhis101/k3c-platform/internal/task"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	logger.Setup(cfg.Log)
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化支付渠道
	mpesaGw := gateway.NewMpesaGateway(cfg.Mpesa, cfg.Payment)
	cardGw := gateway.NewCardGateway(cfg.Card, cfg.Payment)
	gateways := map[model.PaymentChannel]gateway.Gateway{
		model.PaymentChannelMpesa: mpesaGw,
		model.PaymentChannelCard:  cardGw,
	}

	// 初始化推送中心
	hub := notifier.NewHub()
	hub.Start()
	defer hub.Stop()

	// 对账引擎由回调、轮询与巡检任务共用
	reconcileLogic := logic.NewReconcileLogic(db, gateways, hub)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(db, cfg, hub, reconcileLogic, mpesaGw, cardGw)

	// 启动定时任务
	manager := task.Start(db, reconcileLogic, cfg)
	defer manager.Stop()

	// 启动服务器
	logger.Info("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
