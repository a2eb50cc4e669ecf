package router

import (
	"github.com/gin-gonic/gin"
	"github.com/odhis101/k3c-platform/internal/auth"
	"github.com/odhis101/k3c-platform/internal/config"
	"github.com/odhis101/k3c-platform/internal/gateway"
	"github.com/odhis101/k3c-platform/internal/handler"
	"github.com/odhis101/k3c-platform/internal/logic"
	"github.com/odhis101/k3c-platform/internal/model"
	"github.com/odhis101/k3c-platform/internal/notifier"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func Setup(db *gorm.DB, cfg *config.Config, hub *notifier.Hub, reconcileLogic *logic.ReconcileLogic, mpesaGw *gateway.MpesaGateway, cardGw *gateway.CardGateway) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "k3c-platform",
		})
	})

	issuer := auth.NewTokenIssuer(cfg.Auth)
	gateways := map[model.PaymentChannel]gateway.Gateway{
		model.PaymentChannelMpesa: mpesaGw,
		model.PaymentChannelCard:  cardGw,
	}

	userLogic := logic.NewUserLogic(db, issuer)
	campaignLogic := logic.NewCampaignLogic(db)
	contributeLogic := logic.NewContributionLogic(db, gateways, decimal.NewFromFloat(cfg.Payment.MinAmount))

	userHandler := handler.NewUserHandler(userLogic)
	campaignHandler := handler.NewCampaignHandler(campaignLogic, contributeLogic)
	paymentHandler := handler.NewPaymentHandler(contributeLogic, reconcileLogic, mpesaGw, cardGw)
	wsHandler := handler.NewWsHandler(hub, campaignLogic)

	// 实时进度订阅
	r.GET("/ws/campaigns/:id", wsHandler.Subscribe)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// 认证相关路由
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", userHandler.Register)
			authGroup.POST("/login", userHandler.Login)
			authGroup.GET("/me", authMiddleware(issuer), userHandler.Me)
		}

		// 活动相关路由
		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("", campaignHandler.GetCampaigns)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.GET("/:id/contributions", campaignHandler.GetCampaignContributions)
			campaigns.GET("/:id/stats", campaignHandler.GetCampaignStats)

			admin := campaigns.Group("", authMiddleware(issuer), requireRole(model.UserRoleAdmin))
			{
				admin.POST("", campaignHandler.CreateCampaign)
				admin.PUT("/:id", campaignHandler.UpdateCampaign)
				admin.DELETE("/:id", campaignHandler.DeleteCampaign)
			}
		}

		// 支付相关路由
		payments := v1.Group("/payments")
		{
			payments.POST("/initiate", optionalAuthMiddleware(issuer), paymentHandler.InitiatePayment)
			payments.POST("/mpesa/callback", paymentHandler.MpesaCallback)
			payments.POST("/card/webhook", paymentHandler.CardWebhook)
			payments.GET("/:checkout_id/status", optionalAuthMiddleware(issuer), paymentHandler.PaymentStatus)
			payments.POST("/:checkout_id/verify", paymentHandler.VerifyPayment)
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
