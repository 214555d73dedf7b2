package router

import (
	"context"
	"net/http"
	"time"

	"github.com/blues/rosca/internal/handler"
	"github.com/blues/rosca/internal/logger"
	"github.com/blues/rosca/internal/logic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	serviceName     = "rosca-gateway"
	requestIDHeader = "X-Request-ID"
)

// HealthReporter 链节点健康状态，由 chain.Manager 实现
type HealthReporter interface {
	GetHealthStatus(ctx context.Context) map[string]interface{}
}

// Handlers 路由使用的处理器
type Handlers struct {
	Group       *handler.GroupHandler
	Invite      *handler.InviteHandler
	Merchant    *handler.MerchantHandler
	Assistant   *handler.AssistantHandler
	Transaction *handler.TransactionHandler
	Wallet      *handler.WalletHandler
}

func Setup(h Handlers, health HealthReporter) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(requestIDMiddleware())
	r.Use(accessLogMiddleware())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		status := health.GetHealthStatus(c.Request.Context())
		code := http.StatusOK
		if status["client_status"] != "connected" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  "ok",
			"service": serviceName,
			"chain":   status,
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		v1.GET("/wallet", h.Wallet.GetWallet)

		// 群组相关路由
		groups := v1.Group("/groups")
		{
			groups.POST("", h.Group.CreateGroup)
			groups.GET("/mine", h.Group.ListMyGroups)
			groups.GET("/stats", h.Group.GetStats)
			groups.GET("/:id", h.Group.GetGroup)
			groups.POST("/:id/join", h.Group.JoinGroup)
			groups.POST("/:id/contribute", h.Group.Contribute)
			groups.POST("/:id/payout", h.Group.ClaimPayout)
			groups.GET("/:id/contribution", h.Group.GetContributionStatus)
			groups.GET("/:id/events", h.Group.GetGroupEvents)
			groups.POST("/:id/invites", h.Invite.GenerateInvite)
		}

		// 邀请码相关路由
		invites := v1.Group("/invites")
		{
			invites.GET("/:code", h.Invite.GetInvite)
			invites.POST("/:code/redeem", h.Invite.RedeemInvite)
			invites.DELETE("/:code", h.Invite.DeactivateInvite)
		}

		// 商户相关路由
		products := v1.Group("/products")
		{
			products.GET("", h.Merchant.ListProducts)
			products.GET("/:id", h.Merchant.GetProduct)
			products.POST("/:id/purchase", h.Merchant.Purchase)
		}
		installments := v1.Group("/installments")
		{
			installments.GET("/mine", h.Merchant.ListMyPlans)
			installments.POST("/:id/pay", h.Merchant.PayInstallment)
		}

		v1.POST("/assistant/chat", h.Assistant.Chat)

		// 交易记录
		transactions := v1.Group("/transactions")
		{
			transactions.GET("", h.Transaction.ListTransactions)
			transactions.GET("/:hash", h.Transaction.GetTransaction)
		}
	}

	return r
}

// requestIDMiddleware 为每个请求分配ID，写入响应头并随 context 传给交易记录
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logic.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// accessLogMiddleware 访问日志
func accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.With(
			zap.String("request_id", logic.RequestID(c.Request.Context())),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		).Info("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, X-Request-ID, Authorization")
		c.Header("Access-Control-Expose-Headers", requestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
