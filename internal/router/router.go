package router

import (
	"net/http"

	"github.com/blues/pss/internal/handler"
	"github.com/blues/pss/internal/presale"
	"github.com/gin-gonic/gin"
)

func Setup(engine *presale.Engine) *gin.Engine {
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "presale-service",
		})
	})

	presaleHandler := handler.NewPresaleHandler(engine)
	adminHandler := handler.NewAdminHandler(engine)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// 公开查询
		ps := v1.Group("/presale")
		{
			ps.GET("/stats", presaleHandler.GetStats)
			ps.GET("/rounds", presaleHandler.GetRounds)
			ps.GET("/rounds/current", presaleHandler.GetCurrentRound)
			ps.GET("/contributions/:address", presaleHandler.GetContribution)
			ps.GET("/claimable/:address", presaleHandler.GetClaimable)
			ps.GET("/events", presaleHandler.GetEvents)
		}

		// 参与者操作（需调用方地址头）
		participant := v1.Group("/presale", requireCaller())
		{
			participant.POST("/contribute", presaleHandler.Contribute)
			participant.POST("/claim", presaleHandler.Claim)
			participant.POST("/refund", presaleHandler.ClaimRefund)
		}

		// 特权操作（角色校验在引擎内完成）
		admin := v1.Group("/admin", requireCaller())
		{
			admin.POST("/rounds/initialize", adminHandler.InitializeRounds)
			admin.POST("/rounds/finalize", adminHandler.FinalizeRound)
			admin.POST("/rounds/advance", adminHandler.AdvanceRound)

			admin.POST("/tge/request", adminHandler.RequestEnableTGE)
			admin.POST("/tge/execute", adminHandler.ExecuteEnableTGE)
			admin.POST("/tge/cancel", adminHandler.CancelEnableTGE)

			admin.POST("/refunds/enable", adminHandler.EnableRefunds)
			admin.POST("/refunds/recover", adminHandler.RecoverUnclaimedRefunds)

			admin.POST("/withdraw/request", adminHandler.RequestWithdraw)
			admin.POST("/withdraw/execute", adminHandler.ExecuteWithdraw)
			admin.POST("/withdraw/cancel", adminHandler.CancelWithdraw)
			admin.POST("/withdraw/excess", adminHandler.WithdrawExcessAllocation)

			admin.POST("/emergency/request", adminHandler.RequestEmergencyWithdraw)
			admin.POST("/emergency/execute", adminHandler.ExecuteEmergencyWithdraw)
			admin.POST("/emergency/cancel", adminHandler.CancelEmergencyWithdraw)

			admin.POST("/rate-limit", adminHandler.UpdateHourlyLimit)
			admin.POST("/pause", adminHandler.Pause)
			admin.POST("/unpause", adminHandler.Unpause)
		}
	}

	return r
}

// requireCaller 要求调用方地址头存在
// 地址真实性由前置身份层（签名校验网关）保证
func requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(handler.CallerHeader) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "missing " + handler.CallerHeader + " header",
			})
			return
		}
		c.Next()
	}
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Caller-Address")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
