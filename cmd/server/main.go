package main

import (
	"context"

	"github.com/blues/pss/internal/config"
	"github.com/blues/pss/internal/database"
	"github.com/blues/pss/internal/ethereum"
	"github.com/blues/pss/internal/logger"
	"github.com/blues/pss/internal/notify"
	"github.com/blues/pss/internal/presale"
	"github.com/blues/pss/internal/router"
	"github.com/blues/pss/internal/task"
	"github.com/blues/pss/internal/token"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	logger.Init(cfg.Log)

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 初始化以太坊客户端
	ethClient, err := ethereum.Init(cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to initialize ethereum client: %v", err)
	}

	// 代币账本
	payment := token.NewERC20(ethClient, cfg.Chain.PaymentToken)
	allocation := token.NewERC20(ethClient, cfg.Chain.AllocationToken)

	// 事件外发器
	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		logger.Fatal("Failed to initialize notifier: %v", err)
	}
	defer notifier.Close()

	// 预售引擎
	engine := presale.New(
		db,
		&cfg.Presale,
		presale.NewAuthContext(cfg.Roles),
		payment,
		allocation,
		cfg.Chain.Custody,
		presale.WithBlockNumber(func(ctx context.Context) (uint64, error) {
			return ethClient.BlockNumber(ctx)
		}),
		presale.WithNotifier(notifier),
	)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(engine)

	// 启动定时任务
	manager := task.Start(db, engine, payment, allocation, cfg)
	defer manager.Stop()

	// 启动服务器
	logger.Info("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
