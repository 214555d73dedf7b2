package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/rosca/internal/chain"
	"github.com/blues/rosca/internal/chat"
	"github.com/blues/rosca/internal/config"
	"github.com/blues/rosca/internal/database"
	"github.com/blues/rosca/internal/handler"
	"github.com/blues/rosca/internal/logger"
	"github.com/blues/rosca/internal/logic"
	"github.com/blues/rosca/internal/router"
	"github.com/blues/rosca/internal/task"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 初始化链管理器
	chainManager, err := chain.NewManager(cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to initialize chain manager: %v", err)
	}
	defer chainManager.Close()

	contracts, err := logic.NewContracts(chainManager)
	if err != nil {
		logger.Fatal("Failed to bind contracts: %v", err)
	}

	// 业务逻辑
	records := logic.NewTxRecordLogic(db, chainManager.Account())
	events := logic.NewEventLogic(db)
	groupLogic := logic.NewGroupLogic(contracts, records)
	inviteLogic := logic.NewInviteLogic(contracts, records)
	purchaseLogic := logic.NewPurchaseLogic(contracts, records)
	walletLogic := logic.NewWalletLogic(contracts, chainManager)

	// 启动定时任务
	interval := time.Duration(cfg.Task.Interval) * time.Second
	sources := make([]task.EventSource, 0)
	for _, c := range chainManager.GetContracts() {
		// 代币合约的转账事件与群组无关
		if c.GetName() == config.ContractToken {
			continue
		}
		sources = append(sources, c)
	}
	taskManager, err := task.NewManager(
		task.NewEventSyncJob(chainManager.Backend(), sources, events, interval, cfg.Task.BatchSize, cfg.Task.Workers),
		task.NewReceiptReconcileJob(chainManager, records, interval, cfg.Chain.ReceiptWait()),
	)
	if err != nil {
		logger.Fatal("Failed to initialize task manager: %v", err)
	}
	taskManager.Start()
	defer taskManager.Stop()

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(router.Handlers{
		Group:       handler.NewGroupHandler(groupLogic, events),
		Invite:      handler.NewInviteHandler(inviteLogic),
		Merchant:    handler.NewMerchantHandler(purchaseLogic),
		Assistant:   handler.NewAssistantHandler(chat.NewClient(cfg.Chat)),
		Transaction: handler.NewTransactionHandler(records),
		Wallet:      handler.NewWalletHandler(walletLogic),
	}, chainManager)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
	logger.Info("Server exited")
}
