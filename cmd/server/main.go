package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/ordergazer/internal/api/handlers"
	"github.com/langchou/ordergazer/internal/api/tesla"
	"github.com/langchou/ordergazer/internal/auth"
	"github.com/langchou/ordergazer/internal/config"
	"github.com/langchou/ordergazer/internal/optioncodes"
	"github.com/langchou/ordergazer/internal/repository"
	"github.com/langchou/ordergazer/internal/service"
	"github.com/langchou/ordergazer/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Ordergazer", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	credRepo := repository.NewCredentialRepository(db)
	snapRepo := repository.NewSnapshotRepository(db)
	histRepo := repository.NewHistoryRepository(db)

	// 加载选配代码表（文件名字典序叠加，后者覆盖前者）
	overlay, err := optioncodes.LoadDir(cfg.OptionCodesDir)
	if err != nil {
		logger.Warn("Failed to load option code tables, codes will not resolve", zap.Error(err))
		overlay, _ = optioncodes.Load(nil)
	}
	logger.Info("Option codes loaded", zap.Int("codes", overlay.Len()))

	// 创建 Tesla API 客户端
	teslaClient := tesla.NewClient(
		cfg.TeslaAuthHost,
		cfg.TeslaAPIHost,
		cfg.TeslaOrderHost,
		cfg.TeslaClientID,
		cfg.TeslaRedirectURI,
		cfg.TeslaAppVersion,
		cfg.RequestTimeout,
	)

	// 创建 TokenStore
	tokenStore := auth.NewTokenStore(logger, credRepo, teslaClient, cfg.TokenExpiryMargin)

	if cred, err := tokenStore.Load(ctx); err != nil {
		logger.Warn("Persisted credential unreadable, re-authentication required", zap.Error(err))
	} else if cred == nil {
		logger.Warn("No credential stored yet, authenticate via /api/auth/url")
	}

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 创建订单服务
	orderService := service.NewOrderService(
		cfg,
		logger,
		teslaClient,
		tokenStore,
		snapRepo,
		histRepo,
		wsHub,
	)

	// 新连接推送当前订单和生命周期状态
	wsHub.SetInitDataProvider(func() *ws.InitData {
		snaps, err := snapRepo.List(ctx)
		if err != nil {
			logger.Error("Failed to load snapshots for init data", zap.Error(err))
			return nil
		}
		return &ws.InitData{
			Orders: snaps,
			States: orderService.LifecycleStates(),
		}
	})

	// 启动轮询；没有凭据时第一个周期会自动暂停，等待交互式认证
	if err := orderService.Start(ctx); err != nil {
		logger.Error("Failed to start order service", zap.Error(err))
	}

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(
		logger,
		tokenStore,
		snapRepo,
		histRepo,
		orderService,
		overlay,
		wsHub,
	)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止服务
	orderService.Stop()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
