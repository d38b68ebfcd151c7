package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TIANLI0/PopCut/config"
	"github.com/TIANLI0/PopCut/handler"
	"github.com/TIANLI0/PopCut/middleware"
	"github.com/TIANLI0/PopCut/service"
	"github.com/TIANLI0/PopCut/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting PopCut server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch),
		zap.String("engine", cfg.GrabCut.Engine))

	// 确保结果目录存在
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
		utils.Logger.Fatal("failed to create output directory", zap.Error(err))
	}

	// 初始化Redis
	var cache service.ResultCache
	if cfg.Redis.Enabled {
		redisService := service.NewRedisService(&cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisService.Ping(ctx); err != nil {
			utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		} else {
			utils.Logger.Info("redis connected successfully")
			cache = redisService
		}
		cancel()
		defer redisService.Close()
	}

	// 初始化分割引擎与服务
	segmenter, err := service.NewSegmenter(cfg.GrabCut.Engine)
	if err != nil {
		utils.Logger.Fatal("failed to create segmenter", zap.Error(err))
	}
	grabCutService := service.NewGrabCutService(cfg, segmenter, cache)
	converterService := service.NewConverterService(&cfg.Upload)
	store := service.NewResultStore(cfg.Storage.OutputDir)

	// 定时清理过期结果
	janitor := service.NewJanitor(cfg.Storage.OutputDir, cfg.Storage.Retention)
	if err := janitor.Start(cfg.Storage.CleanupSchedule); err != nil {
		utils.Logger.Fatal("invalid cleanup schedule", zap.String("schedule", cfg.Storage.CleanupSchedule), zap.Error(err))
	}
	defer janitor.Stop()

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	handler.RegisterRoutes(r,
		handler.NewGrabCutHandler(cfg, grabCutService, store),
		handler.NewBWConverterHandler(cfg, converterService, store),
		store)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	utils.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("server shutdown failed", zap.Error(err))
	}
}
