package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/observability"
	"storefront/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := observability.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if cfg.AuthSecret == "" {
		logger.Warn("auth_secret_missing", zap.String("hint", "admin and account routes will reject every request"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 组装数据库、Redis、事件链路和通知
	a, err := app.New(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("app_init_failed", zap.Error(err))
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	a.Start(workerCtx, true)

	// 2. HTTP
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(logger), middleware.Recovery(logger))
	router.Setup(r, router.Deps{
		Catalog:   a.Catalog,
		Inventory: a.Inventory,
		Orders:    a.Orders,
		Redis:     a.Redis,
		Gatherer:  prometheus.DefaultGatherer,
		Logger:    logger,
		Config:    cfg,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http_server_started",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("event_transport", cfg.EventTransport),
			zap.Bool("redis", a.Redis != nil),
			zap.Bool("smtp", cfg.SMTP.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown_started")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", zap.Error(err))
	}
	cancelWorkers()
	if err := a.Close(shutdownCtx); err != nil {
		logger.Error("app_close_failed", zap.Error(err))
	}
	logger.Info("shutdown_complete")
}
