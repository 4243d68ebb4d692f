package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rosterhub/core/cache"
	"rosterhub/core/config"
	"rosterhub/core/database"
	"rosterhub/core/logger"
	"rosterhub/core/queue"
	"rosterhub/modules/calendarsync"
	"rosterhub/modules/notification"
	"rosterhub/modules/notification/worker"
	"rosterhub/modules/scheduling"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// Run boots the API server and the notification worker, then blocks until
// SIGINT/SIGTERM and shuts both down gracefully.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Server.LogLevel, cfg.Server.LogJSON)

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	c, err := cache.NewCache(cfg.Redis)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	q := queue.NewClient(cfg.Redis)
	defer q.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.RequestID())

	e.GET("/health", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Modules. Calendarsync goes first so scheduling can hook its fan-out.
	syncSvc, err := calendarsync.Init(e, db, c, q)
	if err != nil {
		return fmt.Errorf("init calendarsync module: %w", err)
	}
	scheduling.Init(e, db, c, syncSvc)
	notifSvc := notification.Init(e, db, c)

	// Notification worker consumes the calendar task queue.
	srv := queue.NewServer(cfg.Redis)
	go func() {
		if err := srv.Run(worker.NewWorker(notifSvc).Mux()); err != nil {
			logger.Error("Server:Worker:Error", "error", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("Server:Listening", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("Server:Start:Error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server:ShuttingDown")
	srv.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
