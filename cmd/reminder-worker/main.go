package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/app"
	"github.com/hackgods/student-eservices/internal/appointment"
	"github.com/hackgods/student-eservices/internal/config"
	"github.com/hackgods/student-eservices/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("reminder-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(rootCtx, cfg, "reminder-worker", zlog)
	if err != nil {
		zlog.Fatal("startup failed", zap.Error(err))
	}
	defer rt.Close()

	svc := rt.Services.Appointments

	// Run once at startup
	runOnce(rootCtx, svc, cfg.ReminderTimeout, zlog)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			zlog.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.ReminderTimeout, zlog)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, timeout time.Duration, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := svc.SendReminders(runCtx, start)
	if err != nil {
		log.Error("reminder run failed", zap.Error(err))
		return
	}
	log.Info("reminder run complete",
		zap.Int("due", res.Due),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)),
	)
}
