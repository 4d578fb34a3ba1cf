package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/config"
	"github.com/hackgods/student-eservices/internal/logger"
	"github.com/hackgods/student-eservices/internal/notify"
)

// notifier-worker drains the notification queue filled by the API server
// and the reminder worker when NOTIFIER=amqp, and sends each message over
// SMTP.
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

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := amqp.Dial(cfg.Notifier.AMQPURL)
	if err != nil {
		zlog.Fatal("amqp connection error", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		zlog.Fatal("amqp channel error", zap.Error(err))
	}
	defer ch.Close()

	s := cfg.Notifier.SMTP
	smtp := notify.NewSMTPNotifier(s.Host, s.Port, s.Username, s.Password, s.FromEmail, s.FromName)

	zlog.Info("notifier-worker consuming",
		zap.String("queue", cfg.Notifier.AMQPQueue),
		zap.String("smtp_host", s.Host),
	)
	if err := notify.Consume(rootCtx, ch, cfg.Notifier.AMQPQueue, smtp, zlog); err != nil {
		zlog.Error("consumer stopped", zap.Error(err))
		return
	}
	zlog.Info("notifier-worker stopped")
}
