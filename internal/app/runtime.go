package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/api"
	"github.com/hackgods/student-eservices/internal/config"
	"github.com/hackgods/student-eservices/internal/db"
	"github.com/hackgods/student-eservices/internal/notify"
	redisclient "github.com/hackgods/student-eservices/internal/redis"
)

// Runtime holds the connections a long-running process owns.
type Runtime struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Services *Services

	closers []func()
}

// Start connects Postgres and Redis, optionally migrates, picks the
// configured notifier and builds the services.
func Start(ctx context.Context, cfg config.Config, appName string, log *zap.Logger) (*Runtime, error) {
	rt := &Runtime{}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, appName)
	cancel()
	if err != nil {
		return nil, err
	}
	rt.Pool = pool
	rt.closers = append(rt.closers, pool.Close)
	log.Info("connected to postgres")

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			rt.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied")
	}

	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Redis = rdb
	rt.closers = append(rt.closers, func() {
		if err := rdb.Close(); err != nil {
			log.Warn("close redis", zap.Error(err))
		}
	})
	log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	notifier, closeNotifier, err := NewNotifier(cfg.Notifier, log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeNotifier)

	rt.Services = Build(PostgresStorage(pool), Options{
		Location:    cfg.CampusTimezone,
		Locker:      redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait),
		SweepLocker: redisclient.NewRedisLocker(rdb, cfg.ReminderTimeout+sweepLockGrace, 0),
		Notifier:    notifier,
		Log:         log,
		PhoneRegion: cfg.PhoneRegion,
	})
	return rt, nil
}

// sweepLockGrace keeps the sweep lock alive past the sweep's own deadline.
const sweepLockGrace = 30 * time.Second

// Checks are the readiness probes for the runtime's dependencies. Redis is
// critical: without it no slot can be locked.
func (rt *Runtime) Checks() []api.Check {
	return []api.Check{
		{Name: "postgres", Critical: true, Ping: rt.Pool.Ping},
		{Name: "redis", Critical: true, Ping: func(ctx context.Context) error {
			return rt.Redis.Ping(ctx).Err()
		}},
	}
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// NewNotifier builds the delivery channel named by cfg.Kind. The returned
// func releases whatever connection it holds.
func NewNotifier(cfg config.NotifierConfig, log *zap.Logger) (notify.Notifier, func(), error) {
	switch cfg.Kind {
	case "smtp":
		s := cfg.SMTP
		log.Info("notifications delivered over smtp", zap.String("host", s.Host), zap.Int("port", s.Port))
		return notify.NewSMTPNotifier(s.Host, s.Port, s.Username, s.Password, s.FromEmail, s.FromName), func() {}, nil

	case "amqp":
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			return nil, nil, fmt.Errorf("dial amqp: %w", err)
		}
		pub, err := notify.NewQueuePublisher(conn, cfg.AMQPQueue)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		log.Info("notifications queued over amqp", zap.String("queue", cfg.AMQPQueue))
		return pub, func() {
			_ = pub.Close()
			_ = conn.Close()
		}, nil

	default:
		return notify.NewLogNotifier(log.Named("mail")), func() {}, nil
	}
}
