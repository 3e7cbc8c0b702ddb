package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kursadbilgin/dissolution-engine/internal/config"
	"github.com/kursadbilgin/dissolution-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/dissolution-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/dissolution-engine/internal/infra/redis"
	"github.com/kursadbilgin/dissolution-engine/internal/observability"
	"github.com/kursadbilgin/dissolution-engine/internal/queue"
	"github.com/kursadbilgin/dissolution-engine/internal/repository"
	"github.com/kursadbilgin/dissolution-engine/internal/service"
	"go.uber.org/zap"
)

const metricsPushTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	_ = logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	location, err := cfg.Location()
	if err != nil {
		logger.Error("invalid job timezone", zap.Error(err))
		return err
	}

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.Options{}, logger)
	if err != nil {
		logger.Error("postgres initialization failed", zap.Error(err))
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("postgres underlying db init failed", zap.Error(err))
		return err
	}
	defer sqlDB.Close()

	if cfg.MigrateOnStart {
		if err := migrations.Migrate(db); err != nil {
			logger.Error("database migrations failed", zap.Error(err))
			return err
		}
	}

	var publisher queue.Publisher
	var outbox queue.Outbox
	if cfg.NoticesEnabled() {
		rabbit, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, cfg.NoticeQueue)
		if err != nil {
			logger.Error("rabbitmq initialization failed", zap.Error(err))
			return err
		}
		p := queue.NewRabbitMQPublisher(rabbit)
		defer p.Close()
		publisher = p
	}

	if cfg.OutboxEnabled() {
		rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("redis initialization failed", zap.Error(err))
			return err
		}
		defer rdb.Close()

		noticeOutbox, err := infraredis.NewNoticeOutbox(rdb, logger)
		if err != nil {
			logger.Error("notice outbox initialization failed", zap.Error(err))
			return err
		}
		outbox = noticeOutbox
	} else if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Warn("REDIS_URL is set but RABBITMQ_URL is not, notice outbox disabled")
	}

	metrics := observability.NewMetrics()

	settings, err := service.NewConfigurationSettings(repository.NewGormConfigurationRepo(db))
	if err != nil {
		logger.Error("settings initialization failed", zap.Error(err))
		return err
	}

	dissolver, err := service.NewDissolutionService(
		repository.NewGormBusinessRepo(db),
		repository.NewGormBatchRepo(db),
		repository.NewGormBatchProcessingRepo(db),
		publisher,
		outbox,
		metrics,
		location,
		logger,
	)
	if err != nil {
		logger.Error("dissolution service initialization failed", zap.Error(err))
		return err
	}

	job, err := service.NewJob(settings, dissolver, metrics, location, logger)
	if err != nil {
		logger.Error("job initialization failed", zap.Error(err))
		return err
	}

	report, runErr := job.Run(ctx)
	if runErr == nil {
		logger.Info("involuntary dissolution job completed",
			zap.String("runId", report.RunID),
			zap.Bool("onHold", report.OnHold),
			zap.Int("noticesRedelivered", report.NoticesRedelivered),
		)
	}

	if cfg.MetricsPushEnabled() {
		pushCtx, cancel := context.WithTimeout(context.Background(), metricsPushTimeout)
		if err := metrics.Push(pushCtx, cfg.PushgatewayURL); err != nil {
			logger.Warn("failed to push metrics", zap.Error(err))
		}
		cancel()
	}

	return runErr
}
