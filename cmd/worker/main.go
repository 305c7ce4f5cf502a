package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tobiumeh/vendora-backend/internal/availability"
	"github.com/tobiumeh/vendora-backend/internal/cron"
	"github.com/tobiumeh/vendora-backend/internal/notifications"
	"github.com/tobiumeh/vendora-backend/internal/orders"
	"github.com/tobiumeh/vendora-backend/internal/refunds"
	"github.com/tobiumeh/vendora-backend/internal/timeline"
	"github.com/tobiumeh/vendora-backend/pkg/config"
	"github.com/tobiumeh/vendora-backend/pkg/db"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
	"github.com/tobiumeh/vendora-backend/pkg/metrics"
	"github.com/tobiumeh/vendora-backend/pkg/outbox"
	"github.com/tobiumeh/vendora-backend/pkg/outbox/idempotency"
	"github.com/tobiumeh/vendora-backend/pkg/pubsub"
	"github.com/tobiumeh/vendora-backend/pkg/redis"
	"github.com/joho/godotenv"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	idemManager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to create idempotency manager", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())

	// Notifications derive from the order and refund lifecycle streams.
	ordersConsumer, err := notifications.NewConsumer(notificationsRepo, pubsubClient.OrdersSubscription(), idemManager, logg)
	if err != nil {
		logg.Error(ctx, "failed to create orders consumer", err)
		os.Exit(1)
	}
	refundsConsumer, err := notifications.NewConsumer(notificationsRepo, pubsubClient.RefundsSubscription(), idemManager, logg)
	if err != nil {
		logg.Error(ctx, "failed to create refunds consumer", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)
	timelineService, err := timeline.NewService(timeline.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create timeline service", err)
		os.Exit(1)
	}
	ordersRepo := orders.NewRepository(dbClient.DB())
	availabilityService, err := availability.NewService(ordersRepo, refunds.NewRepository(dbClient.DB()), dbClient, outboxService, timelineService, cfg.Availability, logg)
	if err != nil {
		logg.Error(ctx, "failed to create availability service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewAvailabilityExpiryJob(cron.AvailabilityExpiryJobParams{
		Logger:       logg,
		Orders:       ordersRepo,
		Availability: availabilityService,
	})
	if err != nil {
		logg.Error(ctx, "failed to create availability expiry job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Outbox:        outboxRepo,
		DLQ:           outbox.NewDLQRepository(dbClient.DB()),
		RetentionDays: cfg.Outbox.RetentionDays,
		DLQDays:       cfg.Outbox.DLQDays,
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox retention job", err)
		os.Exit(1)
	}
	cronLock, err := cron.NewRedisLock(redisClient, "vnd:cron:worker-lock", cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}
	cronService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob, retentionJob),
		Lock:     cronLock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	svc, err := NewService(ServiceParams{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		PubSub:    pubsubClient,
		Consumers: []*notifications.Consumer{ordersConsumer, refundsConsumer},
		Cron:      cronService,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting worker")
	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shut down gracefully")
}
