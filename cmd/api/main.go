package main

import (
	"context"
	"net/http"
	"os"

	"github.com/tobiumeh/vendora-backend/api/routes"
	"github.com/tobiumeh/vendora-backend/internal/auth"
	"github.com/tobiumeh/vendora-backend/internal/availability"
	"github.com/tobiumeh/vendora-backend/internal/commission"
	"github.com/tobiumeh/vendora-backend/internal/ledger"
	"github.com/tobiumeh/vendora-backend/internal/notifications"
	"github.com/tobiumeh/vendora-backend/internal/orders"
	"github.com/tobiumeh/vendora-backend/internal/payments"
	"github.com/tobiumeh/vendora-backend/internal/refunds"
	"github.com/tobiumeh/vendora-backend/internal/timeline"
	"github.com/tobiumeh/vendora-backend/internal/users"
	gatewaywebhook "github.com/tobiumeh/vendora-backend/internal/webhooks/gateway"
	"github.com/tobiumeh/vendora-backend/pkg/auth/session"
	"github.com/tobiumeh/vendora-backend/pkg/config"
	"github.com/tobiumeh/vendora-backend/pkg/db"
	"github.com/tobiumeh/vendora-backend/pkg/gateway"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
	"github.com/tobiumeh/vendora-backend/pkg/migrate"
	"github.com/tobiumeh/vendora-backend/pkg/outbox"
	"github.com/tobiumeh/vendora-backend/pkg/redis"
	"github.com/joho/godotenv"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	adminRegisterService, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
		TxRunner:       dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin register service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	timelineService, err := timeline.NewService(timeline.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create timeline service", err)
		os.Exit(1)
	}

	commissionService, err := commission.NewService(commission.NewSettingsRepository(dbClient.DB()), cfg.Commission, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())

	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService, timelineService, commissionService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	auditLedger, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create audit ledger", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.NewLedgerRepository(dbClient.DB()), ordersRepo, gatewayClient, dbClient, outboxService, timelineService, auditLedger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	refundsRepo := refunds.NewRepository(dbClient.DB())

	refundsService, err := refunds.NewService(refundsRepo, ordersRepo, dbClient, outboxService, timelineService, auditLedger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	availabilityService, err := availability.NewService(ordersRepo, refundsRepo, dbClient, outboxService, timelineService, cfg.Availability, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create availability service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	gatewayWebhookService, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{
		Payments: paymentsService,
		Refunds:  refundsService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway webhook service", err)
		os.Exit(1)
	}

	gatewayWebhookGuard, err := gatewaywebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.OutboxIdempotencyTTL, "gateway-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			registerService,
			adminRegisterService,
			paymentsService,
			ordersService,
			timelineService,
			availabilityService,
			refundsService,
			notificationsService,
			gatewayClient,
			gatewayWebhookService,
			gatewayWebhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
