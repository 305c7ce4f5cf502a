package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tobiumeh/vendora-backend/api/controllers"
	ordercontrollers "github.com/tobiumeh/vendora-backend/api/controllers/orders"
	webhookcontrollers "github.com/tobiumeh/vendora-backend/api/controllers/webhooks"
	"github.com/tobiumeh/vendora-backend/api/middleware"
	"github.com/tobiumeh/vendora-backend/internal/auth"
	"github.com/tobiumeh/vendora-backend/internal/availability"
	"github.com/tobiumeh/vendora-backend/internal/notifications"
	"github.com/tobiumeh/vendora-backend/internal/orders"
	"github.com/tobiumeh/vendora-backend/internal/payments"
	"github.com/tobiumeh/vendora-backend/internal/refunds"
	"github.com/tobiumeh/vendora-backend/internal/timeline"
	gatewaywebhook "github.com/tobiumeh/vendora-backend/internal/webhooks/gateway"
	"github.com/tobiumeh/vendora-backend/pkg/auth/session"
	"github.com/tobiumeh/vendora-backend/pkg/config"
	"github.com/tobiumeh/vendora-backend/pkg/db"
	"github.com/tobiumeh/vendora-backend/pkg/gateway"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
	"github.com/tobiumeh/vendora-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	adminRegisterService auth.AdminRegisterService,
	paymentsService payments.Service,
	ordersService orders.Service,
	timelineService timeline.Service,
	availabilityService availability.Service,
	refundsService refunds.Service,
	notificationsService notifications.Service,
	gatewayClient *gateway.Client,
	gatewayWebhookService *gatewaywebhook.Service,
	gatewayWebhookGuard *gatewaywebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/validate", controllers.PublicValidate(logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(gatewayWebhookService, gatewayClient, gatewayWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, authService, logg))
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/register", controllers.AdminAuthRegister(adminRegisterService, authService, cfg, logg))
		}
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AdminAuthLogin(authService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit())

		r.Get("/ping", controllers.PrivatePing())

		r.With(middleware.CheckoutRateLimit(cfg.RateLimit, redisClient, logg)).
			Post("/v1/checkout/verify", controllers.VerifyCheckout(paymentsService, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Get(ordersService, logg))
			r.Post("/{orderId}/transition", ordercontrollers.Transition(ordersService, logg))
			r.Get("/{orderId}/timeline", ordercontrollers.Timeline(ordersService, timelineService, logg))

			r.With(middleware.RequireAnyRole(logg, "seller", "admin")).
				Post("/{orderId}/availability", ordercontrollers.MarkNotAvailable(availabilityService, logg))
			r.With(middleware.RequireAnyRole(logg, "buyer", "admin")).
				Post("/{orderId}/availability/response", ordercontrollers.RespondToAvailability(availabilityService, logg))

			r.With(middleware.RequireAnyRole(logg, "seller", "admin")).
				Post("/{orderId}/refunds", ordercontrollers.IssueRefund(refundsService, logg))
			r.Get("/{orderId}/refunds", ordercontrollers.ListRefunds(refundsService, logg))
		})

		r.With(middleware.RequireRole("admin", logg)).
			Post("/v1/refunds/{refundId}/status", ordercontrollers.ResolveRefund(refundsService, logg))

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit())
		r.Get("/ping", controllers.AdminPing())
	})

	return r
}
