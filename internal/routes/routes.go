package routes

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/crashbet/payments/internal/config"
	"github.com/crashbet/payments/internal/deposit"
	"github.com/crashbet/payments/internal/funding"
	"github.com/crashbet/payments/internal/gateway"
	"github.com/crashbet/payments/internal/identity"
	"github.com/crashbet/payments/internal/ledger"
	"github.com/crashbet/payments/internal/logging"
	"github.com/crashbet/payments/internal/metrics"
	"github.com/crashbet/payments/internal/middleware"
	"github.com/crashbet/payments/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes. The optional backends
// override what Setup would otherwise derive from DB, Cache and Cfg.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry

	Deposits deposit.Repository
	Ledger   ledger.Applier
	Users    identity.Directory
	Gateway  gateway.Gateway
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() && d.DB == nil && d.Deposits == nil {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	if err := resolveBackends(&d); err != nil {
		return err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(logging.Component(d.Logger, "http")))
	app.Use(middleware.CORS())

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Registry)

	m := metrics.New(d.Registry)
	initiator := funding.NewInitiator(funding.InitiatorConfig{
		BaseURL:          d.Cfg.BaseURL,
		GatewaySecretKey: d.Cfg.GatewaySecretKey,
		Currency:         d.Cfg.ExpectedCurrency,
	}, d.Deposits, d.Users, d.Gateway, m, logging.Component(d.Logger, "initiate"))
	reconciler := funding.NewReconciler(funding.ReconcilerConfig{
		WebhookSecret:    d.Cfg.WebhookSecret,
		GatewaySecretKey: d.Cfg.GatewaySecretKey,
		Currency:         d.Cfg.ExpectedCurrency,
	}, d.Deposits, d.Gateway, d.Ledger, d.Notifier, m, logging.Component(d.Logger, "webhook"))
	handler := funding.NewHandler(initiator, reconciler, m)

	RegisterFundingRoutes(app, handler, FundingMiddleware{
		Auth:        middleware.JWTAuth(d.Cfg.JWTSecret, d.Logger),
		Idempotency: middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
		RateLimit:   middleware.RateLimit(d.Cache, "initiate", d.Cfg.InitiateRateLimit, d.Logger),
	})

	app.Use(func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})
	return nil
}

// resolveBackends picks Postgres-backed stores when a pool is available and in-memory
// ones otherwise.
func resolveBackends(d *Deps) error {
	if d.Deposits == nil {
		if d.DB != nil {
			d.Deposits = deposit.NewPostgresRepository(d.DB)
		} else {
			d.Deposits = deposit.NewMemoryRepository()
		}
	}

	if d.Ledger == nil {
		store, inMemory := d.Deposits.(ledger.DepositStore)
		switch {
		case d.DB != nil:
			d.Ledger = ledger.NewPostgresLedger(d.DB)
		case inMemory:
			d.Ledger = ledger.NewInMemory(store)
		default:
			return errors.New("no ledger backend: deposit store has no in-memory ledger and no database is configured")
		}
	}

	if d.Users == nil {
		switch {
		case d.Cfg.BaseURL != "" && d.Cfg.ServiceRoleKey != "":
			d.Users = identity.NewAdminClient(d.Cfg.BaseURL, d.Cfg.ServiceRoleKey, d.Cfg.GatewayTimeout)
		case d.DB != nil:
			d.Users = identity.NewPostgresRepository(d.DB)
		default:
			d.Users = identity.NewMemoryRepository()
		}
	}

	if d.Gateway == nil {
		d.Gateway = gateway.NewFlutterwave(d.Cfg.GatewayBaseURL, d.Cfg.GatewaySecretKey, d.Cfg.GatewayTimeout, logging.Component(d.Logger, "gateway"))
	}

	if d.Notifier == nil {
		if d.Cache != nil {
			d.Notifier = notification.NewRedisNotifier(d.Cache)
		} else {
			d.Notifier = notification.NewLoggerNotifier(logging.Component(d.Logger, "notification"))
		}
	}
	return nil
}
