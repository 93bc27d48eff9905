package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/mirrormarkets/mirror/internal/audit"
	"github.com/mirrormarkets/mirror/internal/automation"
	"github.com/mirrormarkets/mirror/internal/config"
	"github.com/mirrormarkets/mirror/internal/middleware"
	"github.com/mirrormarkets/mirror/internal/notification"
	"github.com/mirrormarkets/mirror/internal/signer"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics prometheus.Registerer

	// Health probe against the remote signing service. Populated during
	// Setup when the remote-backed provider is selected.
	signerPing func() error
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Stores: Postgres when available, in-memory fallbacks for dev.
	var walletRepo signer.Repository
	var recorder audit.Recorder
	var automations automation.Repository
	if d.DB != nil {
		walletRepo = signer.NewPostgresRepository(d.DB)
		recorder = audit.NewPostgresRecorder(d.DB)
		automations = automation.NewPostgresRepository(d.DB)
	} else {
		walletRepo = signer.NewMemoryRepository()
		recorder = audit.NewMemoryRecorder()
		automations = automation.NewMemoryRepository()
	}

	// Provider selection: remote-backed when a live credential is
	// configured, in-memory mock otherwise.
	live := d.Cfg.SignerLive()
	var client signer.RemoteClient
	if live {
		client = signer.NewHTTPClient(d.Cfg.SignerAPIURL, d.Cfg.SignerAPIKey, signer.NewMetrics(d.Metrics))
	}
	factory := signer.NewFactory(live, signer.ServiceDeps{
		Repo:        walletRepo,
		Client:      client,
		Audit:       recorder,
		Automations: automations,
		Notifier:    notification.NewLoggerNotifier(d.Logger),
		Logger:      d.Logger,
		CreatingTTL: d.Cfg.CreatingTTL,
	})
	provider := factory.Provider()
	if svc, ok := provider.(*signer.Service); ok {
		d.signerPing = func() error {
			ctx, cancel := contextWithProbeTimeout()
			defer cancel()
			return svc.Healthy(ctx)
		}
	}

	// Health
	RegisterHealthRoutes(app, d)

	signerHandler := signer.NewHandler(provider, recorder)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	rateLimiter := middleware.SigningRateLimit(d.Cache, d.Cfg.SignRateLimit)
	RegisterSignerRoutes(api, signerHandler, provider, rateLimiter)

	return nil
}
