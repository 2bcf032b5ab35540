package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/insightgrid/analytics-gateway/internal/api"
	"github.com/insightgrid/analytics-gateway/internal/audit"
	"github.com/insightgrid/analytics-gateway/internal/gateway"
	"github.com/insightgrid/analytics-gateway/internal/metrics"
	"github.com/insightgrid/analytics-gateway/internal/rate"
	intsecrets "github.com/insightgrid/analytics-gateway/internal/secrets"
	"github.com/insightgrid/analytics-gateway/internal/superset"
	"github.com/insightgrid/analytics-gateway/internal/tenant"
	"github.com/insightgrid/analytics-gateway/internal/tokencache"
	"github.com/insightgrid/analytics-gateway/pkg/config"
	"github.com/insightgrid/analytics-gateway/pkg/logger"
	pkgsecrets "github.com/insightgrid/analytics-gateway/pkg/secrets"
	"github.com/insightgrid/analytics-gateway/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [analytics-gateway]...")

	// --- Credential cache + AWS Secrets Manager provider ---
	credCache := pkgsecrets.NewCache[pkgsecrets.Credentials](cfg.CredentialTTL)
	go credCache.StartCleaner(cfg.CleanupFreq, ctx.Done())

	awsProvider, err := pkgsecrets.NewAWSProvider(cfg.AWSRegion)
	if err != nil {
		logg.Fatalw("failed to init AWS provider", "error", err)
	}
	credResolver := intsecrets.NewResolver(logger.L(), awsProvider, credCache)

	// --- Token cache (Redis, shared across instances) ---
	tokenCache, err := tokencache.NewRedisCache(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, logger.L())
	if err != nil {
		logg.Fatalw("failed to init token cache", "error", err)
	}
	defer tokenCache.Close() //nolint:errcheck

	// --- Tenant settings provider ---
	var tenants tenant.Provider
	if cfg.DatabaseURL != "" {
		logg.Info("tenant settings from postgres: ", utils.MaskDSN(cfg.DatabaseURL))
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logg.Fatalw("failed to connect to postgres", "error", err)
		}
		defer pool.Close()
		if err := tenant.EnsureSchema(ctx, pool); err != nil {
			logg.Fatalw("failed to ensure tenant schema", "error", err)
		}
		tenants = tenant.NewPGProvider(pool, logger.L())
	} else {
		logg.Warn("DATABASE_URL not set; using empty in-memory tenant provider")
		tenants = tenant.NewMemoryProvider()
	}

	// --- Audit events (optional) ---
	var auditPub audit.Publisher = audit.NopPublisher{}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Warnw("NATS unavailable; audit events disabled", "error", err)
		} else {
			defer nc.Drain() //nolint:errcheck
			pub, err := audit.NewNATSPublisher(nc, cfg.AuditSubjectPrefix, cfg.ServiceName, logger.L())
			if err != nil {
				logg.Warnw("JetStream unavailable; audit events disabled", "error", err)
			} else {
				auditPub = pub
			}
		}
	}

	// --- Rate limiter (per tenant) ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: 10,
		Burst:             20,
	})

	// --- Analytics service client ---
	client := superset.NewClient(logger.L(), rateMgr, cfg.RetryMax, cfg.LoginTimeout, cfg.RequestTimeout)

	// --- Gateway facade ---
	ttl := tokencache.TTLPolicy{
		Access: cfg.AccessTokenTTL,
		CSRF:   cfg.CSRFTokenTTL,
		Guest:  cfg.GuestTokenTTL,
	}
	svc := gateway.NewService(logger.L(), tenants, credResolver, tokenCache, client, ttl, auditPub)

	// --- HTTP API ---
	app := fiber.New()
	h := &api.Handler{
		Logger:  logger.L(),
		Service: svc,
	}
	api.RegisterRoutes(app, h)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	metrics.StartServer(fmt.Sprintf(":%d", cfg.MetricsPort))

	logg.Infow("[analytics-gateway] running",
		"port", cfg.Port,
		"redis", cfg.RedisAddr,
		"guest_ttl", cfg.GuestTokenTTL)

	<-ctx.Done()
	stop()
	logg.Info("shutting down [analytics-gateway]...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app.ShutdownWithContext(shutdownCtx) //nolint:errcheck
}
