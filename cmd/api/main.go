package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoicing_backend/internal/audit"
	"invoicing_backend/internal/chat"
	"invoicing_backend/internal/email"
	"invoicing_backend/internal/events"
	apphttp "invoicing_backend/internal/http"
	"invoicing_backend/internal/http/router"
	"invoicing_backend/internal/invoices"
	"invoicing_backend/internal/pdf"
	"invoicing_backend/internal/projects"
	"invoicing_backend/internal/storage"
	"invoicing_backend/platform/config"
	"invoicing_backend/platform/db"
	"invoicing_backend/platform/logger"
	"invoicing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	sender := newSender(cfg, log)
	store := newDocumentStore(ctx, cfg, log)
	renderer := newRenderer(cfg, log)
	sessionStore := newSessionStore(cfg, log)

	projectsModule := projects.NewModule(pool, val, cfg)
	invoicesModule := invoices.NewModule(pool, renderer, store, sender, eventBus, log, cfg)
	chatModule := chat.NewModule(sessionStore, invoicesModule.Service(), projectsModule.Resolver(), log, cfg)
	auditModule := audit.NewModule(eventBus, log)

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			projectsModule,
			invoicesModule,
			chatModule,
			auditModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// newSender wires SMTP delivery, or a no-op sender when email is disabled.
func newSender(cfg *config.Config, log *logger.Logger) email.Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("email delivery disabled; outbound mail is dropped")
		return email.NoopSender{}
	}
	return email.NewSMTPSender(cfg)
}

// newDocumentStore wires MinIO, or an in-memory store when not configured.
func newDocumentStore(ctx context.Context, cfg *config.Config, log *logger.Logger) storage.DocumentStore {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MinIO not configured; invoice documents are kept in memory")
		return storage.NewMemoryStore()
	}

	minioStore, err := storage.NewMinIOStore(cfg)
	if err != nil {
		log.Error("failed to initialize document storage", "error", err)
		panic("failed to initialize document storage: " + err.Error())
	}
	if err := minioStore.EnsureBucketExists(ctx); err != nil {
		log.Error("failed to ensure document bucket exists", "error", err)
		panic("failed to ensure document bucket exists: " + err.Error())
	}
	log.Info("document storage initialized", "bucket", cfg.GetMinioBucketInvoiceDocuments())
	return minioStore
}

// newRenderer wires Gotenberg-backed rendering when configured; the
// generator falls back to direct PDF drawing otherwise.
func newRenderer(cfg *config.Config, log *logger.Logger) pdf.Renderer {
	profile, err := config.LoadCompanyProfile(cfg.GetCompanyProfilePath())
	if err != nil {
		log.Warn("company profile not loaded; documents render without bank details", "error", err)
	}

	var gotenberg *pdf.GotenbergClient
	if cfg.IsGotenbergEnabled() {
		gotenberg = pdf.NewGotenbergClient(cfg.GetGotenbergURL(), cfg.GetGotenbergUsername(), cfg.GetGotenbergPassword())
		log.Info("gotenberg PDF generator initialized", "url", cfg.GetGotenbergURL())
	}
	return pdf.NewGenerator(gotenberg, profile)
}

// newSessionStore wires the Redis session store when configured, falling
// back to the in-process map.
func newSessionStore(cfg *config.Config, log *logger.Logger) chat.Store {
	if cfg.GetSessionRedisURL() == "" {
		log.Warn("SESSION_REDIS_URL not configured; chat sessions are in-memory")
		return chat.NewMemoryStore(cfg.GetSessionTTL())
	}

	redisStore, err := chat.NewRedisStore(cfg)
	if err != nil {
		log.Error("failed to initialize session store", "error", err)
		panic("failed to initialize session store: " + err.Error())
	}
	return redisStore
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
