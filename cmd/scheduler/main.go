// The scheduler binary runs everything time- and queue-driven: the
// recurring and reminder tick loops, the mailbox poller, and the asynq
// worker that feeds inbound mail through the intake pipeline.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"invoicing_backend/internal/audit"
	"invoicing_backend/internal/commands"
	"invoicing_backend/internal/email"
	"invoicing_backend/internal/events"
	"invoicing_backend/internal/intake"
	"invoicing_backend/internal/invoices"
	"invoicing_backend/internal/mailbox"
	"invoicing_backend/internal/pdf"
	"invoicing_backend/internal/projects"
	"invoicing_backend/internal/scheduler"
	"invoicing_backend/internal/storage"
	"invoicing_backend/platform/config"
	"invoicing_backend/platform/db"
	"invoicing_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	audit.NewTrail(log).RegisterHandlers(eventBus)

	sender := newSender(cfg, log)
	store := newDocumentStore(ctx, cfg, log)
	renderer := newRenderer(cfg, log)

	invoicesModule := invoices.NewModule(pool, renderer, store, sender, eventBus, log, cfg)
	invoiceSvc := invoicesModule.Service()
	repo := invoicesModule.Repository()

	resolver := projects.NewResolver(projects.NewPostgresRepository(pool))
	extractor := newExtractor(ctx, cfg, log)
	intakeSvc := intake.New(invoiceSvc, extractor, resolver, cfg.GetAPIFuzzyThreshold(), sender, log)

	recurring := scheduler.NewRecurringScheduler(repo, invoiceSvc, eventBus,
		cfg.GetRecurringTickInterval(), log)
	reminders := scheduler.NewReminderScheduler(repo, sender, eventBus,
		cfg.GetReminderTickInterval(), cfg.GetReminderThresholdDays(), log)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("loop started", "loop", name)
			fn(ctx)
		}()
	}

	run("recurring", recurring.Run)
	run("reminders", reminders.Run)

	if cfg.IsMailboxEnabled() && cfg.GetRedisURL() != "" {
		imapClient := mailbox.NewClient(cfg)

		queueClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize task queue client", "error", err)
			panic("failed to initialize task queue client: " + err.Error())
		}
		defer queueClient.Close()

		worker, err := scheduler.NewWorker(cfg, intakeSvc, imapClient, log)
		if err != nil {
			log.Error("failed to initialize task worker", "error", err)
			panic("failed to initialize task worker: " + err.Error())
		}

		poller := mailbox.NewPoller(imapClient, queueClient, cfg, log)
		run("mailbox", poller.Run)
		run("worker", worker.Run)
	} else {
		log.Warn("mailbox polling disabled; IMAP_HOST and REDIS_URL are both required")
	}

	<-ctx.Done()
	log.Info("shutdown signal received, waiting for loops to stop")
	wg.Wait()
}

func newSender(cfg *config.Config, log *logger.Logger) email.Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("email delivery disabled; outbound mail is dropped")
		return email.NoopSender{}
	}
	return email.NewSMTPSender(cfg)
}

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
	return minioStore
}

func newRenderer(cfg *config.Config, log *logger.Logger) pdf.Renderer {
	profile, err := config.LoadCompanyProfile(cfg.GetCompanyProfilePath())
	if err != nil {
		log.Warn("company profile not loaded; documents render without bank details", "error", err)
	}

	var gotenberg *pdf.GotenbergClient
	if cfg.IsGotenbergEnabled() {
		gotenberg = pdf.NewGotenbergClient(cfg.GetGotenbergURL(), cfg.GetGotenbergUsername(), cfg.GetGotenbergPassword())
	}
	return pdf.NewGenerator(gotenberg, profile)
}

// newExtractor wires the AI fallback when an API key is configured.
func newExtractor(ctx context.Context, cfg *config.Config, log *logger.Logger) intake.Extractor {
	if !cfg.IsAIExtractionEnabled() {
		log.Warn("AI extraction disabled; free-form emails are rejected")
		return nil
	}
	extractor, err := commands.NewExtractor(ctx, cfg.GetGeminiAPIKey(), cfg.GetGeminiModel())
	if err != nil {
		log.Error("failed to initialize AI extractor", "error", err)
		return nil
	}
	return extractor
}
