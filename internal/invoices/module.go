// Package invoices wires the invoice bounded context: repository, service,
// and the admin read API.
package invoices

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"invoicing_backend/internal/email"
	"invoicing_backend/internal/events"
	apphttp "invoicing_backend/internal/http"
	"invoicing_backend/internal/invoices/handler"
	"invoicing_backend/internal/invoices/repository"
	"invoicing_backend/internal/invoices/service"
	"invoicing_backend/internal/pdf"
	"invoicing_backend/internal/storage"
	"invoicing_backend/platform/config"
	"invoicing_backend/platform/logger"
)

type Module struct {
	svc     *service.Service
	repo    repository.Repository
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, renderer pdf.Renderer, store storage.DocumentStore,
	sender email.Sender, bus events.Bus, log *logger.Logger, cfg config.InvoiceConfig) *Module {
	repo := repository.NewPostgresRepository(pool, log, cfg.GetInvoiceNumberPrefix())
	svc := service.New(repo, renderer, store, sender, bus, log, cfg)
	return &Module{
		svc:     svc,
		repo:    repo,
		handler: handler.New(svc),
	}
}

func (m *Module) Name() string { return "invoices" }

// Service exposes the invoice operations to the chat, intake, and
// scheduler pipelines.
func (m *Module) Service() *service.Service { return m.svc }

// Repository exposes persistence to the schedulers.
func (m *Module) Repository() repository.Repository { return m.repo }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/invoices", m.handler.ListInvoices)
	ctx.Admin.GET("/invoices/:id", m.handler.GetInvoice)
	ctx.Admin.POST("/invoices/:id/resend", m.handler.ResendInvoice)
}
