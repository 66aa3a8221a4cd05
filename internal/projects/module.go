package projects

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "invoicing_backend/internal/http"
	"invoicing_backend/platform/config"
	"invoicing_backend/platform/validator"
)

// Module wires the project directory into the HTTP application.
type Module struct {
	handler  *Handler
	repo     *PostgresRepository
	resolver *Resolver
}

func NewModule(pool *pgxpool.Pool, validate *validator.Validator, cfg config.InvoiceConfig) *Module {
	repo := NewPostgresRepository(pool)
	resolver := NewResolver(repo)
	return &Module{
		handler:  NewHandler(repo, resolver, validate, cfg.GetAPIFuzzyThreshold()),
		repo:     repo,
		resolver: resolver,
	}
}

func (m *Module) Name() string { return "projects" }

// Resolver exposes the shared identifier resolver to the chat and intake
// pipelines.
func (m *Module) Resolver() *Resolver { return m.resolver }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/validate-code", m.handler.ValidateCode)

	ctx.Admin.GET("/projects", m.handler.ListProjects)
	ctx.Admin.POST("/projects", m.handler.CreateProject)
}
