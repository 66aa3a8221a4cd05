package chat

import (
	apphttp "invoicing_backend/internal/http"
	"invoicing_backend/platform/config"
	"invoicing_backend/platform/logger"
)

type Module struct {
	engine  *Engine
	handler *Handler
}

func NewModule(store Store, svc InvoiceService, resolver ProjectResolver,
	log *logger.Logger, cfg config.InvoiceConfig) *Module {
	engine := NewEngine(store, svc, resolver, cfg.GetChatFuzzyThreshold(), log)
	return &Module{
		engine:  engine,
		handler: NewHandler(engine),
	}
}

func (m *Module) Name() string { return "chat" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/chat", ctx.ChatRateLimiter.RateLimit(), m.handler.HandleTurn)
}
