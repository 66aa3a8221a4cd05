package audit

import (
	"github.com/gin-gonic/gin"

	"invoicing_backend/internal/events"
	apphttp "invoicing_backend/internal/http"
	"invoicing_backend/platform/httpkit"
	"invoicing_backend/platform/logger"
)

// Module subscribes the audit trail to the event bus and exposes the
// recent history on the admin API.
type Module struct {
	trail *Trail
}

func NewModule(bus events.Bus, log *logger.Logger) *Module {
	trail := NewTrail(log)
	trail.RegisterHandlers(bus)
	return &Module{trail: trail}
}

func (m *Module) Name() string { return "audit" }

func (m *Module) Trail() *Trail { return m.trail }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/audit", m.listRecent)
}

func (m *Module) listRecent(c *gin.Context) {
	httpkit.OK(c, gin.H{"entries": m.trail.Recent(100)})
}
