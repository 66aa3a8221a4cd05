package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoicing_backend/platform/httpkit"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type turnRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message" binding:"required"`
}

type turnResponse struct {
	SessionID   string `json:"sessionId"`
	ReplyText   string `json:"replyText"`
	InvoiceID   int64  `json:"invoiceId,omitempty"`
	DocumentURL string `json:"documentUrl,omitempty"`
}

// HandleTurn feeds one chat message into the session's dialog. A missing
// session id starts a fresh session; the assigned id is echoed back so the
// client can continue the conversation.
func (h *Handler) HandleTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "message is required", nil)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply, err := h.engine.HandleTurn(c.Request.Context(), req.SessionID, req.Message)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, turnResponse{
		SessionID:   req.SessionID,
		ReplyText:   reply.Text,
		InvoiceID:   reply.InvoiceID,
		DocumentURL: reply.DocumentURL,
	})
}
