// Package handler exposes the admin invoice read and resend API.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"invoicing_backend/internal/invoices/service"
	"invoicing_backend/internal/invoices/transport"
	"invoicing_backend/platform/httpkit"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListInvoices(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	invoices, total, err := h.svc.List(c.Request.Context(), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ListInvoicesResponse{Total: total, Invoices: []transport.InvoiceResponse{}}
	for _, inv := range invoices {
		resp.Invoices = append(resp.Invoices, transport.FromDomain(inv, ""))
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetInvoice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid invoice id", nil)
		return
	}

	inv, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	// The download link is best effort; the invoice body is still useful
	// when storage is unavailable.
	documentURL, _ := h.svc.DocumentURL(c.Request.Context(), inv)
	httpkit.OK(c, transport.FromDomain(inv, documentURL))
}

type resendRequest struct {
	Email string `json:"email"`
}

func (h *Handler) ResendInvoice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid invoice id", nil)
		return
	}

	var req resendRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.svc.Resend(c.Request.Context(), id, req.Email); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "sent"})
}
