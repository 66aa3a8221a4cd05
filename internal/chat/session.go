// Package chat drives the multi-turn invoice creation dialog. Each session
// walks a fixed cycle of states toward a confirmed, materialized invoice.
package chat

import (
	"context"
	"time"

	"invoicing_backend/internal/commands"
	"invoicing_backend/internal/projects"
)

// State names the dialog position of a session.
type State string

const (
	StateAwaitProjectCode           State = "await_project_code"
	StateConfirmClient              State = "confirm_client"
	StateCollectItems               State = "collect_items"
	StateCollectPeriod              State = "collect_period"
	StateCollectPaymentChargeChoice State = "collect_payment_charge_choice"
	StateConfirmInvoice             State = "confirm_invoice"
	StateAwaitDeliveryEmail         State = "await_delivery_email"
	StateIdle                       State = "idle"
)

// Session is the accumulated dialog state. It is JSON-serializable so it
// can live in Redis as well as in memory.
type Session struct {
	ID            string               `json:"id"`
	State         State                `json:"state"`
	Project       *projects.Candidate  `json:"project,omitempty"`
	Suggestion    *projects.Candidate  `json:"suggestion,omitempty"`
	Items         []commands.ItemInput `json:"items,omitempty"`
	Period        string               `json:"period,omitempty"`
	ChargeCents   int64                `json:"chargeCents"`
	LastInvoiceID int64                `json:"lastInvoiceId,omitempty"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// NewSession starts a fresh cycle.
func NewSession(id string) *Session {
	return &Session{ID: id, State: StateAwaitProjectCode}
}

// ResetCycle clears everything collected for the current invoice but keeps
// the last materialized invoice id so "never got the email" still works.
func (s *Session) ResetCycle() {
	s.State = StateAwaitProjectCode
	s.Project = nil
	s.Suggestion = nil
	s.Items = nil
	s.Period = ""
	s.ChargeCents = 0
}

// Store is the session lifecycle contract. Get returns nil when no session
// exists for the id.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
}
