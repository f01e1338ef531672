package models

import (
	"strings"
	"time"

	id "companion/pkg/domain"
	dErrors "companion/pkg/domain-errors"
)

// MaxGrantAmount caps a single grant or purchase so a malformed payload
// cannot mint an unbounded balance.
const MaxGrantAmount = 100_000

// GrantRequest is the admin payload for POST /admin/credits/{user_id}/grant.
type GrantRequest struct {
	Kind      string     `json:"kind"`
	Amount    int        `json:"amount"`
	PeriodEnd *time.Time `json:"period_end,omitempty"`
}

func (r *GrantRequest) Normalize() {
	if r == nil {
		return
	}
	r.Kind = strings.TrimSpace(strings.ToLower(r.Kind))
	if r.PeriodEnd != nil {
		t := PeriodEnd(*r.PeriodEnd)
		r.PeriodEnd = &t
	}
}

// Follows validation order: Required -> Syntax -> Semantic.
func (r *GrantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Kind == "" {
		return dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	kind := CreditKind(r.Kind)
	if !kind.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "kind must be 'rollover', 'monthly_allowance', or 'top_up'")
	}
	if r.Amount <= 0 || r.Amount > MaxGrantAmount {
		return dErrors.New(dErrors.CodeValidation, "amount must be between 1 and 100000")
	}
	if kind == KindMonthlyAllowance && r.PeriodEnd == nil {
		return dErrors.New(dErrors.CodeValidation, "period_end is required for monthly_allowance")
	}
	if kind == KindTopUp && r.PeriodEnd != nil {
		return dErrors.New(dErrors.CodeValidation, "top_up credits do not expire")
	}
	return nil
}

// TopUpWebhookRequest is a confirmed purchase delivered by billing.
type TopUpWebhookRequest struct {
	PurchaseID string `json:"purchase_id"`
	UserID     string `json:"user_id"`
	Amount     int    `json:"amount"`
}

func (r *TopUpWebhookRequest) Normalize() {
	if r == nil {
		return
	}
	r.PurchaseID = strings.TrimSpace(r.PurchaseID)
	r.UserID = strings.TrimSpace(r.UserID)
}

func (r *TopUpWebhookRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if _, err := id.ParsePurchaseID(r.PurchaseID); err != nil {
		return dErrors.New(dErrors.CodeValidation, "purchase_id is required and must be 255 characters or less")
	}
	if _, err := id.ParseUserID(r.UserID); err != nil {
		return dErrors.New(dErrors.CodeValidation, "user_id must be a UUID")
	}
	if r.Amount <= 0 || r.Amount > MaxGrantAmount {
		return dErrors.New(dErrors.CodeValidation, "amount must be between 1 and 100000")
	}
	return nil
}

// PeriodWebhookRequest carries a billing-period boundary for renewal and
// activation deliveries.
type PeriodWebhookRequest struct {
	UserID    string    `json:"user_id"`
	PeriodEnd time.Time `json:"period_end"`
}

func (r *PeriodWebhookRequest) Normalize() {
	if r == nil {
		return
	}
	r.UserID = strings.TrimSpace(r.UserID)
	r.PeriodEnd = PeriodEnd(r.PeriodEnd)
}

func (r *PeriodWebhookRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if _, err := id.ParseUserID(r.UserID); err != nil {
		return dErrors.New(dErrors.CodeValidation, "user_id must be a UUID")
	}
	if r.PeriodEnd.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "period_end is required")
	}
	return nil
}

// CancelWebhookRequest reports that a pro subscription ended.
type CancelWebhookRequest struct {
	UserID string `json:"user_id"`
}

func (r *CancelWebhookRequest) Normalize() {
	if r == nil {
		return
	}
	r.UserID = strings.TrimSpace(r.UserID)
}

func (r *CancelWebhookRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if _, err := id.ParseUserID(r.UserID); err != nil {
		return dErrors.New(dErrors.CodeValidation, "user_id must be a UUID")
	}
	return nil
}
