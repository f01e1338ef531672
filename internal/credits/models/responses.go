package models

import (
	"time"

	"github.com/google/uuid"
)

// SummaryResponse renders a Summary. Fields that do not apply to the plan are omitted.
type SummaryResponse struct {
	Plan Tier `json:"plan"`

	UsedToday      *int `json:"used_today,omitempty"`
	RemainingToday *int `json:"remaining_today,omitempty"`

	RolloverBalance       *int       `json:"rollover_balance,omitempty"`
	TopUpBalance          *int       `json:"top_up_balance,omitempty"`
	MonthlyRemaining      *int       `json:"monthly_remaining,omitempty"`
	MessagesRemaining     *int       `json:"messages_remaining,omitempty"`
	MessagesUsedThisMonth *int       `json:"messages_used_this_month,omitempty"`
	RenewalDate           *time.Time `json:"renewal_date,omitempty"`
}

// ToSummaryResponse projects s onto the wire shape for its plan.
func ToSummaryResponse(s *Summary) *SummaryResponse {
	resp := &SummaryResponse{Plan: s.Plan}
	if s.Plan == TierFree {
		resp.UsedToday = intPtr(s.UsedToday)
		resp.RemainingToday = intPtr(s.RemainingToday)
		return resp
	}
	resp.RolloverBalance = intPtr(s.RolloverBalance)
	resp.TopUpBalance = intPtr(s.TopUpBalance)
	resp.MonthlyRemaining = intPtr(s.MonthlyRemaining)
	resp.MessagesRemaining = intPtr(s.MessagesRemaining)
	resp.MessagesUsedThisMonth = intPtr(s.MessagesUsedThisMonth)
	resp.RenewalDate = s.RenewalDate
	return resp
}

func intPtr(v int) *int {
	return &v
}

// MessageAcceptedResponse is returned once a user message passed the gate.
type MessageAcceptedResponse struct {
	MessageID   uuid.UUID  `json:"message_id"`
	Tier        Tier       `json:"tier"`
	Charged     bool       `json:"charged"`
	DebitedKind CreditKind `json:"debited_kind,omitempty"`
}

// MessageDeniedResponse is the 429 body for a refused message.
type MessageDeniedResponse struct {
	Error  string       `json:"error"`
	Reason DenialReason `json:"reason"`
	Tier   Tier         `json:"tier"`
}

// BucketsResponse lists a user's raw buckets for operators.
type BucketsResponse struct {
	UserID  string         `json:"user_id"`
	Buckets []CreditBucket `json:"buckets"`
	Total   int            `json:"total"`
}

// FulfillmentResponse reports whether a webhook delivery changed balances.
// Applied is false for a duplicate delivery.
type FulfillmentResponse struct {
	Applied bool   `json:"applied"`
	UserID  string `json:"user_id"`
}

// CheckUnavailableResponse is the 503 body of an admission check that
// could not reach storage. The user is treated as not allowed.
type CheckUnavailableResponse struct {
	Allowed bool   `json:"allowed"`
	Error   string `json:"error"`
}
