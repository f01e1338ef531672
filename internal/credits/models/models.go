package models

import (
	"time"

	"github.com/google/uuid"

	id "companion/pkg/domain"
	dErrors "companion/pkg/domain-errors"
)

// CreditKind names one of a user's independently tracked credit buckets.
type CreditKind string

const (
	// KindRollover holds unused monthly allowance carried into later periods.
	KindRollover CreditKind = "rollover"
	// KindMonthlyAllowance is replaced with a fresh allowance at each renewal.
	KindMonthlyAllowance CreditKind = "monthly_allowance"
	// KindTopUp holds purchased credits. They never expire or roll over.
	KindTopUp CreditKind = "top_up"
)

// AllKinds lists every bucket kind in default debit precedence.
var AllKinds = []CreditKind{KindRollover, KindMonthlyAllowance, KindTopUp}

// ParseCreditKind creates a CreditKind from a string, validating it.
func ParseCreditKind(s string) (CreditKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credit kind cannot be empty")
	}
	k := CreditKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid credit kind: must be 'rollover', 'monthly_allowance', or 'top_up'")
	}
	return k, nil
}

func (k CreditKind) IsValid() bool {
	switch k {
	case KindRollover, KindMonthlyAllowance, KindTopUp:
		return true
	}
	return false
}

func (k CreditKind) String() string {
	return string(k)
}

// Tier is the user's plan as reported by the billing collaborator.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// ParseTier creates a Tier from a string, validating it.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid tier: must be 'free' or 'pro'")
	}
	return t, nil
}

func (t Tier) IsValid() bool {
	return t == TierFree || t == TierPro
}

func (t Tier) String() string {
	return string(t)
}

// DenialReason explains why admission was refused.
type DenialReason string

const (
	ReasonDailyLimit   DenialReason = "daily_limit"
	ReasonMonthlyLimit DenialReason = "monthly_limit"
)

// CreditBucket is one (user, kind) balance. PeriodEnd is nil for top-ups.
type CreditBucket struct {
	UserID           id.UserID  `json:"user_id"`
	Kind             CreditKind `json:"kind"`
	CreditsRemaining int        `json:"credits_remaining"`
	PeriodEnd        *time.Time `json:"period_end,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewCreditBucket validates and constructs a bucket.
func NewCreditBucket(userID id.UserID, kind CreditKind, credits int, periodEnd *time.Time, now time.Time) (*CreditBucket, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user ID required")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid credit kind")
	}
	if credits < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credits remaining cannot be negative")
	}
	if kind == KindTopUp {
		periodEnd = nil
	}
	return &CreditBucket{
		UserID:           userID,
		Kind:             kind,
		CreditsRemaining: credits,
		PeriodEnd:        periodEnd,
		UpdatedAt:        now,
	}, nil
}

// Balance is the per-kind projection of a user's buckets.
type Balance struct {
	Rollover         int
	MonthlyAllowance int
	TopUp            int
	// RenewalDate is the monthly allowance's period end, if one was ever granted.
	RenewalDate *time.Time
}

// PeriodEnd puts a billing-period boundary in the form every store keeps
// exactly: UTC, whole seconds.
func PeriodEnd(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// BalanceOf folds buckets into a Balance. Unknown kinds are ignored.
func BalanceOf(buckets []CreditBucket) Balance {
	var b Balance
	for _, bucket := range buckets {
		switch bucket.Kind {
		case KindRollover:
			b.Rollover += bucket.CreditsRemaining
		case KindMonthlyAllowance:
			b.MonthlyAllowance += bucket.CreditsRemaining
			b.RenewalDate = bucket.PeriodEnd
		case KindTopUp:
			b.TopUp += bucket.CreditsRemaining
		}
	}
	return b
}

// Total is the number of messages the balance still covers.
func (b Balance) Total() int {
	return b.Rollover + b.MonthlyAllowance + b.TopUp
}

// Of returns the balance held in kind.
func (b Balance) Of(kind CreditKind) int {
	switch kind {
	case KindRollover:
		return b.Rollover
	case KindMonthlyAllowance:
		return b.MonthlyAllowance
	case KindTopUp:
		return b.TopUp
	}
	return 0
}

// AllowResult is the admission decision for one outbound message.
type AllowResult struct {
	Allowed bool         `json:"allowed"`
	Reason  DenialReason `json:"reason,omitempty"`
	Tier    Tier         `json:"tier"`
}

// DebitResult describes a completed debit. Charged is false for free-tier
// users, whose consumption is implied by the stored message itself.
type DebitResult struct {
	Charged   bool
	Kind      CreditKind
	Remaining int
}

// RenewResult reports what a renewal moved.
type RenewResult struct {
	RolledOver int
	Allowance  int
	PeriodEnd  time.Time
}

// Summary is the read-only display projection for a user.
type Summary struct {
	Plan Tier

	// Free tier.
	UsedToday      int
	RemainingToday int

	// Pro tier.
	RolloverBalance       int
	TopUpBalance          int
	MonthlyRemaining      int
	MessagesRemaining     int
	MessagesUsedThisMonth int
	RenewalDate           *time.Time
}

// MessageRole distinguishes user-authored messages from assistant replies.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

func (r MessageRole) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ChatMessage is the slice of chat history the free-tier counter reads.
type ChatMessage struct {
	ID        uuid.UUID
	UserID    id.UserID
	Role      MessageRole
	CreatedAt time.Time
}

// NewChatMessage validates and constructs a ChatMessage with a fresh ID.
func NewChatMessage(userID id.UserID, role MessageRole, now time.Time) (*ChatMessage, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user ID required")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid message role")
	}
	return &ChatMessage{
		ID:        uuid.New(),
		UserID:    userID,
		Role:      role,
		CreatedAt: now.UTC(),
	}, nil
}

// Subscription is the billing collaborator's view of a user's plan.
type Subscription struct {
	UserID           id.UserID
	Tier             Tier
	CurrentPeriodEnd time.Time
	UpdatedAt        time.Time
}

// FreeSubscription is the implicit subscription of users billing has never seen.
func FreeSubscription(userID id.UserID) *Subscription {
	return &Subscription{UserID: userID, Tier: TierFree}
}

// StartOfUTCDay truncates t to midnight UTC of its calendar day.
func StartOfUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
