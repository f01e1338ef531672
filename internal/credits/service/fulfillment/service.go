// Package fulfillment applies billing events to the ledger exactly once.
//
// The ledger itself never deduplicates: Grant is additive and Renew would
// roll over an already fresh allowance if run twice. Every billing trigger
// therefore claims an idempotency key in the same unit of work as the ledger
// mutation it guards. A redelivered event finds its key taken and is
// reported as not applied.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"companion/internal/credits/config"
	"companion/internal/credits/metrics"
	"companion/internal/credits/models"
	"companion/internal/credits/observability"
	id "companion/pkg/domain"
	dErrors "companion/pkg/domain-errors"
	"companion/pkg/platform/sentinel"
	"companion/pkg/requestcontext"
)

// Ledger is the subset of the ledger service fulfillment drives.
type Ledger interface {
	Grant(ctx context.Context, userID id.UserID, kind models.CreditKind, amount int, periodEnd *time.Time) (*models.CreditBucket, error)
	Renew(ctx context.Context, userID id.UserID, newPeriodEnd time.Time) (*models.RenewResult, error)
}

// KeyStore claims idempotency keys. Claim returns sentinel.ErrAlreadyUsed
// for a key that was claimed before.
type KeyStore interface {
	Claim(ctx context.Context, key string) error
}

// SubscriptionWriter mirrors billing's subscription state.
type SubscriptionWriter interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
}

// errDuplicate aborts the unit of work when a key was already claimed.
var errDuplicate = errors.New("billing event already applied")

// Service applies top-ups, activations, and renewals.
type Service struct {
	ledger        Ledger
	keys          KeyStore
	subscriptions SubscriptionWriter
	tx            StoreTx
	config        *config.Config
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger for audit logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTx sets the unit of work. Defaults to an in-memory lock.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithConfig overrides the plan constants.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a fulfillment service.
func New(ledger Ledger, keys KeyStore, subscriptions SubscriptionWriter, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if keys == nil {
		return nil, fmt.Errorf("idempotency key store is required")
	}
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription store is required")
	}

	svc := &Service{
		ledger:        ledger,
		keys:          keys,
		subscriptions: subscriptions,
		config:        config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.tx == nil {
		svc.tx = newInMemoryStoreTx()
	}
	return svc, nil
}

// TopUpKey is the idempotency key for a confirmed purchase.
func TopUpKey(purchaseID id.PurchaseID) string {
	return "top_up:" + purchaseID.String()
}

// RenewalKey is the idempotency key for one user's period boundary.
func RenewalKey(userID id.UserID, periodEnd time.Time) string {
	return fmt.Sprintf("renewal:%s:%d", userID, periodEnd.UTC().Unix())
}

// ActivationKey is the idempotency key for the first allowance of a period.
func ActivationKey(userID id.UserID, periodEnd time.Time) string {
	return fmt.Sprintf("activation:%s:%d", userID, periodEnd.UTC().Unix())
}

// ApplyTopUp grants amount top-up credits for purchaseID. It returns false
// without granting when the purchase was already applied.
func (s *Service) ApplyTopUp(ctx context.Context, purchaseID id.PurchaseID, userID id.UserID, amount int) (bool, error) {
	if purchaseID.IsNil() {
		return false, dErrors.New(dErrors.CodeBadRequest, "purchase_id is required")
	}
	if userID.IsNil() {
		return false, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if amount <= 0 || amount > models.MaxGrantAmount {
		return false, dErrors.New(dErrors.CodeBadRequest, "amount out of range")
	}

	key := TopUpKey(purchaseID)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.claim(txCtx, key); err != nil {
			return err
		}
		_, err := s.ledger.Grant(txCtx, userID, models.KindTopUp, amount, nil)
		return err
	})
	if errors.Is(err, errDuplicate) {
		observability.LogAudit(ctx, s.logger, observability.EventTopUpDuplicate,
			"user_id", userID.String(),
			"purchase_id", purchaseID.String(),
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RenewPeriod rolls the user's allowance into the period ending at
// periodEnd and records it on the subscription. A second call for the same
// boundary returns false and changes nothing.
func (s *Service) RenewPeriod(ctx context.Context, userID id.UserID, periodEnd time.Time) (bool, error) {
	if userID.IsNil() {
		return false, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if periodEnd.IsZero() {
		return false, dErrors.New(dErrors.CodeBadRequest, "period_end is required")
	}
	periodEnd = models.PeriodEnd(periodEnd)

	key := RenewalKey(userID, periodEnd)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.claim(txCtx, key); err != nil {
			return err
		}
		if _, err := s.ledger.Renew(txCtx, userID, periodEnd); err != nil {
			return err
		}
		return s.upsertSubscription(txCtx, userID, models.TierPro, periodEnd)
	})
	switch {
	case errors.Is(err, errDuplicate):
		s.metrics.IncrementRenewals(metrics.StatusDuplicate)
		observability.LogAudit(ctx, s.logger, observability.EventRenewalSkippedDuplicate,
			"user_id", userID.String(),
			"period_end", periodEnd,
		)
		return false, nil
	case err != nil:
		s.metrics.IncrementRenewals(metrics.StatusFailed)
		return false, err
	}
	s.metrics.IncrementRenewals(metrics.StatusRenewed)
	return true, nil
}

// ActivatePro upgrades the user and grants the first monthly allowance for
// the period ending at periodEnd. The grant is additive, so a leftover
// allowance from an earlier subscription is kept.
func (s *Service) ActivatePro(ctx context.Context, userID id.UserID, periodEnd time.Time) (bool, error) {
	if userID.IsNil() {
		return false, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if periodEnd.IsZero() {
		return false, dErrors.New(dErrors.CodeBadRequest, "period_end is required")
	}
	periodEnd = models.PeriodEnd(periodEnd)
	allowance := s.config.ProMonthlyAllowance

	key := ActivationKey(userID, periodEnd)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.claim(txCtx, key); err != nil {
			return err
		}
		if err := s.upsertSubscription(txCtx, userID, models.TierPro, periodEnd); err != nil {
			return err
		}
		_, err := s.ledger.Grant(txCtx, userID, models.KindMonthlyAllowance, allowance, &periodEnd)
		return err
	})
	if errors.Is(err, errDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	observability.LogAudit(ctx, s.logger, observability.EventProActivated,
		"user_id", userID.String(),
		"allowance", allowance,
		"period_end", periodEnd,
	)
	return true, nil
}

// Deactivate moves the user to the free tier. Bucket balances are kept so
// a later re-upgrade finds them intact.
func (s *Service) Deactivate(ctx context.Context, userID id.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if err := s.upsertSubscription(ctx, userID, models.TierFree, time.Time{}); err != nil {
		return err
	}
	observability.LogAudit(ctx, s.logger, observability.EventProDeactivated,
		"user_id", userID.String(),
	)
	return nil
}

func (s *Service) claim(ctx context.Context, key string) error {
	err := s.keys.Claim(ctx, key)
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return errDuplicate
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to claim idempotency key")
	}
	return nil
}

func (s *Service) upsertSubscription(ctx context.Context, userID id.UserID, tier models.Tier, periodEnd time.Time) error {
	err := s.subscriptions.Upsert(ctx, &models.Subscription{
		UserID:           userID,
		Tier:             tier,
		CurrentPeriodEnd: periodEnd,
		UpdatedAt:        requestcontext.Now(ctx).UTC(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update subscription")
	}
	return nil
}
