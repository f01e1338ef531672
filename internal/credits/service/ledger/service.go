// Package ledger owns paid-tier credit balances.
//
// Each user holds up to three buckets (rollover, monthly_allowance, top_up).
// Debits take exactly one credit from the first non-empty bucket in
// precedence order, using a guarded store decrement so concurrent debits
// can never overdraw. Grants are additive; renewal folds the unused monthly
// allowance into rollover and installs a fresh allowance.
//
// Usage:
//
//	svc, _ := ledger.New(store, ledger.WithLogger(logger))
//	res, err := svc.Debit(ctx, userID, models.TierPro)
//	if dErrors.HasCode(err, dErrors.CodeInsufficientCredits) {
//	    // prompt top-up or upgrade
//	}
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"companion/internal/credits/config"
	"companion/internal/credits/metrics"
	"companion/internal/credits/models"
	"companion/internal/credits/observability"
	id "companion/pkg/domain"
	dErrors "companion/pkg/domain-errors"
	"companion/pkg/platform/sentinel"
)

// Store persists credit buckets. DecrementOne must be a guarded decrement
// that returns sentinel.ErrConflict when the bucket is absent or empty.
type Store interface {
	ListBuckets(ctx context.Context, userID id.UserID) ([]models.CreditBucket, error)
	DecrementOne(ctx context.Context, userID id.UserID, kind models.CreditKind) (remaining int, err error)
	AddCredits(ctx context.Context, userID id.UserID, kind models.CreditKind, amount int, periodEnd *time.Time) (*models.CreditBucket, error)
	RenewAllowance(ctx context.Context, userID id.UserID, allowance int, periodEnd time.Time) (rolledOver int, err error)
}

// Service implements Debit, Grant, and Renew over a Store.
type Service struct {
	store   Store
	config  *config.Config
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger for audit logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
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

// WithTracer sets the OpenTelemetry tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New creates a ledger service with the given store and options.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("bucket store is required")
	}
	svc := &Service{
		store:  store,
		config: config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.tracer == nil {
		svc.tracer = otel.Tracer("companion/credits/ledger")
	}
	if len(svc.config.DebitOrder) == 0 {
		return nil, fmt.Errorf("debit order must name at least one bucket kind")
	}
	return svc, nil
}

// Debit charges one credit for a pro user. Free-tier calls succeed without
// touching the ledger.
//
// A guarded decrement that loses a race returns sentinel.ErrConflict, which
// proves that bucket was just drained. Debit then reloads and reselects. It
// makes at most one attempt per bucket kind plus one, so a conflict storm
// cannot spin forever.
func (s *Service) Debit(ctx context.Context, userID id.UserID, tier models.Tier) (result *models.DebitResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Debit", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
		attribute.String("tier", tier.String()),
	))
	defer func() { endSpan(span, err) }()

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if tier != models.TierPro {
		return &models.DebitResult{Charged: false}, nil
	}

	maxAttempts := len(s.config.DebitOrder) + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		buckets, err := s.store.ListBuckets(ctx, userID)
		if err != nil {
			s.metrics.IncrementDebitFailures(metrics.ReasonStorage)
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load credit buckets")
		}

		kind, ok := SelectBucket(buckets, s.config.DebitOrder)
		if !ok {
			s.metrics.IncrementDebitFailures(metrics.ReasonInsufficient)
			observability.LogAudit(ctx, s.logger, observability.EventCreditsExhausted,
				"user_id", userID.String(),
				"attempt", attempt,
			)
			return nil, dErrors.New(dErrors.CodeInsufficientCredits, "no credits remaining")
		}

		remaining, err := s.store.DecrementOne(ctx, userID, kind)
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementDebitFailures(metrics.ReasonConflict)
			span.AddEvent("debit_conflict", trace.WithAttributes(
				attribute.String("kind", kind.String()),
				attribute.Int("attempt", attempt),
			))
			continue
		}
		if err != nil {
			s.metrics.IncrementDebitFailures(metrics.ReasonStorage)
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to debit credit bucket")
		}

		s.metrics.IncrementDebits(kind.String())
		span.SetAttributes(attribute.String("kind", kind.String()))
		observability.LogAudit(ctx, s.logger, observability.EventCreditsDebited,
			"user_id", userID.String(),
			"kind", kind.String(),
			"remaining_in_bucket", remaining,
		)
		return &models.DebitResult{Charged: true, Kind: kind, Remaining: remaining}, nil
	}

	// Each conflict means another debit drained the chosen bucket, so at most
	// len(DebitOrder) conflicts fit before the balance runs out. Getting here
	// needs a Grant refilling a bucket mid-loop; the caller may simply retry.
	return nil, dErrors.New(dErrors.CodeConflict, "credit balance changed concurrently, retry")
}

// SelectBucket returns the first kind in order whose bucket holds credits.
func SelectBucket(buckets []models.CreditBucket, order []models.CreditKind) (models.CreditKind, bool) {
	balance := models.BalanceOf(buckets)
	for _, kind := range order {
		if balance.Of(kind) > 0 {
			return kind, true
		}
	}
	return "", false
}

// Grant adds amount credits to the user's kind bucket, creating it if needed.
// Grants are not deduplicated; callers guard retries with an idempotency key.
func (s *Service) Grant(ctx context.Context, userID id.UserID, kind models.CreditKind, amount int, periodEnd *time.Time) (bucket *models.CreditBucket, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Grant", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
		attribute.String("kind", kind.String()),
		attribute.Int("amount", amount),
	))
	defer func() { endSpan(span, err) }()

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid credit kind")
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "grant amount must be positive")
	}
	if kind == models.KindTopUp {
		periodEnd = nil
	}
	if periodEnd != nil {
		end := models.PeriodEnd(*periodEnd)
		periodEnd = &end
	}

	bucket, err = s.store.AddCredits(ctx, userID, kind, amount, periodEnd)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to grant credits")
	}

	s.metrics.AddGranted(kind.String(), amount)
	observability.LogAudit(ctx, s.logger, observability.EventCreditsGranted,
		"user_id", userID.String(),
		"kind", kind.String(),
		"amount", amount,
		"balance", bucket.CreditsRemaining,
	)
	return bucket, nil
}

// Renew starts a new billing period: the unused monthly allowance moves into
// rollover and monthly_allowance is replaced with a fresh allowance ending at
// newPeriodEnd. Top-ups are untouched. Renew is not idempotent; callers must
// run it once per period per user.
func (s *Service) Renew(ctx context.Context, userID id.UserID, newPeriodEnd time.Time) (result *models.RenewResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Renew", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
		attribute.String("period_end", newPeriodEnd.UTC().Format(time.RFC3339)),
	))
	defer func() { endSpan(span, err) }()

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if newPeriodEnd.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "period end is required")
	}
	newPeriodEnd = models.PeriodEnd(newPeriodEnd)

	allowance := s.config.ProMonthlyAllowance
	rolledOver, err := s.store.RenewAllowance(ctx, userID, allowance, newPeriodEnd.UTC())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to renew allowance")
	}

	s.metrics.AddGranted(models.KindMonthlyAllowance.String(), allowance)
	span.SetAttributes(attribute.Int("rolled_over", rolledOver))
	observability.LogAudit(ctx, s.logger, observability.EventAllowanceRenewed,
		"user_id", userID.String(),
		"rolled_over", rolledOver,
		"allowance", allowance,
		"period_end", newPeriodEnd.UTC(),
	)
	return &models.RenewResult{
		RolledOver: rolledOver,
		Allowance:  allowance,
		PeriodEnd:  newPeriodEnd.UTC(),
	}, nil
}

// Buckets returns the user's raw buckets without mutating anything.
func (s *Service) Buckets(ctx context.Context, userID id.UserID) ([]models.CreditBucket, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	buckets, err := s.store.ListBuckets(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load credit buckets")
	}
	return buckets, nil
}

// Balance folds the user's buckets into per-kind totals.
func (s *Service) Balance(ctx context.Context, userID id.UserID) (models.Balance, error) {
	buckets, err := s.Buckets(ctx, userID)
	if err != nil {
		return models.Balance{}, err
	}
	return models.BalanceOf(buckets), nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
