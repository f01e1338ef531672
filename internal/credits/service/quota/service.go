// Package quota decides whether a user may send the next chat message.
//
// Free users get a fixed number of messages per UTC calendar day, counted
// from stored message history. Pro users are admitted while any credit
// bucket holds a positive balance. Allow never mutates state; on any storage
// failure it returns a denied result together with the error so callers
// fail closed.
//
// Usage:
//
//	svc, _ := quota.New(messages, ledgerSvc, subscriptions)
//	res, err := svc.Allow(ctx, userID, models.TierFree)
//	if err != nil || !res.Allowed {
//	    // block the send, prompt upgrade or top-up
//	}
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"companion/internal/credits/config"
	"companion/internal/credits/metrics"
	"companion/internal/credits/models"
	id "companion/pkg/domain"
	dErrors "companion/pkg/domain-errors"
	"companion/pkg/platform/sentinel"
	"companion/pkg/requestcontext"
)

// MessageCounter counts user-authored messages created in [from, to).
type MessageCounter interface {
	CountUserMessages(ctx context.Context, userID id.UserID, from, to time.Time) (int, error)
}

// BalanceReader loads a user's folded credit balance.
type BalanceReader interface {
	Balance(ctx context.Context, userID id.UserID) (models.Balance, error)
}

// SubscriptionReader resolves the billing collaborator's view of a user.
type SubscriptionReader interface {
	FindByUserID(ctx context.Context, userID id.UserID) (*models.Subscription, error)
}

// Service evaluates admission and builds display summaries.
type Service struct {
	messages      MessageCounter
	balances      BalanceReader
	subscriptions SubscriptionReader
	config        *config.Config
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
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

// New creates a quota service.
func New(messages MessageCounter, balances BalanceReader, subscriptions SubscriptionReader, opts ...Option) (*Service, error) {
	if messages == nil {
		return nil, fmt.Errorf("message counter is required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance reader is required")
	}
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription reader is required")
	}

	svc := &Service{
		messages:      messages,
		balances:      balances,
		subscriptions: subscriptions,
		config:        config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Subscription returns the user's current plan. Users billing has never
// seen are on the free tier.
func (s *Service) Subscription(ctx context.Context, userID id.UserID) (*models.Subscription, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	sub, err := s.subscriptions.FindByUserID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.FreeSubscription(userID), nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load subscription")
	}
	return sub, nil
}

// Allow reports whether userID may send one more message on tier.
// The returned result is a denial whenever err is non-nil.
func (s *Service) Allow(ctx context.Context, userID id.UserID, tier models.Tier) (models.AllowResult, error) {
	denied := models.AllowResult{Allowed: false, Tier: tier}
	if userID.IsNil() {
		return denied, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}

	var (
		result models.AllowResult
		err    error
	)
	switch tier {
	case models.TierFree:
		result, err = s.allowFree(ctx, userID)
	case models.TierPro:
		result, err = s.allowPro(ctx, userID)
	default:
		return denied, dErrors.New(dErrors.CodeBadRequest, "unknown tier")
	}
	if err != nil {
		s.metrics.ObserveAdmission(tier.String(), metrics.OutcomeError)
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "admission check failed, denying",
				"user_id", userID.String(),
				"tier", tier.String(),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return denied, err
	}

	if result.Allowed {
		s.metrics.ObserveAdmission(tier.String(), metrics.OutcomeAllowed)
	} else {
		s.metrics.ObserveAdmission(tier.String(), metrics.OutcomeDenied)
		if s.logger != nil {
			s.logger.InfoContext(ctx, "message denied",
				"user_id", userID.String(),
				"tier", tier.String(),
				"reason", string(result.Reason),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return result, nil
}

func (s *Service) allowFree(ctx context.Context, userID id.UserID) (models.AllowResult, error) {
	used, err := s.usedToday(ctx, userID)
	if err != nil {
		return models.AllowResult{}, err
	}
	if used >= s.config.FreeDailyLimit {
		return models.AllowResult{Allowed: false, Reason: models.ReasonDailyLimit, Tier: models.TierFree}, nil
	}
	return models.AllowResult{Allowed: true, Tier: models.TierFree}, nil
}

func (s *Service) allowPro(ctx context.Context, userID id.UserID) (models.AllowResult, error) {
	balance, err := s.balance(ctx, userID)
	if err != nil {
		return models.AllowResult{}, err
	}
	if balance.Total() <= 0 {
		return models.AllowResult{Allowed: false, Reason: models.ReasonMonthlyLimit, Tier: models.TierPro}, nil
	}
	return models.AllowResult{Allowed: true, Tier: models.TierPro}, nil
}

// Summarize builds the read-only display projection for userID on tier.
func (s *Service) Summarize(ctx context.Context, userID id.UserID, tier models.Tier) (*models.Summary, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}

	switch tier {
	case models.TierFree:
		used, err := s.usedToday(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &models.Summary{
			Plan:           models.TierFree,
			UsedToday:      used,
			RemainingToday: max(0, s.config.FreeDailyLimit-used),
		}, nil
	case models.TierPro:
		balance, err := s.balance(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &models.Summary{
			Plan:                  models.TierPro,
			RolloverBalance:       balance.Rollover,
			TopUpBalance:          balance.TopUp,
			MonthlyRemaining:      balance.MonthlyAllowance,
			MessagesRemaining:     balance.Total(),
			MessagesUsedThisMonth: max(0, s.config.ProMonthlyAllowance-balance.MonthlyAllowance),
			RenewalDate:           balance.RenewalDate,
		}, nil
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown tier")
	}
}

func (s *Service) usedToday(ctx context.Context, userID id.UserID) (int, error) {
	from := models.StartOfUTCDay(requestcontext.Now(ctx))
	used, err := s.messages.CountUserMessages(ctx, userID, from, from.Add(24*time.Hour))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to count messages")
	}
	return used, nil
}

func (s *Service) balance(ctx context.Context, userID id.UserID) (models.Balance, error) {
	balance, err := s.balances.Balance(ctx, userID)
	if err != nil {
		return models.Balance{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load credit balance")
	}
	return balance, nil
}
