package renewal

import (
	"context"
	"log/slog"
	"time"

	"companion/internal/credits/metrics"
	"companion/internal/credits/models"
	id "companion/pkg/domain"
)

const (
	defaultInterval  = 5 * time.Minute
	defaultBatchSize = 500
)

// RenewalResult contains the results of a renewal sweep.
type RenewalResult struct {
	Scanned  int           // Pro subscriptions examined
	Renewed  int           // Allowances rolled into a new period
	Skipped  int           // Already current, or renewed by another trigger
	Failed   int           // Renewals that returned an error
	Duration time.Duration // Time taken for the sweep
}

type SubscriptionLister interface {
	ListPro(ctx context.Context, after id.UserID, limit int) ([]models.Subscription, error)
}

type BucketReader interface {
	Buckets(ctx context.Context, userID id.UserID) ([]models.CreditBucket, error)
}

// Renewer applies one period boundary at most once per user.
type Renewer interface {
	RenewPeriod(ctx context.Context, userID id.UserID, periodEnd time.Time) (bool, error)
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// Worker renews monthly allowances whose period has fallen behind the
// subscription mirrored from billing. It backs up the renewal webhook:
// both paths go through the same idempotent Renewer.
type Worker struct {
	subscriptions SubscriptionLister
	buckets       BucketReader
	renewer       Renewer
	logger        *slog.Logger
	interval      time.Duration
	batchSize     int
	metrics       *metrics.Metrics
}

func New(subscriptions SubscriptionLister, buckets BucketReader, renewer Renewer, opts ...Option) *Worker {
	w := &Worker{
		subscriptions: subscriptions,
		buckets:       buckets,
		renewer:       renewer,
		logger:        slog.Default(),
		interval:      defaultInterval,
		batchSize:     defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			startTime := time.Now()
			res, err := w.RunOnce(ctx)
			duration := time.Since(startTime)

			if err != nil {
				w.logger.Error("allowance_renewal_failed",
					"error", err,
					"duration_ms", duration.Milliseconds(),
				)
				w.metrics.ObserveRenewalRun(metrics.StatusError, duration.Seconds())
				continue
			}

			res.Duration = duration
			w.logger.Info("allowance_renewal_completed",
				"scanned", res.Scanned,
				"renewed", res.Renewed,
				"skipped", res.Skipped,
				"failed", res.Failed,
				"duration_ms", duration.Milliseconds(),
			)
			w.metrics.ObserveRenewalRun(metrics.StatusSuccess, duration.Seconds())

		case <-ctx.Done():
			w.logger.Info("allowance renewal worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce sweeps every pro subscription once. A failed renewal is counted
// and the sweep continues; only a listing failure aborts it.
func (w *Worker) RunOnce(ctx context.Context) (*RenewalResult, error) {
	res := &RenewalResult{}
	after := id.UserID{}

	for {
		page, err := w.subscriptions.ListPro(ctx, after, w.batchSize)
		if err != nil {
			return nil, err
		}
		for i := range page {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			w.renewIfDue(ctx, &page[i], res)
		}
		if len(page) < w.batchSize {
			return res, nil
		}
		after = page[len(page)-1].UserID
	}
}

func (w *Worker) renewIfDue(ctx context.Context, sub *models.Subscription, res *RenewalResult) {
	res.Scanned++
	if sub.CurrentPeriodEnd.IsZero() {
		res.Skipped++
		return
	}

	buckets, err := w.buckets.Buckets(ctx, sub.UserID)
	if err != nil {
		res.Failed++
		w.logger.Warn("allowance renewal: failed to load buckets", "user_id", sub.UserID.String(), "error", err)
		return
	}
	if !Due(buckets, sub.CurrentPeriodEnd) {
		res.Skipped++
		return
	}

	applied, err := w.renewer.RenewPeriod(ctx, sub.UserID, sub.CurrentPeriodEnd)
	switch {
	case err != nil:
		res.Failed++
		w.logger.Warn("allowance renewal: renew failed", "user_id", sub.UserID.String(), "error", err)
	case applied:
		res.Renewed++
	default:
		res.Skipped++
	}
}

// Due reports whether the monthly allowance ends before periodEnd, or is
// missing entirely.
func Due(buckets []models.CreditBucket, periodEnd time.Time) bool {
	for _, b := range buckets {
		if b.Kind != models.KindMonthlyAllowance {
			continue
		}
		return b.PeriodEnd == nil || models.PeriodEnd(*b.PeriodEnd).Before(models.PeriodEnd(periodEnd))
	}
	return true
}
