package ledger

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"

	"companion/internal/credits/metrics"
	"companion/internal/credits/models"
	"companion/internal/credits/store/bucket"
	id "companion/pkg/domain"
	dErrors "companion/pkg/domain-errors"
	"companion/pkg/platform/sentinel"
	"companion/pkg/testutil"
)

type LedgerServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *bucket.InMemoryBucketStore
	metrics   *metrics.Metrics
	service   *Service
	userID    id.UserID
	periodEnd time.Time
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = bucket.NewInMemoryBucketStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.userID = id.UserID(uuid.New())
	s.periodEnd = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	svc, err := New(s.store,
		WithMetrics(s.metrics),
		WithTracer(noop.NewTracerProvider().Tracer("test")),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *LedgerServiceSuite) seed(rollover, monthly, topUp int) {
	if rollover > 0 {
		_, err := s.service.Grant(s.ctx, s.userID, models.KindRollover, rollover, nil)
		s.Require().NoError(err)
	}
	if monthly > 0 {
		_, err := s.service.Grant(s.ctx, s.userID, models.KindMonthlyAllowance, monthly, &s.periodEnd)
		s.Require().NoError(err)
	}
	if topUp > 0 {
		_, err := s.service.Grant(s.ctx, s.userID, models.KindTopUp, topUp, nil)
		s.Require().NoError(err)
	}
}

func (s *LedgerServiceSuite) balance() models.Balance {
	b, err := s.service.Balance(s.ctx, s.userID)
	s.Require().NoError(err)
	return b
}

func (s *LedgerServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Error(err)
}

func (s *LedgerServiceSuite) TestDebitOrdering() {
	s.seed(2, 3, 5)

	var kinds []models.CreditKind
	for range 5 {
		res, err := s.service.Debit(s.ctx, s.userID, models.TierPro)
		s.Require().NoError(err)
		s.True(res.Charged)
		kinds = append(kinds, res.Kind)
	}

	s.Equal([]models.CreditKind{
		models.KindRollover, models.KindRollover,
		models.KindMonthlyAllowance, models.KindMonthlyAllowance, models.KindMonthlyAllowance,
	}, kinds)

	b := s.balance()
	s.Equal(0, b.Rollover)
	s.Equal(0, b.MonthlyAllowance)
	s.Equal(5, b.TopUp)

	res, err := s.service.Debit(s.ctx, s.userID, models.TierPro)
	s.Require().NoError(err)
	s.Equal(models.KindTopUp, res.Kind)
	s.Equal(4, res.Remaining)
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.DebitsTotal.WithLabelValues("top_up")))
}

func (s *LedgerServiceSuite) TestDebitExhaustion() {
	_, err := s.service.Debit(s.ctx, s.userID, models.TierPro)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientCredits), "user with no buckets")

	s.seed(0, 1, 0)
	_, err = s.service.Debit(s.ctx, s.userID, models.TierPro)
	s.Require().NoError(err)

	before := s.balance()
	_, err = s.service.Debit(s.ctx, s.userID, models.TierPro)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientCredits))
	s.Equal(before, s.balance(), "failed debit must not change balances")
	s.Equal(float64(2), promtest.ToFloat64(s.metrics.DebitFailuresTotal.WithLabelValues(metrics.ReasonInsufficient)))
}

func (s *LedgerServiceSuite) TestDebitFreeTierIsNoop() {
	s.seed(0, 0, 3)

	res, err := s.service.Debit(s.ctx, s.userID, models.TierFree)
	s.Require().NoError(err)
	s.False(res.Charged)
	s.Equal(3, s.balance().TopUp, "balances survive a downgrade untouched")
}

func (s *LedgerServiceSuite) TestDebitRejectsNilUser() {
	_, err := s.service.Debit(s.ctx, id.UserID{}, models.TierPro)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *LedgerServiceSuite) TestConservation() {
	rng := rand.New(rand.NewPCG(7, 11))
	granted, debited := 0, 0

	for range 200 {
		if rng.IntN(3) == 0 {
			kind := models.AllKinds[rng.IntN(len(models.AllKinds))]
			amount := 1 + rng.IntN(4)
			var end *time.Time
			if kind == models.KindMonthlyAllowance {
				end = &s.periodEnd
			}
			_, err := s.service.Grant(s.ctx, s.userID, kind, amount, end)
			s.Require().NoError(err)
			granted += amount
			continue
		}
		_, err := s.service.Debit(s.ctx, s.userID, models.TierPro)
		if err == nil {
			debited++
		} else {
			s.Require().True(dErrors.HasCode(err, dErrors.CodeInsufficientCredits))
		}
		s.Require().Equal(granted-debited, s.balance().Total())
	}
}

func (s *LedgerServiceSuite) TestConcurrentDebitsAgainstSingleBucket() {
	s.seed(0, 0, 5)

	result := testutil.RunConcurrent(20, func(int) error {
		_, err := s.service.Debit(s.ctx, s.userID, models.TierPro)
		return err
	})

	s.Equal(int32(5), result.Successes)
	s.Equal(int32(15), result.Insufficient)
	s.Equal(int32(0), result.Errors)
	s.Equal(0, s.balance().TopUp)
}

func (s *LedgerServiceSuite) TestConcurrentDebitsAcrossBuckets() {
	s.seed(3, 4, 5)

	result := testutil.RunConcurrent(30, func(int) error {
		_, err := s.service.Debit(s.ctx, s.userID, models.TierPro)
		return err
	})

	s.Equal(int32(12), result.Successes)
	s.Equal(int32(18), result.Insufficient+result.Conflicts)
	s.Equal(0, s.balance().Total())
}

func (s *LedgerServiceSuite) TestGrantIsAdditive() {
	s.seed(0, 0, 10)
	b, err := s.service.Grant(s.ctx, s.userID, models.KindTopUp, 10, nil)
	s.Require().NoError(err)
	s.Equal(20, b.CreditsRemaining)
	s.Equal(float64(20), promtest.ToFloat64(s.metrics.GrantedTotal.WithLabelValues("top_up")))
}

func (s *LedgerServiceSuite) TestGrantValidation() {
	_, err := s.service.Grant(s.ctx, s.userID, models.KindTopUp, 0, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.service.Grant(s.ctx, s.userID, models.CreditKind("bonus"), 1, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	b, err := s.service.Grant(s.ctx, s.userID, models.KindTopUp, 1, &s.periodEnd)
	s.Require().NoError(err)
	s.Nil(b.PeriodEnd, "top-ups never expire")
}

func (s *LedgerServiceSuite) TestRenewRollsOverUnusedAllowance() {
	s.seed(10, 40, 7)

	next := s.periodEnd.AddDate(0, 1, 0)
	res, err := s.service.Renew(s.ctx, s.userID, next)
	s.Require().NoError(err)
	s.Equal(40, res.RolledOver)
	s.Equal(300, res.Allowance)

	b := s.balance()
	s.Equal(50, b.Rollover)
	s.Equal(300, b.MonthlyAllowance)
	s.Equal(7, b.TopUp)
	s.Require().NotNil(b.RenewalDate)
	s.True(next.Equal(*b.RenewalDate))
}

func (s *LedgerServiceSuite) TestRenewValidation() {
	_, err := s.service.Renew(s.ctx, s.userID, time.Time{})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *LedgerServiceSuite) TestStorageFailuresSurfaceAsUnavailable() {
	svc, err := New(&failingStore{err: errors.New("connection reset")})
	s.Require().NoError(err)

	_, err = svc.Debit(s.ctx, s.userID, models.TierPro)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	_, err = svc.Grant(s.ctx, s.userID, models.KindTopUp, 1, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	_, err = svc.Renew(s.ctx, s.userID, s.periodEnd)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	_, err = svc.Balance(s.ctx, s.userID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *LedgerServiceSuite) TestDebitRetriesAfterConflict() {
	store := &racingStore{
		buckets:   []models.CreditBucket{{Kind: models.KindRollover, CreditsRemaining: 1}, {Kind: models.KindTopUp, CreditsRemaining: 2}},
		conflicts: map[models.CreditKind]bool{models.KindRollover: true},
		drain:     true,
	}
	svc, err := New(store)
	s.Require().NoError(err)

	res, err := svc.Debit(s.ctx, s.userID, models.TierPro)
	s.Require().NoError(err)
	s.Equal(models.KindTopUp, res.Kind)
	s.Equal(2, store.lists, "one reload after the lost race")
}

func (s *LedgerServiceSuite) TestDebitGivesUpAfterBoundedAttempts() {
	store := &racingStore{
		buckets:   []models.CreditBucket{{Kind: models.KindTopUp, CreditsRemaining: 1}},
		conflicts: map[models.CreditKind]bool{models.KindTopUp: true},
	}
	svc, err := New(store)
	s.Require().NoError(err)

	_, err = svc.Debit(s.ctx, s.userID, models.TierPro)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal(len(models.AllKinds)+1, store.lists)
}

func (s *LedgerServiceSuite) TestSelectBucket() {
	order := []models.CreditKind{models.KindTopUp, models.KindRollover}
	kind, ok := SelectBucket([]models.CreditBucket{
		{Kind: models.KindRollover, CreditsRemaining: 1},
		{Kind: models.KindTopUp, CreditsRemaining: 1},
	}, order)
	s.True(ok)
	s.Equal(models.KindTopUp, kind, "configured order wins")

	_, ok = SelectBucket([]models.CreditBucket{{Kind: models.KindMonthlyAllowance, CreditsRemaining: 9}}, order)
	s.False(ok, "kinds outside the order are never debited")
}

type failingStore struct {
	err error
}

func (f *failingStore) ListBuckets(context.Context, id.UserID) ([]models.CreditBucket, error) {
	return nil, f.err
}

func (f *failingStore) DecrementOne(context.Context, id.UserID, models.CreditKind) (int, error) {
	return 0, f.err
}

func (f *failingStore) AddCredits(context.Context, id.UserID, models.CreditKind, int, *time.Time) (*models.CreditBucket, error) {
	return nil, f.err
}

func (f *failingStore) RenewAllowance(context.Context, id.UserID, int, time.Time) (int, error) {
	return 0, f.err
}

// racingStore loses the decrement race for the kinds in conflicts, as if
// another replica got there first. With drain set the lost bucket reads as
// empty afterwards; without it reads stay stale forever.
type racingStore struct {
	failingStore
	buckets   []models.CreditBucket
	conflicts map[models.CreditKind]bool
	drain     bool
	lists     int
}

func (r *racingStore) ListBuckets(context.Context, id.UserID) ([]models.CreditBucket, error) {
	r.lists++
	return r.buckets, nil
}

func (r *racingStore) DecrementOne(_ context.Context, _ id.UserID, kind models.CreditKind) (int, error) {
	for i := range r.buckets {
		if r.buckets[i].Kind != kind {
			continue
		}
		if r.conflicts[kind] {
			if r.drain {
				r.buckets[i].CreditsRemaining = 0
			}
			return 0, sentinel.ErrConflict
		}
		if r.buckets[i].CreditsRemaining > 0 {
			r.buckets[i].CreditsRemaining--
			return r.buckets[i].CreditsRemaining, nil
		}
	}
	return 0, sentinel.ErrConflict
}
