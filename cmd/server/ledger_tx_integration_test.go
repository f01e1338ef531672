//go:build integration

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"companion/internal/credits/models"
	"companion/internal/credits/service/fulfillment"
	"companion/internal/credits/service/ledger"
	"companion/internal/credits/store/bucket"
	"companion/internal/credits/store/idempotency"
	"companion/internal/credits/store/subscription"
	id "companion/pkg/domain"
	"companion/pkg/testutil"
	"companion/pkg/testutil/containers"
)

type LedgerTxSuite struct {
	suite.Suite
	ctx         context.Context
	pg          *containers.PostgresContainer
	ledger      *ledger.Service
	fulfillment *fulfillment.Service
	userID      id.UserID
	periodEnd   time.Time
}

func TestLedgerTxSuite(t *testing.T) {
	suite.Run(t, new(LedgerTxSuite))
}

func (s *LedgerTxSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
}

func (s *LedgerTxSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.pg.TruncateLedgerTables(s.ctx))
	s.userID = id.UserID(uuid.New())
	s.periodEnd = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	var err error
	s.ledger, err = ledger.New(bucket.NewPostgres(s.pg.DB))
	s.Require().NoError(err)
	s.fulfillment, err = fulfillment.New(s.ledger,
		idempotency.NewPostgres(s.pg.DB),
		subscription.NewPostgres(s.pg.DB),
		fulfillment.WithTx(newLedgerPostgresTx(s.pg.DB)),
	)
	s.Require().NoError(err)
}

func (s *LedgerTxSuite) TestConcurrentTopUpDeliveriesApplyOnce() {
	result := testutil.RunConcurrent(10, func(int) error {
		_, err := s.fulfillment.ApplyTopUp(s.ctx, "pi_pg", s.userID, 25)
		return err
	})
	s.Equal(int32(10), result.Successes)

	b, err := s.ledger.Balance(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(25, b.TopUp)
}

func (s *LedgerTxSuite) TestRenewPeriodCommitsClaimWithLedger() {
	applied, err := s.fulfillment.ActivatePro(s.ctx, s.userID, s.periodEnd)
	s.Require().NoError(err)
	s.True(applied)

	next := s.periodEnd.AddDate(0, 1, 0)
	for range 3 {
		_, err := s.fulfillment.RenewPeriod(s.ctx, s.userID, next)
		s.Require().NoError(err)
	}

	b, err := s.ledger.Balance(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(300, b.Rollover)
	s.Equal(300, b.MonthlyAllowance)
}

func (s *LedgerTxSuite) TestFailedUnitOfWorkRollsBackClaim() {
	tx := newLedgerPostgresTx(s.pg.DB)
	keys := idempotency.NewPostgres(s.pg.DB)
	boom := errors.New("boom")

	err := tx.RunInTx(s.ctx, func(txCtx context.Context) error {
		s.Require().NoError(keys.Claim(txCtx, fulfillment.TopUpKey("pi_rollback")))
		_, err := s.ledger.Grant(txCtx, s.userID, models.KindTopUp, 5, nil)
		s.Require().NoError(err)
		return boom
	})
	s.ErrorIs(err, boom)

	b, err := s.ledger.Balance(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(0, b.TopUp, "grant rolled back with the claim")

	applied, err := s.fulfillment.ApplyTopUp(s.ctx, "pi_rollback", s.userID, 5)
	s.Require().NoError(err)
	s.True(applied)
}
