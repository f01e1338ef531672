package config

import (
	"time"

	"companion/internal/credits/models"
)

// Config holds ledger and admission constants.
type Config struct {
	// FreeDailyLimit is the number of user messages a free user may send per UTC day.
	FreeDailyLimit int
	// ProMonthlyAllowance is the monthly_allowance balance granted at each renewal.
	ProMonthlyAllowance int
	// DebitOrder is the bucket precedence for debits. Top-ups are drained last.
	DebitOrder []models.CreditKind

	Renewal RenewalConfig
}

// RenewalConfig tunes the renewal worker.
type RenewalConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultConfig returns the production plan constants.
func DefaultConfig() *Config {
	return &Config{
		FreeDailyLimit:      10,
		ProMonthlyAllowance: 300,
		DebitOrder: []models.CreditKind{
			models.KindRollover,
			models.KindMonthlyAllowance,
			models.KindTopUp,
		},
		Renewal: RenewalConfig{
			Interval:  5 * time.Minute,
			BatchSize: 500,
		},
	}
}
