package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultMaxBalanceIterations bounds the ARR-balancing loop.
	DefaultMaxBalanceIterations = 10

	// accountNeedWeight makes unmet account-count minimums dominate ARR
	// shortfall in the water-filling need score.
	accountNeedWeight = 100_000
)

// Config holds the per-run constants for one book (customer or
// prospect). Thresholds never change mid-run.
type Config struct {
	MinARR    decimal.Decimal
	TargetARR decimal.Decimal
	MaxARR    decimal.Decimal

	MinAccountsPerRep int
	MaxCREPerRep      int
	ContinuityDays    int

	PreferGeographicMatch bool
	PreferContinuity      bool

	RenewalSpecialistRouting bool
	RSMaxARR                 decimal.Decimal

	// TerritoryMappings maps territory codes to region names. Unmapped
	// territories fall back to the account's geo code.
	TerritoryMappings map[string]string

	// MaxBalanceIterations defaults to DefaultMaxBalanceIterations when 0.
	MaxBalanceIterations int

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (c Config) Validate() error {
	if c.TargetARR.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: target ARR must be positive", ErrInvalidConfiguration)
	}
	if c.MinARR.GreaterThan(c.MaxARR) {
		return fmt.Errorf("%w: min ARR exceeds max ARR", ErrInvalidConfiguration)
	}
	if c.TargetARR.LessThan(c.MinARR) || c.TargetARR.GreaterThan(c.MaxARR) {
		return fmt.Errorf("%w: target ARR outside [min, max]", ErrInvalidConfiguration)
	}
	if c.MaxCREPerRep < 1 {
		return fmt.Errorf("%w: max CRE per rep must be at least 1", ErrInvalidConfiguration)
	}
	if c.ContinuityDays < 0 {
		return fmt.Errorf("%w: continuity days must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

func (c Config) balanceIterations() int {
	if c.MaxBalanceIterations > 0 {
		return c.MaxBalanceIterations
	}
	return DefaultMaxBalanceIterations
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

// ResolveRegion maps an account's territory to a region, falling back to
// the raw geo code when no mapping entry exists.
func (c Config) ResolveRegion(territory, geo string) string {
	if region, ok := c.TerritoryMappings[territory]; ok && region != "" {
		return region
	}
	return geo
}
