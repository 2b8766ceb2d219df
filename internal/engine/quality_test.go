package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookbalance/backend/internal/models"
)

func TestStatsKnownVector(t *testing.T) {
	s := stats([]float64{100, 200})
	assert.InDelta(t, 150, s.Mean, 1e-9)
	assert.InDelta(t, 50, s.StdDev, 1e-9)
	assert.InDelta(t, 1.0/3.0, s.CV, 1e-9)

	assert.Equal(t, MetricStats{}, stats(nil))

	zero := stats([]float64{0, 0})
	assert.Equal(t, 0.0, zero.CV)
}

func TestScoreQualityPerfectDistribution(t *testing.T) {
	cfg := testConfig(100, 150, 200)
	cfg.TerritoryMappings = map[string]string{"NY": "EAST"}

	reps := []models.SalesRep{testRep("r1", "EAST"), testRep("r2", "EAST")}
	a1 := testAccount("a1", 150, "r1")
	a1.Territory = "NY"
	a2 := testAccount("a2", 150, "r2")
	a2.Territory = "NY"
	accounts := []models.Account{a1, a2}

	ledger := NewLedger(reps)
	ledger.Seed(accounts)
	assignments := map[string]string{"a1": "r1", "a2": "r2"}

	m := ScoreQuality(ledger.Snapshot(), reps, accounts, assignments, cfg)
	assert.Equal(t, 100.0, m.DistributionScore)
	assert.Equal(t, 100.0, m.ComplianceScore)
	assert.Equal(t, 100.0, m.RiskScore)
	assert.Equal(t, 100.0, m.OverallScore)
	assert.Empty(t, m.Warnings)
	assert.Equal(t, 1.0, m.ContinuityRate)
	assert.Equal(t, 1.0, m.GeoMatchRate)
	assert.Equal(t, 1.0, m.ParentChildAlignment) // no parent pairs, vacuously compliant
}

func TestScoreQualityWarnsOnHighARRSpread(t *testing.T) {
	cfg := testConfig(100, 150, 200)

	reps := []models.SalesRep{testRep("r1", "EAST"), testRep("r2", "EAST")}
	a1 := testAccount("a1", 500, "r1")
	a2 := testAccount("a2", 50, "r2")
	accounts := []models.Account{a1, a2}

	ledger := NewLedger(reps)
	ledger.Seed(accounts)
	m := ScoreQuality(ledger.Snapshot(), reps, accounts, map[string]string{"a1": "r1", "a2": "r2"}, cfg)

	require.NotEmpty(t, m.Warnings)
	assert.Equal(t, SeverityHigh, m.Warnings[0].Severity)
	assert.Greater(t, m.ARR.CV, arrCVWarnHigh)
}

func TestScoreQualityWarnsOnCRECapBreach(t *testing.T) {
	cfg := testConfig(100, 150, 200)
	cfg.MaxCREPerRep = 1

	reps := []models.SalesRep{testRep("r1", "EAST")}
	c1 := testAccount("c1", 100, "r1")
	c1.CRECount = 1
	c2 := testAccount("c2", 100, "r1")
	c2.CRECount = 1
	accounts := []models.Account{c1, c2}

	ledger := NewLedger(reps)
	ledger.Seed(accounts)
	m := ScoreQuality(ledger.Snapshot(), reps, accounts, map[string]string{"c1": "r1", "c2": "r1"}, cfg)

	found := false
	for _, w := range m.Warnings {
		if w.Severity == SeverityHigh {
			found = true
		}
	}
	assert.True(t, found, "expected HIGH warning for CRE cap breach")
	assert.Less(t, m.RiskScore, 100.0)
}

func TestScoreQualityExcludesStrategicReps(t *testing.T) {
	cfg := testConfig(100, 150, 200)

	strategic := testRep("s1", "EAST")
	strategic.IsStrategicRep = true
	regular := testRep("r1", "EAST")
	reps := []models.SalesRep{strategic, regular}

	// A huge strategic book must not skew the distribution stats.
	big := testAccount("big", 10_000, "s1")
	small := testAccount("small", 150, "r1")
	accounts := []models.Account{big, small}

	ledger := NewLedger(reps)
	ledger.Seed(accounts)
	m := ScoreQuality(ledger.Snapshot(), reps, accounts, map[string]string{"big": "s1", "small": "r1"}, cfg)

	assert.InDelta(t, 150, m.ARR.Mean, 1e-9)
	assert.Equal(t, 0.0, m.ARR.CV)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero target", func(c *Config) { c.TargetARR = decimal.Zero }},
		{"min above max", func(c *Config) { c.MinARR = decimal.NewFromInt(500) }},
		{"target outside band", func(c *Config) { c.TargetARR = decimal.NewFromInt(250) }},
		{"cre cap below one", func(c *Config) { c.MaxCREPerRep = 0 }},
		{"negative continuity", func(c *Config) { c.ContinuityDays = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(100, 150, 200)
			tc.mut(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)
		})
	}

	assert.NoError(t, testConfig(100, 150, 200).Validate())
}

func TestResolveRegionFallsBackToGeo(t *testing.T) {
	cfg := Config{TerritoryMappings: map[string]string{"NY": "EAST"}}
	assert.Equal(t, "EAST", cfg.ResolveRegion("NY", "WEST"))
	assert.Equal(t, "WEST", cfg.ResolveRegion("ZZ", "WEST"))
}
