package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookbalance/backend/internal/models"
)

func TestFilterEligibleRegionNarrowing(t *testing.T) {
	cfg := testConfig(100, 150, 200)
	cfg.TerritoryMappings = map[string]string{"NY": "EAST"}

	east := testRep("east", "EAST")
	west := testRep("west", "WEST")
	inactive := testRep("off", "EAST")
	inactive.IsActive = false

	a := testAccount("a1", 50, "")
	a.Territory = "NY"

	elig := FilterEligible(a, []models.SalesRep{east, west, inactive}, cfg, ModeGeographic, decimal.Zero)
	require.Len(t, elig.Eligible, 1)
	assert.Equal(t, "east", elig.Eligible[0].RepID)
	assert.Equal(t, 2, elig.StageCount("active_included"))
	assert.Equal(t, 1, elig.StageCount("region_match"))
}

func TestFilterEligibleUnmappedTerritoryFallsBackToGeo(t *testing.T) {
	cfg := testConfig(100, 150, 200)
	west := testRep("west", "WEST")

	a := testAccount("a1", 50, "")
	a.Territory = "ZZ"
	a.Geo = "WEST"

	elig := FilterEligible(a, []models.SalesRep{west}, cfg, ModeGeographic, decimal.Zero)
	require.Len(t, elig.Eligible, 1)
	assert.Equal(t, "west", elig.Eligible[0].RepID)
}

func TestFilterEligibleNoActiveReps(t *testing.T) {
	cfg := testConfig(100, 150, 200)
	off := testRep("off", "EAST")
	off.IncludeInAssignments = false

	elig := FilterEligible(testAccount("a1", 50, ""), []models.SalesRep{off}, cfg, ModeGeographic, decimal.Zero)
	assert.Empty(t, elig.Eligible)
	assert.Equal(t, "NO_ACTIVE_REPS", elig.ReasonCode)
}

func TestFilterEligibleStrategicPartition(t *testing.T) {
	cfg := testConfig(100, 150, 200)
	strategic := testRep("s1", "EAST")
	strategic.IsStrategicRep = true
	regular := testRep("r1", "EAST")

	owned := testAccount("a1", 50, "s1")
	elig := FilterEligible(owned, []models.SalesRep{strategic, regular}, cfg, ModeFallback, decimal.Zero)
	require.Len(t, elig.Eligible, 1)
	assert.Equal(t, "s1", elig.Eligible[0].RepID)

	unowned := testAccount("a2", 50, "")
	elig = FilterEligible(unowned, []models.SalesRep{strategic, regular}, cfg, ModeFallback, decimal.Zero)
	require.Len(t, elig.Eligible, 1)
	assert.Equal(t, "r1", elig.Eligible[0].RepID)
}

func TestRenewalSpecialistRouting(t *testing.T) {
	cfg := testConfig(100, 150, 200)
	cfg.RenewalSpecialistRouting = true
	cfg.RSMaxARR = decimal.NewFromInt(100)

	rs := testRep("rs", "EAST")
	rs.IsRenewalSpecialist = true
	regular := testRep("r1", "EAST")
	pool := []models.SalesRep{rs, regular}

	small := testAccount("a1", 80, "")
	elig := FilterEligible(small, pool, cfg, ModeFallback, decimal.Zero)
	require.Len(t, elig.Eligible, 1)
	assert.Equal(t, "rs", elig.Eligible[0].RepID)

	big := testAccount("a2", 500, "")
	elig = FilterEligible(big, pool, cfg, ModeFallback, decimal.Zero)
	require.Len(t, elig.Eligible, 1)
	assert.Equal(t, "r1", elig.Eligible[0].RepID)

	protected := testAccount("a3", 80, "")
	protected.PEFirmProtected = true
	elig = FilterEligible(protected, pool, cfg, ModeFallback, decimal.Zero)
	require.Len(t, elig.Eligible, 1)
	assert.Equal(t, "r1", elig.Eligible[0].RepID)

	// Top-band accounts stay with regular reps even under the RS ceiling.
	banded := testAccount("a4", 80, "")
	elig = FilterEligible(banded, pool, cfg, ModeFallback, decimal.NewFromInt(80))
	require.Len(t, elig.Eligible, 1)
	assert.Equal(t, "r1", elig.Eligible[0].RepID)
}

func TestRenewalSpecialistRoutingWidensWhenEmpty(t *testing.T) {
	cfg := testConfig(100, 150, 200)
	cfg.RenewalSpecialistRouting = true
	cfg.RSMaxARR = decimal.NewFromInt(100)

	// No RS in the pool: a routable account widens back within its
	// partition instead of going unassigned.
	regular := testRep("r1", "EAST")
	elig := FilterEligible(testAccount("a1", 50, ""), []models.SalesRep{regular}, cfg, ModeFallback, decimal.Zero)
	require.Len(t, elig.Eligible, 1)
	assert.Equal(t, "r1", elig.Eligible[0].RepID)
}

func TestRenewalSpecialistWideningKeepsPartition(t *testing.T) {
	cfg := testConfig(100, 150, 200)
	cfg.RenewalSpecialistRouting = true
	cfg.RSMaxARR = decimal.NewFromInt(100)

	// The strategic side holds only renewal specialists. An account
	// routed away from RS must still land on its own side.
	srs := testRep("srs", "EAST")
	srs.IsStrategicRep = true
	srs.IsRenewalSpecialist = true
	regular := testRep("r1", "EAST")

	big := testAccount("a1", 500, "srs")
	elig := FilterEligible(big, []models.SalesRep{srs, regular}, cfg, ModeFallback, decimal.Zero)
	require.Len(t, elig.Eligible, 1)
	assert.Equal(t, "srs", elig.Eligible[0].RepID)
}

func TestTopARRThreshold(t *testing.T) {
	var accounts []models.Account
	for i := int64(1); i <= 20; i++ {
		accounts = append(accounts, testAccount("a", i*10, ""))
	}
	// ceil(20*0.1)-1 = 1: second-largest value.
	got := TopARRThreshold(accounts)
	assert.True(t, got.Equal(decimal.NewFromInt(190)), "got %s", got)

	assert.True(t, TopARRThreshold(nil).IsZero())

	zeroOnly := []models.Account{testAccount("z", 0, "")}
	assert.True(t, TopARRThreshold(zeroOnly).IsZero())
}
