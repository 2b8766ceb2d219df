package engine

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bookbalance/backend/internal/models"
)

// FilterMode controls which narrowing rules apply.
type FilterMode int

const (
	// ModeGeographic applies the region filter on top of the mandatory
	// rules.
	ModeGeographic FilterMode = iota
	// ModeFallback skips the region filter; only the mandatory rules
	// (active + strategic partition + RS routing) apply.
	ModeFallback
)

// Eligibility is the staged result of filtering the rep pool for one
// account. Stages record the candidate count after each rule so the
// outcome can be explained.
type Eligibility struct {
	Eligible   []models.SalesRep
	Stages     []EligibilityStage
	ReasonCode string
	ReasonText string
}

type EligibilityStage struct {
	Name       string
	Candidates []models.SalesRep
}

// StageCount returns the candidate count after the named stage, or 0.
func (e Eligibility) StageCount(name string) int {
	for _, s := range e.Stages {
		if s.Name == name {
			return len(s.Candidates)
		}
	}
	return 0
}

// FilterEligible narrows the full rep pool for one account. Rules apply
// in order and only ever narrow the set:
//
//  1. active + included
//  2. strategic partition by the account's current owner
//  3. region match (ModeGeographic only)
//  4. renewal-specialist routing (when enabled)
//
// An empty result is not an error; the calling pass decides the
// fallback.
func FilterEligible(account models.Account, pool []models.SalesRep, cfg Config, mode FilterMode, topARRThreshold decimal.Decimal) Eligibility {
	result := Eligibility{}

	active := filterReps(pool, func(r models.SalesRep) bool {
		return r.Assignable()
	})
	result.Stages = append(result.Stages, EligibilityStage{Name: "active_included", Candidates: active})
	if len(active) == 0 {
		result.ReasonCode = "NO_ACTIVE_REPS"
		result.ReasonText = "No active reps included in assignments"
		return result
	}

	ownerStrategic := ownerIsStrategic(account, pool)
	partitioned := filterReps(active, func(r models.SalesRep) bool {
		return r.IsStrategicRep == ownerStrategic
	})
	result.Stages = append(result.Stages, EligibilityStage{Name: "strategic_partition", Candidates: partitioned})
	if len(partitioned) == 0 {
		result.ReasonCode = "STRATEGIC_PARTITION_EMPTY"
		result.ReasonText = "No reps on the account's side of the strategic partition"
		return result
	}

	narrowed := partitioned
	if mode == ModeGeographic {
		region := cfg.ResolveRegion(account.Territory, account.Geo)
		narrowed = filterReps(narrowed, func(r models.SalesRep) bool {
			return strings.EqualFold(strings.TrimSpace(r.Region), strings.TrimSpace(region))
		})
		result.Stages = append(result.Stages, EligibilityStage{Name: "region_match", Candidates: narrowed})
		if len(narrowed) == 0 {
			result.ReasonCode = "NO_REGION_MATCH"
			result.ReasonText = "No reps in region " + region
			return result
		}
	}

	if cfg.RenewalSpecialistRouting {
		toRS := routesToRenewalSpecialist(account, cfg, topARRThreshold)
		afterRS := filterReps(narrowed, func(r models.SalesRep) bool {
			return r.IsRenewalSpecialist == toRS
		})
		if len(afterRS) == 0 {
			// Widen within the partition rather than fail; the account
			// still needs a home and the partition holds even here.
			afterRS = partitioned
		}
		narrowed = afterRS
		result.Stages = append(result.Stages, EligibilityStage{Name: "rs_routing", Candidates: narrowed})
	}

	result.Eligible = narrowed
	return result
}

// routesToRenewalSpecialist applies the RS routing rules: customers
// only, never PE-firm-protected, never the top-10%-ARR band, and only
// at or below the configured RS ARR ceiling.
func routesToRenewalSpecialist(account models.Account, cfg Config, topARRThreshold decimal.Decimal) bool {
	if !account.IsCustomer || account.PEFirmProtected {
		return false
	}
	if topARRThreshold.GreaterThan(decimal.Zero) && account.ARR.GreaterThanOrEqual(topARRThreshold) {
		return false
	}
	return account.ARR.LessThanOrEqual(cfg.RSMaxARR)
}

// TopARRThreshold computes the ARR value marking the top-10% band over
// all positive-ARR accounts. Accounts at or above it are exempt from RS
// routing.
func TopARRThreshold(accounts []models.Account) decimal.Decimal {
	var arrs []decimal.Decimal
	for _, a := range accounts {
		if a.ARR.GreaterThan(decimal.Zero) {
			arrs = append(arrs, a.ARR)
		}
	}
	if len(arrs) == 0 {
		return decimal.Zero
	}
	sort.SliceStable(arrs, func(i, j int) bool {
		return arrs[i].GreaterThan(arrs[j])
	})
	idx := int(math.Ceil(float64(len(arrs))*0.1)) - 1
	if idx < 0 {
		idx = 0
	}
	return arrs[idx]
}

func ownerIsStrategic(account models.Account, pool []models.SalesRep) bool {
	if account.OwnerID == nil {
		return false
	}
	for _, r := range pool {
		if r.RepID == *account.OwnerID {
			return r.IsStrategicRep
		}
	}
	return false
}

func filterReps(reps []models.SalesRep, keep func(models.SalesRep) bool) []models.SalesRep {
	out := make([]models.SalesRep, 0, len(reps))
	for _, r := range reps {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
