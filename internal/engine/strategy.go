package engine

import (
	"github.com/shopspring/decimal"

	"github.com/bookbalance/backend/internal/models"
)

// SelectionStrategy picks the single best rep for an account among an
// eligible subset, judged against the live ledger. Ties break toward
// the first candidate in input order, so output is reproducible given
// the same input order. A rep without a ledger entry is disqualified,
// never treated as zero load.
type SelectionStrategy interface {
	Name() string
	Select(eligible []models.SalesRep, ledger *Ledger) (models.SalesRep, bool)
}

// LowestARR picks the rep with the smallest total ARR.
type LowestARR struct{}

func (LowestARR) Name() string { return "lowest_arr" }

func (LowestARR) Select(eligible []models.SalesRep, ledger *Ledger) (models.SalesRep, bool) {
	var best models.SalesRep
	var bestARR decimal.Decimal
	found := false
	for _, r := range eligible {
		w, ok := ledger.Workload(r.RepID)
		if !ok {
			continue
		}
		if !found || w.TotalARR.LessThan(bestARR) {
			best, bestARR, found = r, w.TotalARR, true
		}
	}
	return best, found
}

// LowestCRE picks the rep with the fewest risk-flagged accounts.
type LowestCRE struct{}

func (LowestCRE) Name() string { return "lowest_cre" }

func (LowestCRE) Select(eligible []models.SalesRep, ledger *Ledger) (models.SalesRep, bool) {
	var best models.SalesRep
	bestCRE := 0
	found := false
	for _, r := range eligible {
		w, ok := ledger.Workload(r.RepID)
		if !ok {
			continue
		}
		if !found || w.CRECount < bestCRE {
			best, bestCRE, found = r, w.CRECount, true
		}
	}
	return best, found
}

// HighestNeed implements water-filling: the rep furthest below its
// minimum guarantees wins. Unmet account-count minimums dominate ARR
// shortfall via a large weight.
type HighestNeed struct {
	MinARR      decimal.Decimal
	MinAccounts int
}

func (HighestNeed) Name() string { return "highest_need" }

func (s HighestNeed) Select(eligible []models.SalesRep, ledger *Ledger) (models.SalesRep, bool) {
	var best models.SalesRep
	var bestNeed decimal.Decimal
	found := false
	for _, r := range eligible {
		w, ok := ledger.Workload(r.RepID)
		if !ok {
			continue
		}
		need := s.need(w)
		if !found || need.GreaterThan(bestNeed) {
			best, bestNeed, found = r, need, true
		}
	}
	return best, found
}

func (s HighestNeed) need(w *Workload) decimal.Decimal {
	arrShortfall := s.MinARR.Sub(w.TotalARR)
	if arrShortfall.IsNegative() {
		arrShortfall = decimal.Zero
	}
	accountNeed := s.MinAccounts - w.AccountCount
	if accountNeed < 0 {
		accountNeed = 0
	}
	return arrShortfall.Add(decimal.NewFromInt(int64(accountNeed) * accountNeedWeight))
}

// LowestUtilizationSquared picks the rep with the smallest squared
// utilization against the target ARR. Squaring penalizes already
// loaded reps superlinearly so a few reps near the target boundary are
// not chosen repeatedly.
type LowestUtilizationSquared struct {
	TargetARR decimal.Decimal
}

func (LowestUtilizationSquared) Name() string { return "lowest_utilization_squared" }

func (s LowestUtilizationSquared) Select(eligible []models.SalesRep, ledger *Ledger) (models.SalesRep, bool) {
	target := s.TargetARR.InexactFloat64()
	if target <= 0 {
		return models.SalesRep{}, false
	}
	var best models.SalesRep
	bestScore := 0.0
	found := false
	for _, r := range eligible {
		w, ok := ledger.Workload(r.RepID)
		if !ok {
			continue
		}
		u := w.TotalARR.InexactFloat64() / target
		score := u * u
		if !found || score < bestScore {
			best, bestScore, found = r, score, true
		}
	}
	return best, found
}
