package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bookbalance/backend/internal/models"
)

// Pass is one phase of the algorithm. Each pass consumes the live
// ledger plus the proposal set built so far and commits moves through
// runState.commit, which keeps ledger and proposals consistent.
type Pass interface {
	Name() string
	Apply(st *runState) error
}

// runState is the mutable state threaded through a run's passes. Owned
// by the Orchestrator for the run's lifetime; discarded at run end.
type runState struct {
	cfg         Config
	pool        []models.SalesRep // full pool, for partition lookups
	reps        []models.SalesRep // assignable subset, input order
	accounts    []models.Account  // input order
	accountByID map[string]models.Account
	repByID     map[string]models.SalesRep
	ledger      *Ledger
	proposals   map[string]*models.Proposal
	order       []string // account ids in first-proposal order
	topARR      decimal.Decimal
	passMoves   int
}

func newRunState(cfg Config, accounts []models.Account, reps []models.SalesRep) *runState {
	st := &runState{
		cfg:         cfg,
		pool:        reps,
		accounts:    accounts,
		accountByID: make(map[string]models.Account, len(accounts)),
		repByID:     make(map[string]models.SalesRep, len(reps)),
		proposals:   map[string]*models.Proposal{},
		topARR:      TopARRThreshold(accounts),
	}
	for _, r := range reps {
		st.repByID[r.RepID] = r
		if r.Assignable() {
			st.reps = append(st.reps, r)
		}
	}
	for _, a := range accounts {
		st.accountByID[a.ID] = a
	}
	st.ledger = NewLedger(st.reps)
	return st
}

// commit replaces (or creates) the proposal for an account and applies
// the matching ledger mutation. A reassignment reverses the old ledger
// effect before the new one; the account is never represented in zero
// or two workloads.
func (st *runState) commit(a models.Account, rep models.SalesRep, rationale, conflictFlag string) error {
	if holder, ok := st.ledger.HolderOf(a.ID); ok {
		if err := st.ledger.RecordRemove(holder, a); err != nil {
			return err
		}
	}
	if err := st.ledger.RecordAdd(rep.RepID, a); err != nil {
		return err
	}

	assignmentType := models.AssignmentProspect
	if a.IsCustomer {
		assignmentType = models.AssignmentCustomer
	}
	p, ok := st.proposals[a.ID]
	if !ok {
		p = &models.Proposal{AccountID: a.ID}
		st.proposals[a.ID] = p
		st.order = append(st.order, a.ID)
	}
	p.ProposedOwnerID = rep.RepID
	p.ProposedOwnerName = rep.Name
	p.AssignmentType = assignmentType
	p.Rationale = rationale
	p.ConflictFlag = conflictFlag
	st.passMoves++
	return nil
}

// movable reports whether the account may be handed to the rep without
// crossing the strategic partition or a reassignment exclusion.
func (st *runState) movable(a models.Account, rep models.SalesRep) bool {
	if a.ExcludeFromReassignment {
		return false
	}
	return ownerIsStrategic(a, st.pool) == rep.IsStrategicRep
}

// sortedByARRAsc returns the accounts behind the given ids ordered
// smallest ARR first, insertion order preserved on ties.
func (st *runState) sortedByARRAsc(ids []string) []models.Account {
	out := make([]models.Account, 0, len(ids))
	for _, id := range ids {
		if a, ok := st.accountByID[id]; ok {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ARR.LessThan(out[j].ARR)
	})
	return out
}

// GeographicPass gives every account exactly one initial proposal. The
// region-matched subset wins when available and preferred; otherwise
// the strategic-partitioned pool serves as fallback. An empty fallback
// pool is fatal.
type GeographicPass struct{}

func (GeographicPass) Name() string { return "geographic_assignment" }

func (p GeographicPass) Apply(st *runState) error {
	pick := LowestARR{}
	for _, a := range st.accounts {
		// Pinned accounts stay with their current owner when that
		// owner is still assignable.
		if a.ExcludeFromReassignment && a.OwnerID != nil {
			if owner, ok := st.repByID[*a.OwnerID]; ok && owner.Assignable() {
				if err := st.commit(a, owner, "pinned: excluded from reassignment", ""); err != nil {
					return err
				}
				continue
			}
		}

		region := st.cfg.ResolveRegion(a.Territory, a.Geo)
		elig := FilterEligible(a, st.pool, st.cfg, ModeGeographic, st.topARR)
		if st.cfg.PreferGeographicMatch && len(elig.Eligible) > 0 {
			rep, ok := pick.Select(elig.Eligible, st.ledger)
			if ok {
				rationale := fmt.Sprintf("geographic match: region %s, lowest ARR in region", region)
				if err := st.commit(a, rep, rationale, ""); err != nil {
					return err
				}
				continue
			}
		}

		fallback := FilterEligible(a, st.pool, st.cfg, ModeFallback, st.topARR)
		rep, ok := pick.Select(fallback.Eligible, st.ledger)
		if !ok {
			return &NoEligibleRepsError{AccountID: a.ID, Pass: p.Name()}
		}
		conflict := ""
		if w, found := st.ledger.Workload(rep.RepID); found && w.TotalARR.Add(a.ARR).GreaterThan(st.cfg.MaxARR) {
			conflict = "CAPACITY_OVERFLOW"
		}
		rationale := fmt.Sprintf("no geographic match for region %s: lowest-ARR rep across partition", region)
		if err := st.commit(a, rep, rationale, conflict); err != nil {
			return err
		}
	}
	return nil
}

// MinimumGuaranteePass water-fills reps below their ARR or
// account-count floors by pulling the smallest accounts from reps above
// the target. The neediest rep is filled to its floor before the next
// one is considered; the iteration cap bounds needy reps, not moves.
type MinimumGuaranteePass struct{}

func (MinimumGuaranteePass) Name() string { return "minimum_guarantee" }

func (p MinimumGuaranteePass) Apply(st *runState) error {
	need := HighestNeed{MinARR: st.cfg.MinARR, MinAccounts: st.cfg.MinAccountsPerRep}
	for iter := 0; iter < st.cfg.balanceIterations(); iter++ {
		needy := filterReps(st.reps, func(r models.SalesRep) bool {
			return p.belowFloor(st, r)
		})
		if len(needy) == 0 {
			return nil
		}
		dest, ok := need.Select(needy, st.ledger)
		if !ok {
			return nil
		}

		filled := 0
		for p.belowFloor(st, dest) {
			donor, account, found := p.pickDonation(st, dest)
			if !found {
				break
			}
			w, _ := st.ledger.Workload(donor.RepID)
			rationale := fmt.Sprintf("minimum guarantee: moved from %s (ARR %s) to fill shortfall", donor.Name, w.TotalARR.StringFixed(0))
			if err := st.commit(account, dest, rationale, ""); err != nil {
				return err
			}
			filled++
		}
		if filled == 0 {
			return nil
		}
	}
	return nil
}

func (p MinimumGuaranteePass) belowFloor(st *runState, rep models.SalesRep) bool {
	w, ok := st.ledger.Workload(rep.RepID)
	if !ok {
		return false
	}
	return w.TotalARR.LessThan(st.cfg.MinARR) || w.AccountCount < st.cfg.MinAccountsPerRep
}

// pickDonation finds the most-loaded rep above target holding a movable
// account, smallest ARR first.
func (p MinimumGuaranteePass) pickDonation(st *runState, dest models.SalesRep) (models.SalesRep, models.Account, bool) {
	donors := filterReps(st.reps, func(r models.SalesRep) bool {
		if r.RepID == dest.RepID {
			return false
		}
		w, ok := st.ledger.Workload(r.RepID)
		return ok && w.TotalARR.GreaterThan(st.cfg.TargetARR)
	})
	sort.SliceStable(donors, func(i, j int) bool {
		wi, _ := st.ledger.Workload(donors[i].RepID)
		wj, _ := st.ledger.Workload(donors[j].RepID)
		return wi.TotalARR.GreaterThan(wj.TotalARR)
	})
	for _, donor := range donors {
		w, _ := st.ledger.Workload(donor.RepID)
		for _, a := range st.sortedByARRAsc(w.AccountIDs()) {
			if st.movable(a, dest) {
				return donor, a, true
			}
		}
	}
	return models.SalesRep{}, models.Account{}, false
}

// BalancePass moves accounts from reps above maxARR to reps below
// minARR, smallest accounts first, until the excess is absorbed, the
// underloaded queue drains, or an iteration makes no progress. Bounded
// by the configured iteration cap.
type BalancePass struct{}

func (BalancePass) Name() string { return "arr_balancing" }

func (p BalancePass) Apply(st *runState) error {
	for iter := 0; iter < st.cfg.balanceIterations(); iter++ {
		overloaded := filterReps(st.reps, func(r models.SalesRep) bool {
			w, ok := st.ledger.Workload(r.RepID)
			return ok && w.TotalARR.GreaterThan(st.cfg.MaxARR)
		})
		underloaded := filterReps(st.reps, func(r models.SalesRep) bool {
			w, ok := st.ledger.Workload(r.RepID)
			return ok && w.TotalARR.LessThan(st.cfg.MinARR)
		})
		if len(overloaded) == 0 || len(underloaded) == 0 {
			return nil
		}
		sort.SliceStable(overloaded, func(i, j int) bool {
			wi, _ := st.ledger.Workload(overloaded[i].RepID)
			wj, _ := st.ledger.Workload(overloaded[j].RepID)
			return wi.TotalARR.GreaterThan(wj.TotalARR)
		})
		sort.SliceStable(underloaded, func(i, j int) bool {
			wi, _ := st.ledger.Workload(underloaded[i].RepID)
			wj, _ := st.ledger.Workload(underloaded[j].RepID)
			return wi.TotalARR.LessThan(wj.TotalARR)
		})

		moved := 0
		queue := underloaded
		for _, source := range overloaded {
			if len(queue) == 0 {
				break
			}
			w, _ := st.ledger.Workload(source.RepID)
			excess := w.TotalARR.Sub(st.cfg.TargetARR)
			priorARR := w.TotalARR

			for _, a := range st.sortedByARRAsc(w.AccountIDs()) {
				if excess.LessThanOrEqual(decimal.Zero) || len(queue) == 0 {
					break
				}
				dest := queue[0]
				if !st.movable(a, dest) {
					continue
				}
				rationale := fmt.Sprintf("rebalanced from %s (ARR %s, above max): evening out ARR", source.Name, priorARR.StringFixed(0))
				if err := st.commit(a, dest, rationale, ""); err != nil {
					return err
				}
				moved++
				excess = excess.Sub(a.ARR)
				if dw, ok := st.ledger.Workload(dest.RepID); ok && dw.TotalARR.GreaterThanOrEqual(st.cfg.MinARR) {
					queue = queue[1:]
				}
			}
		}
		if moved == 0 {
			return nil
		}
	}
	return nil
}

// CREPass redistributes risk-flagged accounts away from reps over the
// CRE cap, smallest ARR first, to the globally lowest-CRE rep. The
// destination is recomputed per account since each move shifts the
// global minimum.
type CREPass struct{}

func (CREPass) Name() string { return "cre_redistribution" }

func (p CREPass) Apply(st *runState) error {
	for _, repID := range st.ledger.RepIDs() {
		w, ok := st.ledger.Workload(repID)
		if !ok || w.CRECount <= st.cfg.MaxCREPerRep {
			continue
		}
		excess := w.CRECount - st.cfg.MaxCREPerRep
		source := st.repByID[repID]

		var creAccounts []models.Account
		for _, a := range st.sortedByARRAsc(w.AccountIDs()) {
			if a.RiskFlagged() {
				creAccounts = append(creAccounts, a)
			}
		}

		moves := 0
		for _, a := range creAccounts {
			if moves >= excess {
				break
			}
			dest, found := p.lowestCREDest(st, a, repID)
			if !found {
				break
			}
			rationale := fmt.Sprintf("risk redistribution: %s over CRE cap, moved to lowest-CRE rep", source.Name)
			if err := st.commit(a, dest, rationale, ""); err != nil {
				return err
			}
			moves++
		}
	}
	return nil
}

func (p CREPass) lowestCREDest(st *runState, a models.Account, sourceID string) (models.SalesRep, bool) {
	candidates := filterReps(st.reps, func(r models.SalesRep) bool {
		return r.RepID != sourceID && st.movable(a, r)
	})
	return LowestCRE{}.Select(candidates, st.ledger)
}

// ContinuityPass runs last and overrides earlier proposals: accounts
// older than the continuity threshold go back to their current owner.
// It deliberately skips cap re-validation; continuity is a policy
// override, not a capacity decision.
type ContinuityPass struct{}

func (ContinuityPass) Name() string { return "continuity_preservation" }

func (p ContinuityPass) Apply(st *runState) error {
	if !st.cfg.PreferContinuity {
		return nil
	}
	cutoff := st.cfg.now().AddDate(0, 0, -st.cfg.ContinuityDays)
	for _, id := range st.order {
		a := st.accountByID[id]
		if a.OwnerID == nil || !a.CreatedAt.Before(cutoff) {
			continue
		}
		owner, ok := st.repByID[*a.OwnerID]
		if !ok || !owner.Assignable() {
			continue
		}
		if prop := st.proposals[id]; prop != nil && prop.ProposedOwnerID == owner.RepID {
			continue
		}
		rationale := fmt.Sprintf("continuity: account older than %d days stays with %s", st.cfg.ContinuityDays, owner.Name)
		if err := st.commit(a, owner, rationale, ""); err != nil {
			return err
		}
	}
	return nil
}
