package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bookbalance/backend/internal/models"
)

// Workload is the live per-rep aggregate state. It is mutated only
// through Ledger.RecordAdd and Ledger.RecordRemove so the totals can
// never drift from the account set.
type Workload struct {
	RepID        string
	TotalARR     decimal.Decimal
	TotalATR     decimal.Decimal
	AccountCount int
	CRECount     int
	Tier1Count   int
	Tier2Count   int

	territories map[string]int
	accountIDs  []string // insertion order = assignment order
}

// AccountIDs returns the rep's account ids in assignment order.
func (w *Workload) AccountIDs() []string {
	out := make([]string, len(w.accountIDs))
	copy(out, w.accountIDs)
	return out
}

// WorkloadSnapshot is an immutable copy of a Workload used for scoring
// and for the run result.
type WorkloadSnapshot struct {
	RepID        string          `json:"rep_id"`
	TotalARR     decimal.Decimal `json:"total_arr"`
	TotalATR     decimal.Decimal `json:"total_atr"`
	AccountCount int             `json:"account_count"`
	CRECount     int             `json:"cre_count"`
	Tier1Count   int             `json:"tier1_count"`
	Tier2Count   int             `json:"tier2_count"`
	Territories  []string        `json:"territories"`
	AccountIDs   []string        `json:"account_ids"`
}

// Ledger tracks every rep's workload for one run. It is the single
// source of truth for "how loaded is this rep right now" and is shared
// by every pass. Not safe for concurrent use; a run is single-threaded.
type Ledger struct {
	workloads map[string]*Workload
	order     []string // rep input order, for deterministic iteration

	// ownerOf maps accountID to the rep currently holding it, so a
	// reassignment can reverse the old ledger effect first.
	ownerOf map[string]string
}

func NewLedger(reps []models.SalesRep) *Ledger {
	l := &Ledger{
		workloads: make(map[string]*Workload, len(reps)),
		order:     make([]string, 0, len(reps)),
		ownerOf:   map[string]string{},
	}
	for _, r := range reps {
		if _, ok := l.workloads[r.RepID]; ok {
			continue
		}
		l.workloads[r.RepID] = &Workload{
			RepID:       r.RepID,
			TotalARR:    decimal.Zero,
			TotalATR:    decimal.Zero,
			territories: map[string]int{},
		}
		l.order = append(l.order, r.RepID)
	}
	return l
}

// Seed loads the ledger from current ownership. Accounts owned by reps
// outside the pool are left out.
func (l *Ledger) Seed(accounts []models.Account) {
	for _, a := range accounts {
		if a.OwnerID == nil {
			continue
		}
		if _, ok := l.workloads[*a.OwnerID]; !ok {
			continue
		}
		_ = l.RecordAdd(*a.OwnerID, a)
	}
}

func (l *Ledger) RecordAdd(repID string, a models.Account) error {
	w, ok := l.workloads[repID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRep, repID)
	}
	w.TotalARR = w.TotalARR.Add(a.ARR)
	w.TotalATR = w.TotalATR.Add(a.ATR)
	w.AccountCount++
	if a.CRECount > 0 {
		w.CRECount++
	}
	switch a.Tier {
	case models.Tier1:
		w.Tier1Count++
	case models.Tier2:
		w.Tier2Count++
	}
	if a.Territory != "" {
		w.territories[a.Territory]++
	}
	w.accountIDs = append(w.accountIDs, a.ID)
	l.ownerOf[a.ID] = repID
	return nil
}

func (l *Ledger) RecordRemove(repID string, a models.Account) error {
	w, ok := l.workloads[repID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRep, repID)
	}
	idx := -1
	for i, id := range w.accountIDs {
		if id == a.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: account %s not held by rep %s", ErrAccountNotInWorkload, a.ID, repID)
	}
	w.TotalARR = w.TotalARR.Sub(a.ARR)
	w.TotalATR = w.TotalATR.Sub(a.ATR)
	w.AccountCount--
	if a.CRECount > 0 {
		w.CRECount--
	}
	switch a.Tier {
	case models.Tier1:
		w.Tier1Count--
	case models.Tier2:
		w.Tier2Count--
	}
	if a.Territory != "" {
		if w.territories[a.Territory] <= 1 {
			delete(w.territories, a.Territory)
		} else {
			w.territories[a.Territory]--
		}
	}
	w.accountIDs = append(w.accountIDs[:idx], w.accountIDs[idx+1:]...)
	delete(l.ownerOf, a.ID)
	return nil
}

// Workload returns the live workload for a rep. The second return is
// false for reps the ledger does not know; callers must treat that as
// disqualifying, never as zero load.
func (l *Ledger) Workload(repID string) (*Workload, bool) {
	w, ok := l.workloads[repID]
	return w, ok
}

// HolderOf returns the rep currently holding the account, if any.
func (l *Ledger) HolderOf(accountID string) (string, bool) {
	repID, ok := l.ownerOf[accountID]
	return repID, ok
}

// RepIDs returns the rep ids in their original input order.
func (l *Ledger) RepIDs() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Snapshot returns immutable copies of every workload in rep input
// order.
func (l *Ledger) Snapshot() []WorkloadSnapshot {
	out := make([]WorkloadSnapshot, 0, len(l.order))
	for _, repID := range l.order {
		w := l.workloads[repID]
		territories := make([]string, 0, len(w.territories))
		for t := range w.territories {
			territories = append(territories, t)
		}
		sort.Strings(territories)
		out = append(out, WorkloadSnapshot{
			RepID:        w.RepID,
			TotalARR:     w.TotalARR,
			TotalATR:     w.TotalATR,
			AccountCount: w.AccountCount,
			CRECount:     w.CRECount,
			Tier1Count:   w.Tier1Count,
			Tier2Count:   w.Tier2Count,
			Territories:  territories,
			AccountIDs:   w.AccountIDs(),
		})
	}
	return out
}
