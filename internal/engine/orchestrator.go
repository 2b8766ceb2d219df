package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bookbalance/backend/internal/models"
)

// Progress is emitted after each pass. Purely observational; sinks must
// not block.
type Progress struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

type ProgressSink func(Progress)

// Bounds carries the ARR limits handed to an external optimizer.
type Bounds struct {
	MinARR    decimal.Decimal `json:"min_arr"`
	TargetARR decimal.Decimal `json:"target_arr"`
	MaxARR    decimal.Decimal `json:"max_arr"`
}

const (
	OptimizeOptimal    = "optimal"
	OptimizeInfeasible = "infeasible"
	OptimizeError      = "error"
)

type OptimizedAssignment struct {
	AccountID string `json:"account_id"`
	RepID     string `json:"rep_id"`
}

type OptimizeResult struct {
	Status      string                `json:"status"`
	Assignments []OptimizedAssignment `json:"assignments"`
}

// Optimizer is the exact-solver collaborator. A non-optimal status or a
// transport failure never fails the run; the heuristic passes stand.
type Optimizer interface {
	Optimize(ctx context.Context, accounts []models.Account, workloads []WorkloadSnapshot, bounds Bounds) (OptimizeResult, error)
}

// PassStat records the moves committed by one pass.
type PassStat struct {
	Name  string `json:"name"`
	Moves int    `json:"moves"`
}

// Result is the engine's output: one proposal per account, the final
// workloads, and quality metrics before and after.
type Result struct {
	Proposals []models.Proposal  `json:"proposals"`
	Workloads []WorkloadSnapshot `json:"workloads"`
	Before    QualityMetrics     `json:"before"`
	After     QualityMetrics     `json:"after"`
	PassStats []PassStat         `json:"pass_stats"`
	Elapsed   time.Duration      `json:"-"`
}

// Orchestrator runs the passes in their fixed order over one static
// snapshot of accounts and reps. Single-threaded per run; independent
// runs on disjoint books may execute concurrently.
type Orchestrator struct {
	Cfg       Config
	Logger    zerolog.Logger
	Optimizer Optimizer // optional
	Progress  ProgressSink
}

func (o *Orchestrator) Run(ctx context.Context, accounts []models.Account, reps []models.SalesRep) (*Result, error) {
	if err := o.Cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	st := newRunState(o.Cfg, accounts, reps)
	if len(st.reps) == 0 {
		return nil, &NoEligibleRepsError{Pass: "precheck"}
	}

	before := o.scoreCurrentOwnership(st, accounts)

	passes := []Pass{
		GeographicPass{},
		MinimumGuaranteePass{},
		BalancePass{},
		CREPass{},
		ContinuityPass{},
	}
	stages := len(passes)
	if o.Optimizer != nil {
		stages++
	}

	result := &Result{Before: before}
	stage := 0
	for i, pass := range passes {
		// Cancellation is cooperative and checked between passes only;
		// an in-flight pass always completes or aborts whole.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st.passMoves = 0
		if err := pass.Apply(st); err != nil {
			return nil, err
		}
		result.PassStats = append(result.PassStats, PassStat{Name: pass.Name(), Moves: st.passMoves})
		o.Logger.Debug().Str("pass", pass.Name()).Int("moves", st.passMoves).Msg("pass complete")
		stage++
		o.emit(pass.Name(), stage*100/stages, "pass complete")

		// The exact solver, when configured, refines the heuristic
		// balance before risk and continuity run.
		if o.Optimizer != nil && i == 2 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			st.passMoves = 0
			o.runOptimizer(ctx, st)
			result.PassStats = append(result.PassStats, PassStat{Name: "variance_optimization", Moves: st.passMoves})
			stage++
			o.emit("variance_optimization", stage*100/stages, "pass complete")
		}
	}

	for _, id := range st.order {
		result.Proposals = append(result.Proposals, *st.proposals[id])
	}
	result.Workloads = st.ledger.Snapshot()

	after := make(map[string]string, len(st.proposals))
	for id, p := range st.proposals {
		after[id] = p.ProposedOwnerID
	}
	result.After = ScoreQuality(result.Workloads, reps, accounts, after, o.Cfg)
	for _, w := range result.After.Warnings {
		o.Logger.Warn().Str("severity", w.Severity).Msg(w.Message)
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// runOptimizer delegates to the exact solver and applies its
// assignments. Any failure degrades to the heuristic result already in
// the ledger.
func (o *Orchestrator) runOptimizer(ctx context.Context, st *runState) {
	bounds := Bounds{MinARR: o.Cfg.MinARR, TargetARR: o.Cfg.TargetARR, MaxARR: o.Cfg.MaxARR}
	res, err := o.Optimizer.Optimize(ctx, st.accounts, st.ledger.Snapshot(), bounds)
	if err != nil {
		o.Logger.Warn().Err(err).Msg("optimizer unavailable, keeping heuristic balance")
		return
	}
	if res.Status != OptimizeOptimal {
		o.Logger.Warn().Str("status", res.Status).Msg("optimizer returned non-optimal status, keeping heuristic balance")
		return
	}
	for _, oa := range res.Assignments {
		a, ok := st.accountByID[oa.AccountID]
		if !ok {
			continue
		}
		rep, ok := st.repByID[oa.RepID]
		if !ok || !rep.Assignable() || !st.movable(a, rep) {
			continue
		}
		if holder, held := st.ledger.HolderOf(a.ID); held && holder == rep.RepID {
			continue
		}
		if err := st.commit(a, rep, "variance optimization: solver assignment", ""); err != nil {
			o.Logger.Warn().Err(err).Str("account", a.ID).Msg("failed to apply solver assignment")
			return
		}
	}
}

// scoreCurrentOwnership scores the book as it stands before any pass
// touches it.
func (o *Orchestrator) scoreCurrentOwnership(st *runState, accounts []models.Account) QualityMetrics {
	seeded := NewLedger(st.reps)
	seeded.Seed(accounts)
	current := map[string]string{}
	for _, a := range accounts {
		if a.OwnerID != nil {
			if _, ok := seeded.Workload(*a.OwnerID); ok {
				current[a.ID] = *a.OwnerID
			}
		}
	}
	return ScoreQuality(seeded.Snapshot(), st.pool, accounts, current, o.Cfg)
}

func (o *Orchestrator) emit(stage string, percent int, message string) {
	if o.Progress == nil {
		return
	}
	o.Progress(Progress{Stage: stage, Percent: percent, Message: message})
}
