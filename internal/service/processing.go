package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bookbalance/backend/internal/arbiter"
	"github.com/bookbalance/backend/internal/config"
	"github.com/bookbalance/backend/internal/db"
	"github.com/bookbalance/backend/internal/engine"
	"github.com/bookbalance/backend/internal/models"
)

const (
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

type ProcessingService struct {
	Store             *db.Store
	Arbiter           arbiter.Reviewer // optional
	Solver            engine.Optimizer // optional
	Cfg               config.Config
	TerritoryMappings map[string]string
	Logger            zerolog.Logger
}

type RunSummary struct {
	Events  []map[string]any `json:"events"`
	Counts  map[string]any   `json:"counts"`
	Samples []map[string]any `json:"samples,omitempty"`
}

// ProcessBooks rebalances the customer book and the prospect book in
// sequence. Each book is an independent run over a disjoint account
// set with its own thresholds.
func (s *ProcessingService) ProcessBooks(ctx context.Context, debug bool) (RunSummary, error) {
	summary := RunSummary{Counts: map[string]any{}}
	start := time.Now()

	reps, err := s.Store.ListReps(ctx, "", "")
	if err != nil {
		return summary, err
	}

	totalProposals := 0
	totalOverrides := 0
	for _, book := range []struct {
		name       string
		isCustomer bool
		assignType models.AssignmentType
	}{
		{"customer", true, models.AssignmentCustomer},
		{"prospect", false, models.AssignmentProspect},
	} {
		accounts, err := s.Store.GetAccountsForRun(ctx, book.isCustomer)
		if err != nil {
			return summary, err
		}
		if len(accounts) == 0 {
			summary.Events = append(summary.Events, map[string]any{
				"type": "book_skipped", "book": book.name, "message": "no accounts", "time": time.Now().UTC(),
			})
			continue
		}

		orch := &engine.Orchestrator{
			Cfg:       s.EngineConfig(book.isCustomer),
			Logger:    s.Logger.With().Str("book", book.name).Logger(),
			Optimizer: s.Solver,
			Progress: func(p engine.Progress) {
				s.Logger.Info().Str("book", book.name).Str("stage", p.Stage).Int("percent", p.Percent).Msg(p.Message)
			},
		}
		result, err := orch.Run(ctx, accounts, reps)
		if err != nil {
			return summary, fmt.Errorf("balancing %s book: %w", book.name, err)
		}

		for _, stat := range result.PassStats {
			summary.Events = append(summary.Events, map[string]any{
				"type": "pass", "book": book.name, "pass": stat.Name, "moves": stat.Moves, "time": time.Now().UTC(),
			})
		}
		summary.Events = append(summary.Events, map[string]any{
			"type":         "quality",
			"book":         book.name,
			"before_score": result.Before.OverallScore,
			"after_score":  result.After.OverallScore,
			"arr_cv":       result.After.ARR.CV,
			"warnings":     len(result.After.Warnings),
			"time":         time.Now().UTC(),
		})

		proposals := result.Proposals
		overrides := 0
		if s.Arbiter != nil {
			proposals, overrides, err = s.reviewProposals(ctx, accounts, reps, proposals)
			if err != nil {
				return summary, fmt.Errorf("arbiter review for %s book: %w", book.name, err)
			}
			summary.Events = append(summary.Events, map[string]any{
				"type": "arbiter_review", "book": book.name, "overrides": overrides, "time": time.Now().UTC(),
			})
		}

		now := time.Now().UTC()
		for i := range proposals {
			proposals[i].ID = uuid.NewString()
			proposals[i].CreatedAt = now
		}
		if err := s.Store.ReplaceProposals(ctx, string(book.assignType), proposals); err != nil {
			return summary, err
		}

		if debug && len(summary.Samples) < 5 {
			for _, p := range proposals {
				if len(summary.Samples) >= 5 {
					break
				}
				summary.Samples = append(summary.Samples, map[string]any{
					"account_id":    p.AccountID,
					"proposed_to":   p.ProposedOwnerID,
					"rationale":     p.Rationale,
					"conflict_flag": p.ConflictFlag,
				})
			}
		}

		totalProposals += len(proposals)
		totalOverrides += overrides
		summary.Counts[book.name+"_accounts"] = len(accounts)
		summary.Counts[book.name+"_proposals"] = len(proposals)
		summary.Counts[book.name+"_before_score"] = result.Before.OverallScore
		summary.Counts[book.name+"_after_score"] = result.After.OverallScore
	}

	summary.Events = append(summary.Events, map[string]any{
		"type": "db_save", "message": "Proposals saved", "elapsed_ms": time.Since(start).Milliseconds(), "time": time.Now().UTC(),
	})
	summary.Counts["proposals"] = totalProposals
	summary.Counts["arbiter_overrides"] = totalOverrides
	summary.Counts["reps"] = len(reps)
	return summary, nil
}

// reviewProposals sends the run's proposals through the AI arbiter and
// applies accepted overrides. An override that would cross the
// strategic partition, or that names an unknown or inactive rep, is
// dropped with a warning.
func (s *ProcessingService) reviewProposals(ctx context.Context, accounts []models.Account, reps []models.SalesRep, proposals []models.Proposal) ([]models.Proposal, int, error) {
	outcome, err := arbiter.ReviewAll(ctx, s.Arbiter, proposals, s.Cfg.ArbiterBatchSize, s.Logger)
	if err != nil {
		return nil, 0, err
	}

	repByID := make(map[string]models.SalesRep, len(reps))
	for _, r := range reps {
		repByID[r.RepID] = r
	}
	accountByID := make(map[string]models.Account, len(accounts))
	for _, a := range accounts {
		accountByID[a.ID] = a
	}
	byAccount := make(map[string]int, len(proposals))
	for i, p := range proposals {
		byAccount[p.AccountID] = i
	}

	overrides := 0
	for _, d := range outcome.Decisions {
		if d.Action != arbiter.ActionOverride || d.OverrideOwnerID == "" {
			continue
		}
		idx, ok := byAccount[d.AccountID]
		if !ok {
			continue
		}
		rep, ok := repByID[d.OverrideOwnerID]
		if !ok || !rep.Assignable() {
			s.Logger.Warn().Str("account", d.AccountID).Str("rep", d.OverrideOwnerID).Msg("arbiter override names unusable rep, dropped")
			continue
		}
		account := accountByID[d.AccountID]
		if ownerStrategic(account, reps) != rep.IsStrategicRep {
			s.Logger.Warn().Str("account", d.AccountID).Str("rep", d.OverrideOwnerID).Msg("arbiter override crosses strategic partition, dropped")
			continue
		}
		proposals[idx].ProposedOwnerID = rep.RepID
		proposals[idx].ProposedOwnerName = rep.Name
		proposals[idx].Rationale = "arbiter override: " + d.Reason
		overrides++
	}
	return proposals, overrides, nil
}

// EngineConfig maps the flat service configuration to per-book engine
// thresholds.
func (s *ProcessingService) EngineConfig(isCustomer bool) engine.Config {
	cfg := engine.Config{
		MinAccountsPerRep:        s.Cfg.MinAccountsPerRep,
		MaxCREPerRep:             s.Cfg.MaxCREPerRep,
		ContinuityDays:           s.Cfg.ContinuityDays,
		PreferGeographicMatch:    s.Cfg.PreferGeographicMatch,
		PreferContinuity:         s.Cfg.PreferContinuity,
		RenewalSpecialistRouting: s.Cfg.RenewalSpecialistRouting,
		RSMaxARR:                 decimal.NewFromFloat(s.Cfg.RSMaxARR),
		TerritoryMappings:        s.TerritoryMappings,
	}
	if isCustomer {
		cfg.MinARR = decimal.NewFromFloat(s.Cfg.CustomerMinARR)
		cfg.TargetARR = decimal.NewFromFloat(s.Cfg.CustomerTargetARR)
		cfg.MaxARR = decimal.NewFromFloat(s.Cfg.CustomerMaxARR)
	} else {
		cfg.MinARR = decimal.NewFromFloat(s.Cfg.ProspectMinARR)
		cfg.TargetARR = decimal.NewFromFloat(s.Cfg.ProspectTargetARR)
		cfg.MaxARR = decimal.NewFromFloat(s.Cfg.ProspectMaxARR)
	}
	return cfg
}

func ownerStrategic(account models.Account, reps []models.SalesRep) bool {
	if account.OwnerID == nil {
		return false
	}
	for _, r := range reps {
		if r.RepID == *account.OwnerID {
			return r.IsStrategicRep
		}
	}
	return false
}
