// Package solver implements the exact-solver collaborator: an external
// linear-programming service the orchestrator may route the variance
// sub-problem to instead of the heuristic balancing pass.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookbalance/backend/internal/engine"
	"github.com/bookbalance/backend/internal/models"
)

// HTTPSolver speaks a plain JSON contract with the LP service.
type HTTPSolver struct {
	BaseURL string
	Client  *http.Client
}

type optimizationAccount struct {
	ID  string          `json:"id"`
	ARR decimal.Decimal `json:"arr"`
	ATR decimal.Decimal `json:"atr"`
}

type optimizationRep struct {
	RepID       string          `json:"rep_id"`
	CurrentARR  decimal.Decimal `json:"current_arr"`
	CurrentATR  decimal.Decimal `json:"current_atr"`
	Utilization float64         `json:"utilization"`
}

type requestBody struct {
	Accounts []optimizationAccount `json:"accounts"`
	Reps     []optimizationRep     `json:"reps"`
	Bounds   engine.Bounds         `json:"bounds"`
}

func (s *HTTPSolver) Optimize(ctx context.Context, accounts []models.Account, workloads []engine.WorkloadSnapshot, bounds engine.Bounds) (engine.OptimizeResult, error) {
	if s.Client == nil {
		s.Client = &http.Client{Timeout: 60 * time.Second}
	}

	payload := requestBody{Bounds: bounds}
	for _, a := range accounts {
		payload.Accounts = append(payload.Accounts, optimizationAccount{ID: a.ID, ARR: a.ARR, ATR: a.ATR})
	}
	target := bounds.TargetARR.InexactFloat64()
	for _, w := range workloads {
		utilization := 0.0
		if target > 0 {
			utilization = w.TotalARR.InexactFloat64() / target
		}
		payload.Reps = append(payload.Reps, optimizationRep{
			RepID:       w.RepID,
			CurrentARR:  w.TotalARR,
			CurrentATR:  w.TotalATR,
			Utilization: utilization,
		})
	}

	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/optimize", bytes.NewReader(b))
	if err != nil {
		return engine.OptimizeResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return engine.OptimizeResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return engine.OptimizeResult{}, errors.New("solver service error")
	}

	var result engine.OptimizeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return engine.OptimizeResult{}, err
	}
	switch result.Status {
	case engine.OptimizeOptimal, engine.OptimizeInfeasible, engine.OptimizeError:
	default:
		return engine.OptimizeResult{}, errors.New("solver returned unknown status")
	}
	return result, nil
}
