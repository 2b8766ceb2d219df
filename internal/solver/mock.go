package solver

import (
	"context"

	"github.com/bookbalance/backend/internal/engine"
	"github.com/bookbalance/backend/internal/models"
)

// MockSolver returns a canned result. Useful for local runs without an
// LP service.
type MockSolver struct {
	Status      string
	Assignments []engine.OptimizedAssignment
	Err         error
}

func (m MockSolver) Optimize(ctx context.Context, accounts []models.Account, workloads []engine.WorkloadSnapshot, bounds engine.Bounds) (engine.OptimizeResult, error) {
	if m.Err != nil {
		return engine.OptimizeResult{}, m.Err
	}
	status := m.Status
	if status == "" {
		status = engine.OptimizeInfeasible
	}
	return engine.OptimizeResult{Status: status, Assignments: m.Assignments}, nil
}
