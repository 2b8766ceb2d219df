package solver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bookbalance/backend/internal/engine"
	"github.com/bookbalance/backend/internal/models"
)

func testBounds() engine.Bounds {
	return engine.Bounds{
		MinARR:    decimal.NewFromInt(100),
		TargetARR: decimal.NewFromInt(150),
		MaxARR:    decimal.NewFromInt(200),
	}
}

func TestHTTPSolverOptimize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/optimize" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Accounts) != 1 || len(body.Reps) != 1 {
			t.Fatalf("unexpected payload: %+v", body)
		}
		if body.Reps[0].Utilization != 1.0 {
			t.Fatalf("expected utilization 1.0, got %f", body.Reps[0].Utilization)
		}
		json.NewEncoder(w).Encode(engine.OptimizeResult{
			Status:      engine.OptimizeOptimal,
			Assignments: []engine.OptimizedAssignment{{AccountID: "a1", RepID: "r1"}},
		})
	}))
	defer srv.Close()

	s := &HTTPSolver{BaseURL: srv.URL}
	accounts := []models.Account{{ID: "a1", ARR: decimal.NewFromInt(150)}}
	workloads := []engine.WorkloadSnapshot{{RepID: "r1", TotalARR: decimal.NewFromInt(150)}}

	result, err := s.Optimize(context.Background(), accounts, workloads, testBounds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != engine.OptimizeOptimal {
		t.Fatalf("expected optimal, got %s", result.Status)
	}
	if len(result.Assignments) != 1 || result.Assignments[0].RepID != "r1" {
		t.Fatalf("unexpected assignments: %+v", result.Assignments)
	}
	if s.Client == nil {
		t.Fatal("expected the lazily built client to be kept")
	}
	first := s.Client
	if _, err := s.Optimize(context.Background(), accounts, workloads, testBounds()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Client != first {
		t.Fatal("expected the client to be reused across calls")
	}
}

func TestHTTPSolverRejectsUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "maybe"})
	}))
	defer srv.Close()

	s := &HTTPSolver{BaseURL: srv.URL}
	if _, err := s.Optimize(context.Background(), nil, nil, testBounds()); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestHTTPSolverServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := &HTTPSolver{BaseURL: srv.URL}
	if _, err := s.Optimize(context.Background(), nil, nil, testBounds()); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestMockSolverDefaultsToInfeasible(t *testing.T) {
	result, err := MockSolver{}.Optimize(context.Background(), nil, nil, testBounds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != engine.OptimizeInfeasible {
		t.Fatalf("expected infeasible, got %s", result.Status)
	}
}
