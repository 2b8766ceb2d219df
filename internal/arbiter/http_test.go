package arbiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bookbalance/backend/internal/models"
)

func TestHTTPReviewerReviewBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/review" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Proposals) != 2 {
			t.Fatalf("expected 2 proposals, got %d", len(body.Proposals))
		}
		json.NewEncoder(w).Encode(responseBody{Decisions: []Decision{
			{AccountID: "a1", Action: ActionAccept},
			{AccountID: "a2", Action: ActionOverride, OverrideOwnerID: "r9", Reason: "regional expertise"},
		}})
	}))
	defer srv.Close()

	proposals := []models.Proposal{
		{AccountID: "a1", ProposedOwnerID: "r1", AssignmentType: models.AssignmentCustomer},
		{AccountID: "a2", ProposedOwnerID: "r2", AssignmentType: models.AssignmentCustomer},
	}
	h := &HTTPReviewer{BaseURL: srv.URL}
	decisions, err := h.ReviewBatch(context.Background(), proposals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	if decisions[1].Action != ActionOverride || decisions[1].OverrideOwnerID != "r9" {
		t.Fatalf("unexpected override decision: %+v", decisions[1])
	}
	if h.Client == nil {
		t.Fatal("expected the lazily built client to be kept")
	}
}

func TestHTTPReviewerServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := &HTTPReviewer{BaseURL: srv.URL}
	if _, err := h.ReviewBatch(context.Background(), []models.Proposal{{AccountID: "a1"}}); err == nil {
		t.Fatal("expected error for 500")
	}
}
