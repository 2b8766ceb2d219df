package arbiter

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bookbalance/backend/internal/models"
)

type scriptedReviewer struct {
	batches [][]models.Proposal
	err     error
}

func (s *scriptedReviewer) ReviewBatch(ctx context.Context, proposals []models.Proposal) ([]Decision, error) {
	s.batches = append(s.batches, proposals)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Decision, 0, len(proposals))
	for _, p := range proposals {
		out = append(out, Decision{AccountID: p.AccountID, Action: ActionAccept})
	}
	return out, nil
}

func makeProposals(n int) []models.Proposal {
	out := make([]models.Proposal, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Proposal{AccountID: "a" + strconv.Itoa(i), ProposedOwnerID: "r1"})
	}
	return out
}

func TestReviewAllBatches(t *testing.T) {
	reviewer := &scriptedReviewer{}
	outcome, err := ReviewAll(context.Background(), reviewer, makeProposals(55), 25, zerolog.Nop())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(reviewer.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(reviewer.batches))
	}
	if len(reviewer.batches[2]) != 5 {
		t.Fatalf("expected final batch of 5, got %d", len(reviewer.batches[2]))
	}
	if len(outcome.Decisions) != 55 {
		t.Fatalf("expected 55 decisions, got %d", len(outcome.Decisions))
	}
	if outcome.CompletionRate != 1.0 {
		t.Fatalf("expected completion rate 1.0, got %f", outcome.CompletionRate)
	}
}

func TestReviewAllEmpty(t *testing.T) {
	outcome, err := ReviewAll(context.Background(), &scriptedReviewer{}, nil, 25, zerolog.Nop())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if outcome.CompletionRate != 1.0 {
		t.Fatalf("expected completion rate 1.0, got %f", outcome.CompletionRate)
	}
}

func TestReviewAllFloorEnforced(t *testing.T) {
	// A cancelled context makes the retry backoff return immediately, so
	// every batch fails fast and the completion floor trips.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reviewer := &scriptedReviewer{err: errors.New("boom")}
	outcome, err := ReviewAll(ctx, reviewer, makeProposals(10), 25, zerolog.Nop())
	if err == nil {
		t.Fatal("expected floor error")
	}
	if outcome.FailedBatches != 1 {
		t.Fatalf("expected 1 failed batch, got %d", outcome.FailedBatches)
	}
	if outcome.CompletionRate != 0 {
		t.Fatalf("expected completion rate 0, got %f", outcome.CompletionRate)
	}
}

func TestReviewAllDefaultsBatchSize(t *testing.T) {
	reviewer := &scriptedReviewer{}
	if _, err := ReviewAll(context.Background(), reviewer, makeProposals(30), 0, zerolog.Nop()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(reviewer.batches) != 2 {
		t.Fatalf("expected default batch size 25 to yield 2 batches, got %d", len(reviewer.batches))
	}
}

func TestMockReviewerAcceptsAll(t *testing.T) {
	decisions, err := MockReviewer{}.ReviewBatch(context.Background(), makeProposals(5))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(decisions) != 5 {
		t.Fatalf("expected 5 decisions, got %d", len(decisions))
	}
	for _, d := range decisions {
		if d.Action != ActionAccept {
			t.Fatalf("expected accept, got %s", d.Action)
		}
	}
}
