// Package arbiter integrates the AI reviewer that inspects ranked
// proposals and may override them. Batches are retried with exponential
// backoff; a run whose completion rate falls below the floor fails.
package arbiter

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookbalance/backend/internal/models"
)

const (
	ActionAccept   = "accept"
	ActionOverride = "override"

	maxAttempts = 3
	baseBackoff = time.Second

	// Completion-rate floors: small runs must nearly finish, large runs
	// get a little slack.
	smallRunFloor     = 0.95
	largeRunFloor     = 0.90
	smallRunMaxVolume = 500
)

type Decision struct {
	AccountID       string `json:"account_id"`
	Action          string `json:"action"`
	OverrideOwnerID string `json:"override_owner_id,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Reviewer reviews one batch of proposals.
type Reviewer interface {
	ReviewBatch(ctx context.Context, proposals []models.Proposal) ([]Decision, error)
}

// ReviewOutcome summarizes a full review: every decision collected plus
// the fraction of proposals that got one.
type ReviewOutcome struct {
	Decisions      []Decision
	CompletionRate float64
	FailedBatches  int
}

// ReviewAll feeds proposals to the reviewer in fixed-size batches. A
// failed batch is retried up to maxAttempts with exponential backoff
// and then skipped; if too many proposals end up unreviewed the whole
// review fails.
func ReviewAll(ctx context.Context, reviewer Reviewer, proposals []models.Proposal, batchSize int, logger zerolog.Logger) (ReviewOutcome, error) {
	if batchSize < 1 {
		batchSize = 25
	}
	outcome := ReviewOutcome{}
	if len(proposals) == 0 {
		outcome.CompletionRate = 1
		return outcome, nil
	}

	reviewed := 0
	for start := 0; start < len(proposals); start += batchSize {
		end := start + batchSize
		if end > len(proposals) {
			end = len(proposals)
		}
		batch := proposals[start:end]

		decisions, err := reviewWithRetry(ctx, reviewer, batch)
		if err != nil {
			outcome.FailedBatches++
			logger.Warn().Err(err).Int("batch_start", start).Int("batch_size", len(batch)).Msg("arbiter batch failed after retries")
			continue
		}
		outcome.Decisions = append(outcome.Decisions, decisions...)
		reviewed += len(batch)
	}

	outcome.CompletionRate = float64(reviewed) / float64(len(proposals))
	floor := smallRunFloor
	if len(proposals) > smallRunMaxVolume {
		floor = largeRunFloor
	}
	if outcome.CompletionRate < floor {
		return outcome, fmt.Errorf("arbiter review completion rate %.2f below floor %.2f", outcome.CompletionRate, floor)
	}
	return outcome, nil
}

func reviewWithRetry(ctx context.Context, reviewer Reviewer, batch []models.Proposal) ([]Decision, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		decisions, err := reviewer.ReviewBatch(ctx, batch)
		if err == nil {
			return decisions, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
