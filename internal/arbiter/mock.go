package arbiter

import (
	"context"

	"github.com/bookbalance/backend/internal/models"
	"github.com/bookbalance/backend/internal/utils"
)

// MockReviewer accepts everything deterministically, flagging a small
// hash-derived sample as overridden-without-target so local runs see
// both decision shapes.
type MockReviewer struct{}

func (MockReviewer) ReviewBatch(ctx context.Context, proposals []models.Proposal) ([]Decision, error) {
	out := make([]Decision, 0, len(proposals))
	for _, p := range proposals {
		d := Decision{AccountID: p.AccountID, Action: ActionAccept}
		if utils.HashStringToUint64(p.AccountID)%23 == 0 {
			d.Reason = "spot-checked"
		}
		out = append(out, d)
	}
	return out, nil
}
