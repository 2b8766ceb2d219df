package arbiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bookbalance/backend/internal/models"
)

type HTTPReviewer struct {
	BaseURL string
	Client  *http.Client
}

type reviewItem struct {
	AccountID       string   `json:"account_id"`
	ProposedOwnerID string   `json:"proposed_owner_id"`
	AssignmentType  string   `json:"assignment_type"`
	Rationale       string   `json:"rationale"`
	Score           *float64 `json:"score,omitempty"`
}

type requestBody struct {
	Proposals []reviewItem `json:"proposals"`
}

type responseBody struct {
	Decisions []Decision `json:"decisions"`
}

func (h *HTTPReviewer) ReviewBatch(ctx context.Context, proposals []models.Proposal) ([]Decision, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 30 * time.Second}
	}

	payload := requestBody{}
	for _, p := range proposals {
		payload.Proposals = append(payload.Proposals, reviewItem{
			AccountID:       p.AccountID,
			ProposedOwnerID: p.ProposedOwnerID,
			AssignmentType:  string(p.AssignmentType),
			Rationale:       p.Rationale,
			Score:           p.Score,
		})
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/review", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("arbiter service error")
	}

	var body responseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Decisions, nil
}
