package territory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HTTPResolver asks an external AI mapping service to name the region
// for a territory. Results are cached for the process lifetime since
// territory names are stable within a snapshot.
type HTTPResolver struct {
	BaseURL string
	Client  *http.Client

	mu    sync.Mutex
	cache map[string]resolved
}

type resolved struct {
	Region     string
	Confidence float64
}

type requestBody struct {
	Territory string `json:"territory"`
}

type responseBody struct {
	Region     string  `json:"region"`
	Confidence float64 `json:"confidence"`
}

func (r *HTTPResolver) Resolve(ctx context.Context, territory string) (string, float64, error) {
	if r.Client == nil {
		r.Client = &http.Client{Timeout: 10 * time.Second}
	}
	key := NormalizeTerritory(territory)

	r.mu.Lock()
	if r.cache == nil {
		r.cache = map[string]resolved{}
	}
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached.Region, cached.Confidence, nil
	}
	r.mu.Unlock()

	b, _ := json.Marshal(requestBody{Territory: territory})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/resolve-territory", bytes.NewReader(b))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("territory service http error: %s", resp.Status)
	}

	var body responseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, err
	}
	if body.Region == "" {
		return "", 0, ErrNotFound
	}

	r.mu.Lock()
	r.cache[key] = resolved{Region: body.Region, Confidence: body.Confidence}
	r.mu.Unlock()

	return body.Region, body.Confidence, nil
}
