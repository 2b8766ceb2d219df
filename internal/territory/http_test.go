package territory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPResolverResolvesAndCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/resolve-territory" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(responseBody{Region: "EAST", Confidence: 0.9})
	}))
	defer srv.Close()

	resolver := &HTTPResolver{BaseURL: srv.URL}

	region, confidence, err := resolver.Resolve(context.Background(), "NY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if region != "EAST" || confidence != 0.9 {
		t.Fatalf("unexpected result: %s %f", region, confidence)
	}

	// Same territory modulo normalization hits the cache.
	if _, _, err := resolver.Resolve(context.Background(), " ny "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}
}

func TestHTTPResolverEmptyRegionIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(responseBody{})
	}))
	defer srv.Close()

	_, _, err := (&HTTPResolver{BaseURL: srv.URL}).Resolve(context.Background(), "ZZ")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
