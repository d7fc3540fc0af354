package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testPubkey = "02aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"

func TestHTTPClient_NodeStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/api/v1/nodes/" + testPubkey + "/stats"
		if r.URL.Path != wantPath {
			t.Errorf("expected path %s, got %s", wantPath, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key123" {
			t.Errorf("expected bearer token, got %q", got)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"uptime_percentage": 99.2,
			"rank_by_capacity":  412,
			"rank_by_channels":  388,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key123")
	stats, err := client.NodeStats(context.Background(), testPubkey)
	if err != nil {
		t.Fatalf("NodeStats: %v", err)
	}

	if stats.UptimePercentage != 99.2 {
		t.Errorf("expected uptime 99.2, got %f", stats.UptimePercentage)
	}
	if stats.RankByCapacity != 412 {
		t.Errorf("expected capacity rank 412, got %d", stats.RankByCapacity)
	}
}

func TestHTTPClient_NodeStatsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown node", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")
	if _, err := client.NodeStats(context.Background(), testPubkey); err == nil {
		t.Fatal("expected error on 404")
	}
}
