package api

import (
	"net/http"
	"sync"
	"time"
)

// RunStats tracks daemon run counters for the status endpoint. The
// schedulers record runs; the API only reads.
type RunStats struct {
	mu             sync.Mutex
	started        time.Time
	lastCollection time.Time
	lastEvaluation time.Time
	collectionRuns int
	evaluationRuns int
}

// NewRunStats creates run stats anchored at the current time.
func NewRunStats() *RunStats {
	return &RunStats{started: time.Now().UTC()}
}

// RecordCollection notes a completed collection run.
func (s *RunStats) RecordCollection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCollection = time.Now().UTC()
	s.collectionRuns++
}

// RecordEvaluation notes a completed evaluation run.
func (s *RunStats) RecordEvaluation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEvaluation = time.Now().UTC()
	s.evaluationRuns++
}

type statusResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	Started        string `json:"started"`
	LastCollection string `json:"last_collection,omitempty"`
	LastEvaluation string `json:"last_evaluation,omitempty"`
	CollectionRuns int    `json:"collection_runs"`
	EvaluationRuns int    `json:"evaluation_runs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.stats.mu.Lock()
	resp := statusResponse{
		Status:         "running",
		Uptime:         time.Since(s.stats.started).Round(time.Second).String(),
		Started:        s.stats.started.Format(time.RFC3339),
		CollectionRuns: s.stats.collectionRuns,
		EvaluationRuns: s.stats.evaluationRuns,
	}
	if !s.stats.lastCollection.IsZero() {
		resp.LastCollection = s.stats.lastCollection.Format(time.RFC3339)
	}
	if !s.stats.lastEvaluation.IsZero() {
		resp.LastEvaluation = s.stats.lastEvaluation.Format(time.RFC3339)
	}
	s.stats.mu.Unlock()

	s.writeJSON(w, http.StatusOK, resp)
}
