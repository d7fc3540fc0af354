// Package api exposes the dashboard's HTTP surface: action listing and
// status transitions, node snapshots and features, on-demand evaluation,
// and the AI narrative.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Feustey/lightdash/internal/ai"
	"github.com/Feustey/lightdash/internal/domain"
	"github.com/Feustey/lightdash/internal/ledger"
	"github.com/Feustey/lightdash/internal/normalization"
	"github.com/Feustey/lightdash/internal/observability"
	"github.com/Feustey/lightdash/internal/pipeline"
	"github.com/Feustey/lightdash/internal/storage"
)

// Server wires the HTTP handlers to the ledger, stores and pipeline.
type Server struct {
	ledger        *ledger.Ledger
	snapshotStore storage.SnapshotStore
	runner        *pipeline.Runner
	narrator      *ai.Generator
	metrics       *observability.Metrics
	logger        *zap.Logger

	// pubkeys are the nodes an on-demand evaluation covers.
	pubkeys []string

	stats  *RunStats
	router *mux.Router
}

// Options for creating a Server. Ledger, SnapshotStore and Runner are
// required; Narrator, Metrics and Logger may be nil.
type Options struct {
	Ledger        *ledger.Ledger
	SnapshotStore storage.SnapshotStore
	Runner        *pipeline.Runner
	Narrator      *ai.Generator
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Pubkeys       []string
	Stats         *RunStats
}

// NewServer creates a Server and registers its routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	narrator := opts.Narrator
	if narrator == nil {
		narrator = ai.NewGenerator(nil, logger)
	}
	stats := opts.Stats
	if stats == nil {
		stats = NewRunStats()
	}
	s := &Server{
		ledger:        opts.Ledger,
		snapshotStore: opts.SnapshotStore,
		runner:        opts.Runner,
		narrator:      narrator,
		metrics:       opts.Metrics,
		logger:        logger.Named("api"),
		pubkeys:       opts.Pubkeys,
		stats:         stats,
		router:        mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/actions", s.handleListActions).Methods(http.MethodGet)
	v1.HandleFunc("/actions/{id}/status", s.handleUpdateActionStatus).Methods(http.MethodPost)
	v1.HandleFunc("/nodes/{pubkey}/snapshot", s.handleNodeSnapshot).Methods(http.MethodGet)
	v1.HandleFunc("/nodes/{pubkey}/features", s.handleNodeFeatures).Methods(http.MethodGet)
	v1.HandleFunc("/evaluate", s.handleEvaluate).Methods(http.MethodPost)
	v1.HandleFunc("/narrative", s.handleNarrative).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type actionResponse struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Priority    string  `json:"priority"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toActionResponse(a *domain.Action) actionResponse {
	return actionResponse{
		ID:          a.ID,
		Kind:        string(a.Kind),
		Priority:    string(a.Priority),
		Confidence:  a.Confidence,
		Description: a.Description,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		actions []*domain.Action
		err     error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		actions, err = s.ledger.ListByStatus(ctx, domain.ActionStatus(status))
	} else {
		actions, err = s.ledger.List(ctx)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]actionResponse, 0, len(actions))
	for _, a := range actions {
		out = append(out, toActionResponse(a))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"actions": out})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateActionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	status := domain.ActionStatus(req.Status)
	if err := s.ledger.UpdateStatus(ctx, id, status); err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ActionStatusTransitions.WithLabelValues(string(status)).Inc()
	}

	action, err := s.ledger.Get(ctx, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toActionResponse(action))
}

type snapshotResponse struct {
	Pubkey             string  `json:"pubkey"`
	Alias              string  `json:"alias"`
	TotalCapacity      uint64  `json:"total_capacity"`
	ChannelCount       uint32  `json:"channel_count"`
	ActiveChannelCount uint32  `json:"active_channel_count"`
	TotalLocalBalance  uint64  `json:"total_local_balance"`
	TotalRemoteBalance uint64  `json:"total_remote_balance"`
	TotalFeesEarned    uint64  `json:"total_fees_earned"`
	TotalForwards      uint64  `json:"total_forwards"`
	UptimePercentage   float64 `json:"uptime_percentage"`
	BalanceDiscrepancy int64   `json:"balance_discrepancy"`
	ObservedAt         string  `json:"observed_at"`
}

func (s *Server) handleNodeSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pubkey := mux.Vars(r)["pubkey"]

	if err := normalization.ValidatePubkey(pubkey); err != nil {
		s.writeError(w, err)
		return
	}

	snap, err := s.snapshotStore.Latest(ctx, pubkey)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, snapshotResponse{
		Pubkey:             snap.Pubkey,
		Alias:              snap.Alias,
		TotalCapacity:      snap.TotalCapacity,
		ChannelCount:       snap.ChannelCount,
		ActiveChannelCount: snap.ActiveChannelCount,
		TotalLocalBalance:  snap.TotalLocalBalance,
		TotalRemoteBalance: snap.TotalRemoteBalance,
		TotalFeesEarned:    snap.TotalFeesEarned,
		TotalForwards:      snap.TotalForwards,
		UptimePercentage:   snap.UptimePercentage,
		BalanceDiscrepancy: snap.BalanceDiscrepancy,
		ObservedAt:         snap.ObservedAt.UTC().Format(time.RFC3339),
	})
}

type featuresResponse struct {
	Pubkey                    string   `json:"pubkey"`
	BalanceRatio              float64  `json:"balance_ratio"`
	FeePerForward             float64  `json:"fee_per_forward"`
	AvgChannelUptime          float64  `json:"avg_channel_uptime"`
	LiquidityFlexibilityScore float64  `json:"liquidity_flexibility_score"`
	CapacityTrend             *float64 `json:"capacity_trend"`
	ChannelCountTrend         *float64 `json:"channel_count_trend"`
	FeeTrend                  *float64 `json:"fee_trend"`

	Recommendations []recommendationResponse `json:"recommendations"`
}

type recommendationResponse struct {
	Kind       string  `json:"kind"`
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (s *Server) handleNodeFeatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pubkey := mux.Vars(r)["pubkey"]

	fv, recs, err := s.runner.Evaluate(ctx, pubkey)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := featuresResponse{
		Pubkey:                    fv.Pubkey,
		BalanceRatio:              fv.BalanceRatio,
		FeePerForward:             fv.FeePerForward,
		AvgChannelUptime:          fv.AvgChannelUptime,
		LiquidityFlexibilityScore: fv.LiquidityFlexibilityScore,
		CapacityTrend:             fv.CapacityTrend,
		ChannelCountTrend:         fv.ChannelCountTrend,
		FeeTrend:                  fv.FeeTrend,
		Recommendations:           make([]recommendationResponse, 0, len(recs)),
	}
	for _, rec := range recs {
		out.Recommendations = append(out.Recommendations, recommendationResponse{
			Kind:       string(rec.Kind),
			Priority:   string(rec.Priority),
			Confidence: rec.Confidence,
			Reason:     rec.Reason,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type evaluateResponse struct {
	NodesEvaluated      int      `json:"nodes_evaluated"`
	NodesSkipped        int      `json:"nodes_skipped"`
	Recommendations     int      `json:"recommendations"`
	ActionsCreated      int      `json:"actions_created"`
	ActionsDeduplicated int      `json:"actions_deduplicated"`
	Errors              []string `json:"errors,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := s.runner.Run(ctx, s.pubkeys)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, evaluateResponse{
		NodesEvaluated:      result.NodesEvaluated,
		NodesSkipped:        result.NodesSkipped,
		Recommendations:     result.Recommendations,
		ActionsCreated:      result.ActionsCreated,
		ActionsDeduplicated: result.ActionsDeduplicated,
		Errors:              result.Errors,
	})
}

// narrativeTimeout bounds the AI completion call behind the narrative
// endpoint; the template fallback makes a slow provider a non-event.
const narrativeTimeout = 30 * time.Second

func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), narrativeTimeout)
	defer cancel()

	var snap *domain.NodeSnapshot
	if len(s.pubkeys) > 0 {
		latest, err := s.snapshotStore.Latest(ctx, s.pubkeys[0])
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, err)
			return
		}
		snap = latest
	}

	open, err := s.openActions(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}

	text := s.narrator.Narrative(ctx, snap, open)
	s.writeJSON(w, http.StatusOK, map[string]string{"narrative": text})
}

func (s *Server) openActions(ctx context.Context) ([]*domain.Action, error) {
	pending, err := s.ledger.ListByStatus(ctx, domain.ActionPending)
	if err != nil {
		return nil, err
	}
	inProgress, err := s.ledger.ListByStatus(ctx, domain.ActionInProgress)
	if err != nil {
		return nil, err
	}
	return append(pending, inProgress...), nil
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}

// writeError maps domain and storage errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, normalization.ErrMalformedInput):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
