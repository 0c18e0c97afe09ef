// Package gateway exposes the bridge's boundary interfaces over HTTP:
// the classifier for task sources, request submission, and read-only
// status snapshots.
package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anvil/offbridge/internal/bridge"
	"github.com/anvil/offbridge/internal/catalog"
	"github.com/anvil/offbridge/internal/classify"
	"github.com/anvil/offbridge/internal/persistence"
	"github.com/anvil/offbridge/internal/task"
)

// Config holds gateway settings.
type Config struct {
	BindAddr  string
	AuthToken string // optional bearer token; empty disables auth
	Logger    *slog.Logger
}

// Server serves the bridge API.
type Server struct {
	bridge     *bridge.Bridge
	classifier *classify.Classifier
	catalog    *catalog.Catalog
	store      *persistence.Store // optional history endpoint
	cfg        Config
	logger     *slog.Logger

	httpServer *http.Server
}

// NewServer creates a gateway server around the bridge.
func NewServer(b *bridge.Bridge, cls *classify.Classifier, cat *catalog.Catalog, store *persistence.Store, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		bridge:     b,
		classifier: cls,
		catalog:    cat,
		store:      store,
		cfg:        cfg,
		logger:     logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/catalog", s.handleCatalog)
	mux.HandleFunc("/api/v1/capability", s.handleCapability)
	mux.HandleFunc("/api/v1/classify", s.handleClassify)
	mux.HandleFunc("/api/v1/submit", s.handleSubmit)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/maintenance", s.handleMaintenance)
	return mux
}

// Start runs the HTTP server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.BindAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("gateway listening", "addr", s.cfg.BindAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// authorize checks the bearer token when auth is configured.
// /healthz is always open.
func (s *Server) authorize(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimPrefix(header, prefix)
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) == 1
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	rep := s.bridge.Report()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      string(rep.Status),
		"active":      rep.ActiveCount,
		"queue_depth": rep.QueueDepth,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, s.bridge.Report())
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	type moduleJSON struct {
		ID          string   `json:"id"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	mods := s.catalog.Modules()
	out := make([]moduleJSON, 0, len(mods))
	for _, m := range mods {
		out = append(out, moduleJSON{ID: m.ID, Description: m.Description, Tags: m.Tags})
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": out})
}

func (s *Server) handleCapability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		http.Error(w, `{"error":"tag query parameter is required"}`, http.StatusBadRequest)
		return
	}
	mods := s.catalog.Lookup(tag)
	ids := make([]string, 0, len(mods))
	for _, m := range mods {
		ids = append(ids, m.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tag":     tag,
		"has":     len(ids) > 0,
		"modules": ids,
	})
}

type classifyRequest struct {
	TaskText             string   `json:"task_text"`
	ComplexityScore      float64  `json:"complexity_score"`
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	decision := s.classifier.Classify(req.TaskText, req.ComplexityScore, req.RequiredCapabilities)
	writeJSON(w, http.StatusOK, map[string]any{
		"should_delegate":   decision.ShouldDelegate,
		"reason":            string(decision.Reason),
		"modules":           decision.Modules,
		"estimated_time_ms": decision.EstimatedTime.Milliseconds(),
		"confidence":        decision.Confidence,
	})
}

type submitRequest struct {
	Module         string `json:"module"`
	Operation      string `json:"operation"`
	Args           []any  `json:"args,omitempty"`
	Priority       string `json:"priority,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.Module == "" || req.Operation == "" {
		http.Error(w, `{"error":"module and operation are required"}`, http.StatusBadRequest)
		return
	}
	if _, ok := s.catalog.Get(req.Module); !ok {
		http.Error(w, `{"error":"unknown module"}`, http.StatusBadRequest)
		return
	}

	priority := task.ParsePriority(req.Priority)
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	dr := task.NewRequest(req.Module, req.Operation, req.Args, timeout, priority)
	execCtx := task.DefaultExecContext(priority)

	id, err := s.bridge.Submit(dr, execCtx, nil)
	if err != nil {
		s.logger.Warn("submit rejected", "module", req.Module, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"request_id": id,
		"priority":   priority.String(),
	})
}

type maintenanceRequest struct {
	On bool `json:"on"`
}

// handleMaintenance toggles maintenance mode: dispatch pauses while
// set, submissions keep queueing.
func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req maintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	s.bridge.SetMaintenance(req.On)
	s.logger.Info("maintenance mode toggled", "on", req.On)
	writeJSON(w, http.StatusOK, map[string]any{
		"maintenance": req.On,
		"status":      string(s.bridge.Status()),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if s.store == nil {
		http.Error(w, `{"error":"history not available"}`, http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := s.store.RecentHistory(r.Context(), limit)
	if err != nil {
		s.logger.Error("query history", "error", err)
		http.Error(w, `{"error":"history query failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
