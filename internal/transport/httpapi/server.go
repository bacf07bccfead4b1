// Package httpapi exposes the engine over a JSON HTTP API for the analyst
// frontend. Handlers are thin: they decode the request, call one engine
// operation, and return the resulting state snapshot so the frontend never
// diverges from the engine's view.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jpl-safedocs/file-observatory/internal/configstore"
	"github.com/jpl-safedocs/file-observatory/internal/download"
	"github.com/jpl-safedocs/file-observatory/internal/engine"
	"github.com/jpl-safedocs/file-observatory/internal/geo"
	"github.com/jpl-safedocs/file-observatory/internal/logger"
	"github.com/jpl-safedocs/file-observatory/internal/query"
)

// Server routes HTTP requests to engine operations. Request-path failures
// are logged through the request-scoped logger installed by the logging
// middleware.
type Server struct {
	engine    *Engine
	downloads *download.Resolver
	configs   configstore.Store
}

// Engine is the subset of engine behavior the HTTP layer depends on.
type Engine = engine.Engine

// NewServer creates the HTTP API server. The config store may be nil when
// persistence is not configured; the download resolver may be nil when no
// download mode is configured.
func NewServer(eng *Engine, downloads *download.Resolver, configs configstore.Store) *Server {
	return &Server{
		engine:    eng,
		downloads: downloads,
		configs:   configs,
	}
}

// Routes mounts all handlers on a chi router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.GetState)
		r.Post("/search", s.Search)
		r.Post("/query", s.DirectQuery)
		r.Post("/filters", s.SetFilters)
		r.Post("/window", s.RequestWindow)
		r.Post("/sort", s.SetSort)
		r.Post("/index", s.SwitchIndex)
		r.Post("/schema/refresh", s.RefreshSchema)
		r.Post("/aggregations", s.FetchAggregations)
		r.Get("/aggregations/lookup", s.ValueLookup)
		r.Post("/geo/viewport", s.SetViewport)
		r.Post("/sigterms", s.FetchSigTerms)
		r.Post("/samples", s.FetchSamples)
		r.Post("/download", s.ResolveDownloads)
		r.Post("/download/random", s.RandomDownload)
		r.Get("/config/export", s.ExportConfig)
		r.Post("/config/import", s.ImportConfig)
		r.Post("/config/save", s.SaveConfig)
		r.Post("/config/load", s.LoadConfig)
	})
}

// GetState handles GET /api/v1/state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.State())
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if err := s.engine.Search(r.Context(), req.Text); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// DirectQuery handles POST /api/v1/query. The body is the raw query payload
// submitted by the analyst's query editor.
func (s *Server) DirectQuery(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if err := s.engine.SetDirectQuery(r.Context(), raw); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// SetFilters handles POST /api/v1/filters.
func (s *Server) SetFilters(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filters []query.Filter `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if err := s.engine.SetFilters(r.Context(), req.Filters); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// RequestWindow handles POST /api/v1/window.
func (s *Server) RequestWindow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Skip int `json:"skip"`
		Take int `json:"take"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Skip < 0 || req.Take <= 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "skip must be >= 0 and take > 0")
		return
	}
	if err := s.engine.RequestWindow(r.Context(), req.Skip, req.Take); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// SetSort handles POST /api/v1/sort.
func (s *Server) SetSort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sort []map[string]string `json:"sort"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if err := s.engine.SetSort(r.Context(), req.Sort); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// SwitchIndex handles POST /api/v1/index.
func (s *Server) SwitchIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index string `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Index == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "index is required")
		return
	}
	if err := s.engine.SwitchIndexConfig(r.Context(), req.Index); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// RefreshSchema handles POST /api/v1/schema/refresh.
func (s *Server) RefreshSchema(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.FetchSchema(r.Context()); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// FetchAggregations handles POST /api/v1/aggregations. An empty field list
// defaults to the configured filter list.
func (s *Server) FetchAggregations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fields []string `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	fields := req.Fields
	if len(fields) == 0 {
		fields = s.engine.State().FilterList
	}
	if err := s.engine.FetchAggregations(r.Context(), fields, nil); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// ValueLookup handles GET /api/v1/aggregations/lookup.
func (s *Server) ValueLookup(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	term := r.URL.Query().Get("term")
	if field == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "field is required")
		return
	}
	values, err := s.engine.FetchValueLookup(r.Context(), field, term)
	if err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": values})
}

// SetViewport handles POST /api/v1/geo/viewport.
func (s *Server) SetViewport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopLeft     [2]float64 `json:"topLeft"` // lon, lat
		BottomRight [2]float64 `json:"bottomRight"`
		Zoom        int        `json:"zoom"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	vp := geo.Viewport{
		TopLeft:     []float64{req.TopLeft[0], req.TopLeft[1]},
		BottomRight: []float64{req.BottomRight[0], req.BottomRight[1]},
		Zoom:        req.Zoom,
	}
	if err := s.engine.FetchGeoBins(r.Context(), vp); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// FetchSigTerms handles POST /api/v1/sigterms.
func (s *Server) FetchSigTerms(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.FetchSigTerms(r.Context()); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// FetchSamples handles POST /api/v1/samples.
func (s *Server) FetchSamples(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fields []string `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	docs, err := s.engine.FetchSamples(r.Context(), req.Fields)
	if err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": docs})
}

// ResolveDownloads handles POST /api/v1/download.
func (s *Server) ResolveDownloads(w http.ResponseWriter, r *http.Request) {
	if s.downloads == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "no download mode configured")
		return
	}
	var req struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "paths is required")
		return
	}
	targets, err := s.downloads.Resolve(req.Paths)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": targets})
}

// RandomDownload handles POST /api/v1/download/random.
func (s *Server) RandomDownload(w http.ResponseWriter, r *http.Request) {
	if s.downloads == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "no download mode configured")
		return
	}
	var req struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Count <= 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "count must be positive")
		return
	}
	if s.engine.State().DownloadPathField == "" {
		writeError(w, http.StatusNotImplemented, "not_configured", "no download path field configured")
		return
	}
	paths, err := s.engine.RandomDownloadPaths(r.Context(), req.Count)
	if err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	targets, err := s.downloads.Resolve(paths)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": targets})
}

// ExportConfig handles GET /api/v1/config/export.
func (s *Server) ExportConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.ExportConfig()
	w.Header().Set("Content-Disposition", `attachment; filename="observatory-config.json"`)
	writeJSON(w, http.StatusOK, cfg)
}

// ImportConfig handles POST /api/v1/config/import.
func (s *Server) ImportConfig(w http.ResponseWriter, r *http.Request) {
	var cfg engine.FullConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid config document: "+err.Error())
		return
	}
	if cfg.Index == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "config document has no index")
		return
	}
	if err := s.engine.ImportConfig(r.Context(), cfg); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// SaveConfig handles POST /api/v1/config/save.
func (s *Server) SaveConfig(w http.ResponseWriter, r *http.Request) {
	if s.configs == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "no config store configured")
		return
	}
	cfg := s.engine.ExportConfig()
	if err := s.configs.Save(r.Context(), cfg); err != nil {
		logger.FromContext(r.Context()).Error("config save failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// LoadConfig handles POST /api/v1/config/load: loads the persisted
// configuration document and imports it.
func (s *Server) LoadConfig(w http.ResponseWriter, r *http.Request) {
	if s.configs == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "no config store configured")
		return
	}
	cfg, err := s.configs.Load(r.Context())
	if err != nil {
		if errors.Is(err, configstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no saved configuration")
			return
		}
		logger.FromContext(r.Context()).Error("config load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	if err := s.engine.ImportConfig(r.Context(), cfg); err != nil {
		s.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	st := s.engine.State()
	status := "ok"
	httpStatus := http.StatusOK
	if st.Index != "" && !st.ValidIndex {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status":     status,
		"index":      st.Index,
		"validIndex": st.ValidIndex,
	})
}

func (s *Server) handleEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, query.ErrNotSubmittable):
		writeError(w, http.StatusBadRequest, "not_submittable", err.Error())
	case errors.Is(err, engine.ErrNoEndpoint):
		writeError(w, http.StatusServiceUnavailable, "no_endpoint", err.Error())
	default:
		logger.FromContext(r.Context()).Warn("store operation failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "store_error", "document store request failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
