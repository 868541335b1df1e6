package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"heartrisk/artifact"
	"heartrisk/dataset"
	"heartrisk/db"
	"heartrisk/ml"
	"heartrisk/monitoring"
	"heartrisk/pipeline"
	"heartrisk/risk"
)

var errNoModel = errors.New("no model bundle is loaded")

// AuditStore is the persistence the API reads history from and writes
// predictions to.
type AuditStore interface {
	SavePrediction(ctx context.Context, p db.PredictionLog) error
	RecentPredictions(ctx context.Context, limit int) ([]db.PredictionLog, error)
	RecentTrainingRuns(ctx context.Context, limit int) ([]db.TrainingRun, error)
}

// Handler serves the assessment API. The active predictor is swapped as a
// whole, so a request keeps the bundle it started with.
type Handler struct {
	predictor atomic.Pointer[pipeline.Predictor]
	audit     AuditStore
	cache     *predictionCache
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	started   time.Time
}

type HandlerOption func(*Handler)

func WithAuditStore(s AuditStore) HandlerOption {
	return func(h *Handler) { h.audit = s }
}

func WithMetrics(m *monitoring.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithCheckOrigin overrides the websocket origin check.
func WithCheckOrigin(check func(r *http.Request) bool) HandlerOption {
	return func(h *Handler) { h.upgrader.CheckOrigin = check }
}

// NewHandler returns a handler with a prediction cache of cacheSize
// entries. Zero disables the cache.
func NewHandler(cacheSize int, opts ...HandlerOption) (*Handler, error) {
	cache, err := newPredictionCache(cacheSize)
	if err != nil {
		return nil, err
	}
	h := &Handler{
		cache:   cache,
		started: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, o := range opts {
		o(h)
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.metrics == nil {
		h.metrics = monitoring.NewMetrics()
	}
	return h, nil
}

// SetPredictor installs p as the active predictor.
func (h *Handler) SetPredictor(p *pipeline.Predictor) {
	h.predictor.Store(p)
	if p != nil {
		h.logger.Info("serving model bundle", zap.String("run_id", p.RunID()))
	}
}

func (h *Handler) Predictor() *pipeline.Predictor {
	return h.predictor.Load()
}

func (h *Handler) Metrics() *monitoring.Metrics {
	return h.metrics
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/schema", h.handleSchema)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/training/runs", h.handleTrainingRuns)
	mux.HandleFunc("GET /api/predictions", h.handlePredictions)
	mux.HandleFunc("GET /api/ws/assess", h.handleAssessWS)
	mux.Handle("GET /metrics", h.metrics.Handler())
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"model_loaded":   false,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	}
	if p := h.predictor.Load(); p != nil {
		resp["model_loaded"] = true
		resp["run_id"] = p.RunID()
		resp["trained_at"] = p.Bundle().CreatedAt
	}
	respondJSON(w, http.StatusOK, resp)
}

type schemaField struct {
	dataset.Field
	Codes map[string]int `json:"codes,omitempty"`
}

// handleSchema describes the input form. With a bundle loaded the category
// lists come from the fitted encoders.
func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	var encoders *ml.EncoderBank
	resp := map[string]any{}
	if p := h.predictor.Load(); p != nil {
		encoders = p.Bundle().Encoders
		resp["run_id"] = p.RunID()
	}
	fields := make([]schemaField, 0, len(dataset.Fields()))
	for _, f := range dataset.Fields() {
		sf := schemaField{Field: f}
		if encoders != nil {
			if enc, ok := encoders.Encoder(f.Name); ok {
				sf.Categories = enc.Classes()
				sf.Codes = enc.Mapping()
			}
		}
		fields = append(fields, sf)
	}
	resp["fields"] = fields
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw dataset.RawRecord
	if err := dec.Decode(&raw); err != nil || raw == nil {
		writeError(w, http.StatusBadRequest, apiError{Error: "request body must be a JSON object of feature values", Kind: "bad_request"})
		return
	}

	assessment, err := h.assess(r.Context(), raw)
	if err != nil {
		status, body := classify(err)
		body.RequestID = GetRequestID(r.Context())
		writeError(w, status, body)
		return
	}
	respondJSON(w, http.StatusOK, predictResponse{RequestID: GetRequestID(r.Context()), Assessment: assessment})
}

type predictResponse struct {
	RequestID string `json:"request_id,omitempty"`
	risk.Assessment
}

// assess runs one record through the active predictor and records it.
func (h *Handler) assess(ctx context.Context, raw dataset.RawRecord) (risk.Assessment, error) {
	p := h.predictor.Load()
	if p == nil {
		h.metrics.ObserveError("no_model")
		return risk.Assessment{}, errNoModel
	}

	start := time.Now()
	// The cache is consulted only for records that parse completely.
	rec, err := dataset.ParseRecord(raw)
	if err != nil {
		kind, _ := errorKind(err)
		h.metrics.ObserveError(kind)
		return risk.Assessment{}, err
	}
	pred, hit := h.cache.Get(p.RunID(), rec)
	if h.cache != nil {
		h.metrics.ObserveCache(hit)
	}
	if !hit {
		pred, err = p.PredictRisk(raw)
		if err != nil {
			kind, _ := errorKind(err)
			h.metrics.ObserveError(kind)
			return risk.Assessment{}, err
		}
		h.cache.Add(p.RunID(), rec, pred)
	}
	h.metrics.ObservePrediction(pred.Label, time.Since(start))
	h.record(ctx, raw, pred)
	return risk.Assess(pred), nil
}

func (h *Handler) record(ctx context.Context, raw dataset.RawRecord, pred *pipeline.Prediction) {
	if h.audit == nil {
		return
	}
	input, err := json.Marshal(raw)
	if err != nil {
		h.logger.Warn("encode prediction input", zap.Error(err))
		return
	}
	entry := db.PredictionLog{
		RequestID: GetRequestID(ctx),
		RunID:     pred.RunID,
		Label:     pred.Label,
		P0:        pred.P0,
		P1:        pred.P1,
		Input:     string(input),
		CreatedAt: time.Now(),
	}
	if err := h.audit.SavePrediction(ctx, entry); err != nil {
		h.logger.Warn("failed to audit prediction", zap.String("run_id", pred.RunID), zap.Error(err))
	}
}

func (h *Handler) handleTrainingRuns(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, apiError{Error: "training log is not configured", Kind: "unavailable"})
		return
	}
	runs, err := h.audit.RecentTrainingRuns(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.Error("query training runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, apiError{Error: "failed to read training log", Kind: "internal"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, apiError{Error: "prediction audit is not configured", Kind: "unavailable"})
		return
	}
	preds, err := h.audit.RecentPredictions(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.Error("query predictions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, apiError{Error: "failed to read predictions", Kind: "internal"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"predictions": preds})
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 20
	}
	return limit
}

type apiError struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Column    string `json:"column,omitempty"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// errorKind names the failure class of err and the column it concerns.
func errorKind(err error) (string, string) {
	var (
		unknown  *ml.UnknownCategoryError
		missing  *dataset.MissingFeatureError
		invalid  *dataset.InvalidValueError
		noBundle *artifact.MissingArtifactError
	)
	switch {
	case errors.Is(err, errNoModel), errors.As(err, &noBundle):
		return "no_model", ""
	case errors.As(err, &unknown):
		return "unknown_category", unknown.Column
	case errors.As(err, &missing):
		return "missing_feature", missing.Column
	case errors.As(err, &invalid):
		return "invalid_value", invalid.Column
	default:
		return "internal", ""
	}
}

// classify maps a pipeline error to a status code and response body.
func classify(err error) (int, apiError) {
	kind, column := errorKind(err)
	body := apiError{Error: err.Error(), Kind: kind, Column: column}
	switch kind {
	case "no_model":
		body.Hint = "run training first"
		return http.StatusServiceUnavailable, body
	case "unknown_category", "missing_feature", "invalid_value":
		return http.StatusBadRequest, body
	default:
		body.Error = "internal server error"
		return http.StatusInternalServerError, body
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, body apiError) {
	respondJSON(w, status, body)
}
