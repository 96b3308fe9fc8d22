// Package api exposes the HTTP surface of the service: note upload, queue
// introspection, offline form snapshots, connectivity status, health probes
// and the Prometheus metrics endpoint.
//
// All domain routes live under /api/v1. Responses are JSON; errors use the
// shape {"error": "<message>"}.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/curanote/curanote/internal/health"
	"github.com/curanote/curanote/internal/observe"
	"github.com/curanote/curanote/internal/offline"
	"github.com/curanote/curanote/internal/patterns"
	"github.com/curanote/curanote/internal/record"
	"github.com/curanote/curanote/internal/remote"
)

// defaultMaxUploadBytes bounds a single audio upload. Voice notes are short;
// 32 MiB fits several minutes of uncompressed WAV.
const defaultMaxUploadBytes = 32 << 20

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithMaxUploadBytes sets the audio upload size limit. Default: 32 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		s.maxUploadBytes = n
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	audio     *offline.AudioQueue
	actions   *offline.ActionQueue
	snapshots *offline.Store
	monitor   *offline.Monitor
	patterns  *patterns.Store
	health    *health.Handler

	maxUploadBytes int64
	logger         *slog.Logger
	metrics        *observe.Metrics
}

// New returns a [Server] over the given queues, snapshot store, connectivity
// monitor, correction pattern store and health handler.
func New(audio *offline.AudioQueue, actions *offline.ActionQueue, snapshots *offline.Store, monitor *offline.Monitor, patternStore *patterns.Store, healthHandler *health.Handler, opts ...Option) *Server {
	s := &Server{
		audio:          audio,
		actions:        actions,
		snapshots:      snapshots,
		monitor:        monitor,
		patterns:       patternStore,
		health:         healthHandler,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         slog.Default(),
		metrics:        observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes builds the router with all middleware and endpoints attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(observe.Middleware(s.metrics))
	r.Use(s.recoverer)

	s.health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/notes", s.handleCreateNote)
		r.Post("/actions", s.handleSubmitAction)

		r.Get("/queue/actions", s.handlePendingActions)
		r.Get("/queue/audio", s.handlePendingAudio)

		r.Put("/snapshots/{id}", s.handlePutSnapshot)
		r.Get("/snapshots/{id}", s.handleGetSnapshot)
		r.Delete("/snapshots/{id}", s.handleDeleteSnapshot)

		r.Post("/corrections", s.handleSubmitCorrection)
		r.Get("/patterns", s.handleListPatterns)

		r.Get("/status", s.handleStatus)
	})

	return r
}

// handleCreateNote accepts a multipart audio upload and stages it on the
// audio queue. Staging never waits for the pipeline: the clip is persisted
// first and processed opportunistically in the background, so the response
// is an immediate 202 even when the backend is unreachable.
func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	residentID := r.FormValue("resident_id")
	if residentID == "" {
		writeError(w, http.StatusBadRequest, "resident_id is required")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading audio upload failed")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "audio file is empty")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	id, err := s.audio.Stage(r.Context(), offline.PendingAudio{
		ResidentID: residentID,
		DraftID:    r.FormValue("draft_id"),
		Audio:      data,
		MimeType:   mimeType,
	})
	if err != nil {
		s.logger.Error("staging audio clip failed", "resident", residentID, "error", err)
		writeError(w, http.StatusInternalServerError, "staging audio clip failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": "staged",
	})
}

// actionRequest is the JSON body of POST /api/v1/actions.
type actionRequest struct {
	Type     remote.ActionType `json:"type"`
	EntityID string            `json:"entityId,omitempty"`
	Payload  json.RawMessage   `json:"payload,omitempty"`
}

// handleSubmitAction submits a care-record mutation. The queue delivers it
// directly when the backend is live and defers it otherwise; both outcomes
// are a 202.
func (s *Server) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Entry mutations may still arrive in the legacy flat-field record shape
	// from older clients. Convert once here so every consumer downstream sees
	// the eight-section shape.
	if req.Type == remote.ActionCreateEntry || req.Type == remote.ActionUpdateEntry {
		req.Payload = normalizeRecordPayload(req.Payload)
	}

	action := offline.PendingAction{
		ID:         uuid.NewString(),
		Type:       req.Type,
		EntityID:   req.EntityID,
		Payload:    req.Payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := s.actions.Submit(r.Context(), action); err != nil {
		if errors.Is(err, offline.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("submitting action failed", "type", req.Type, "error", err)
		writeError(w, http.StatusInternalServerError, "submitting action failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     action.ID,
		"status": "accepted",
	})
}

// normalizeRecordPayload converts a bare care-record payload, legacy or
// current, to the eight-section shape. Payloads that are not a recognisable
// record (wrapped drafts, partial field updates) pass through untouched.
func normalizeRecordPayload(payload json.RawMessage) json.RawMessage {
	rec, err := record.DecodeAny(payload)
	if err != nil {
		return payload
	}
	normalized, err := json.Marshal(rec)
	if err != nil {
		return payload
	}
	return normalized
}

func (s *Server) handlePendingActions(w http.ResponseWriter, r *http.Request) {
	pending, err := s.actions.Pending(r.Context())
	if err != nil {
		s.logger.Error("listing pending actions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing pending actions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(pending),
		"actions": pending,
	})
}

// audioSummary is the queue introspection shape for a staged clip. The raw
// audio bytes stay out of the response.
type audioSummary struct {
	ID         string    `json:"id"`
	ResidentID string    `json:"residentId"`
	DraftID    string    `json:"draftId,omitempty"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int       `json:"sizeBytes"`
	CreatedAt  time.Time `json:"createdAt"`
	Processed  bool      `json:"processed"`
	RetryCount int       `json:"retryCount"`
}

func (s *Server) handlePendingAudio(w http.ResponseWriter, r *http.Request) {
	clips, err := s.audio.Pending(r.Context())
	if err != nil {
		s.logger.Error("listing pending audio failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing pending audio failed")
		return
	}

	summaries := make([]audioSummary, 0, len(clips))
	for _, c := range clips {
		summaries = append(summaries, audioSummary{
			ID:         c.ID,
			ResidentID: c.ResidentID,
			DraftID:    c.DraftID,
			MimeType:   c.MimeType,
			SizeBytes:  len(c.Audio),
			CreatedAt:  c.CreatedAt,
			Processed:  c.Processed,
			RetryCount: c.RetryCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(summaries),
		"audio": summaries,
	})
}

// handlePutSnapshot stores an in-progress form state under the given id so a
// caregiver can resume editing after a crash or restart.
func (s *Server) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading snapshot body failed")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "snapshot body must be valid JSON")
		return
	}

	if err := s.snapshots.Put(r.Context(), offline.KeyspaceSnapshots, id, json.RawMessage(body)); err != nil {
		s.logger.Error("storing snapshot failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "storing snapshot failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "stored"})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var snapshot json.RawMessage
	ok, err := s.snapshots.Get(r.Context(), offline.KeyspaceSnapshots, id, &snapshot)
	if err != nil {
		s.logger.Error("loading snapshot failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "loading snapshot failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(snapshot)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.snapshots.Delete(r.Context(), offline.KeyspaceSnapshots, id); err != nil {
		s.logger.Error("deleting snapshot failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "deleting snapshot failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// correctionRequest is the JSON body of POST /api/v1/corrections: a
// transcript as the pipeline produced it next to the caregiver's manually
// corrected version.
type correctionRequest struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Context   string `json:"context,omitempty"`
}

// handleSubmitCorrection feeds a manual transcript correction into the
// pattern store so future transcriptions pick it up.
func (s *Server) handleSubmitCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Original == "" || req.Corrected == "" {
		writeError(w, http.StatusBadRequest, "original and corrected are required")
		return
	}

	s.patterns.LearnFromTranscription(req.Original, req.Corrected, req.Context)
	s.metrics.PatternsLearned.Add(r.Context(), 1)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "learned"})
}

// handleListPatterns exposes the learned correction patterns for inspection.
func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": s.patterns.Patterns(),
		"terms":    s.patterns.Terms(),
	})
}

// handleStatus reports the connectivity state the monitor last observed.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"online": s.monitor.Online(),
	})
}

// recoverer converts a handler panic into a 500 instead of killing the
// connection.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding response failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
