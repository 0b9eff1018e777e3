package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pagenotes/notehub/internal/bridge"
	"github.com/pagenotes/notehub/internal/notestore"
)

type ServerConfig struct {
	MaxBodyBytes int64
}

// Server is the HTTP surface of the privileged context: a REST view of the
// note store plus the websocket endpoint the Context Bridge upgrades on.
type Server struct {
	store   *notestore.Store
	hub     *bridge.Hub
	cfg     ServerConfig
	metrics http.Handler
}

func NewServer(store *notestore.Store, hub *bridge.Hub) *Server {
	return NewServerWithConfig(store, hub, ServerConfig{})
}

func NewServerWithConfig(store *notestore.Store, hub *bridge.Hub, cfg ServerConfig) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{
		store:   store,
		hub:     hub,
		cfg:     cfg,
		metrics: promhttp.Handler(),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if r.URL.Path == "/metrics" && r.Method == http.MethodGet {
		s.metrics.ServeHTTP(w, r)
		return
	}
	if r.URL.Path == "/v1/bridge" {
		if s.hub == nil {
			writeError(w, http.StatusNotFound, "not_found", "bridge not enabled")
			return
		}
		s.hub.ServeHTTP(w, r)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "v1" && parts[1] == "notes" && r.Method == http.MethodGet:
		s.handleListNotes(w, r)
	case len(parts) == 2 && parts[0] == "v1" && parts[1] == "notes" && r.Method == http.MethodPost:
		s.handleAddNote(w, r)
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "notes" && r.Method == http.MethodDelete:
		s.handleRemoveNote(w, r, parts[2])
	case len(parts) == 2 && parts[0] == "v1" && parts[1] == "pages" && r.Method == http.MethodGet:
		s.handleListPages(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	pageKey := strings.TrimSpace(r.URL.Query().Get("pageKey"))
	if pageKey == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing pageKey query parameter")
		return
	}
	notes, err := s.store.List(r.Context(), pageKey)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if notes == nil {
		notes = []notestore.Note{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pageKey": pageKey, "notes": notes})
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unreadable request body")
		return
	}
	var req struct {
		PageKey string `json:"pageKey"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}
	note, err := s.store.Add(r.Context(), req.PageKey, req.Text)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleRemoveNote(w http.ResponseWriter, r *http.Request, id string) {
	pageKey := strings.TrimSpace(r.URL.Query().Get("pageKey"))
	if pageKey == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing pageKey query parameter")
		return
	}
	removed, err := s.store.Remove(r.Context(), pageKey, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.store.Pages(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if pages == nil {
		pages = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"pages": pages})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notestore.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, notestore.ErrCorruptState):
		writeError(w, http.StatusInternalServerError, "corrupt_state", err.Error())
	case errors.Is(err, notestore.ErrRevisionConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
