// Package monitor HTTP-интерфейс слушателя: метрики, последние данные, отметки, websocket.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"facestream/internal/domain/entity"
	"facestream/internal/log"
)

// State состояние слушателя.
type State interface {
	Latest() (entity.Observation, bool)
	Markers() entity.Markers
	SetMarker(n, value int) error
}

// Summaries источник последней сводки.
type Summaries interface {
	Latest() (entity.Summary, bool)
}

// History сохранённые наблюдения.
type History interface {
	Recent(ctx context.Context, limit int) ([]entity.Observation, error)
}

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 10000
)

// Server HTTP-сервер мониторинга.
type Server struct {
	state     State
	summaries Summaries
	history   History
	hub       *Hub
	metrics   http.Handler
	mux       *http.ServeMux
}

// NewServer собирает маршруты. metrics может быть nil.
func NewServer(state State, summaries Summaries, hub *Hub, metrics http.Handler) *Server {
	s := &Server{state: state, summaries: summaries, hub: hub, metrics: metrics, mux: http.NewServeMux()}

	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}
	s.mux.HandleFunc("GET /api/latest", s.handleLatest)
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/markers", s.handleMarkers)
	s.mux.HandleFunc("POST /api/markers", s.handleSetMarker)
	s.mux.HandleFunc("GET /api/records", s.handleRecords)
	if hub != nil {
		s.mux.Handle("GET /ws", hub)
	}
	return s
}

// WithHistory включает /api/records.
func (s *Server) WithHistory(h History) *Server {
	s.history = h
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe работает до отмены контекста.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})
	defer stop()

	log.Info("monitor listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	obs, ok := s.state.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no records received yet")
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.summaries == nil {
		writeError(w, http.StatusNotFound, "summaries are disabled")
		return
	}
	sum, ok := s.summaries.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no summary yet")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be 1.."+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	obs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		log.Warn("load history", "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if obs == nil {
		obs = []entity.Observation{}
	}
	writeJSON(w, http.StatusOK, obs)
}

type markersResponse struct {
	Markers entity.Markers `json:"markers"`
}

type markerRequest struct {
	Marker int `json:"marker"`
	Value  int `json:"value"`
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, markersResponse{Markers: s.state.Markers()})
}

func (s *Server) handleSetMarker(w http.ResponseWriter, r *http.Request) {
	var req markerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := s.state.SetMarker(req.Marker, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Info("marker changed", "marker", req.Marker, "value", req.Value, "source", "http")
	writeJSON(w, http.StatusOK, markersResponse{Markers: s.state.Markers()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
