package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bikemap/internal/geo"
	"bikemap/internal/station"
	"bikemap/internal/view"
)

// Session is the view state the handlers operate on.
type Session interface {
	Rows(ctx context.Context) ([]view.Row, string, error)
	ApplyKeyword(ctx context.Context, keyword string) ([]view.Row, error)
	PushKeyword(keyword string)
	Reload(ctx context.Context) (station.Collection, error)
	Station(ctx context.Context, sno string) (view.Row, error)
	Suggest(ctx context.Context, query string) ([]station.LabelledStation, error)
	Focus(ctx context.Context, sno string) (bool, error)
	State(ctx context.Context) (view.MapState, error)
}

// PositionSink accepts position reports from the browser.
// Fix and Deny return geo.ErrWatchEnded once reports are no longer
// consumed, and geo.ErrQueueFull when they cannot be queued.
type PositionSink interface {
	Fix(p geo.Point) error
	Deny(reason error) error
}

// Handler serves the station, search and map endpoints.
type Handler struct {
	session   Session
	positions PositionSink
}

// NewHandler creates a handler. positions may be nil when the position
// comes from another source, in which case position reports are rejected.
func NewHandler(s Session, positions PositionSink) *Handler {
	return &Handler{session: s, positions: positions}
}

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

type StationsResponse struct {
	Stations []view.Row `json:"stations"`
	Count    int        `json:"count"`
	Keyword  string     `json:"keyword"`
}

type SuggestionsResponse struct {
	Query       string                    `json:"query"`
	Suggestions []station.LabelledStation `json:"suggestions"`
	Count       int                       `json:"count"`
}

type FocusResponse struct {
	Sno     string `json:"sno"`
	Applied bool   `json:"applied"`
}

type KeywordRequest struct {
	Keyword string `json:"keyword"`
}

type PositionRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type DeniedRequest struct {
	Reason string `json:"reason"`
}

// GetStations handles GET /api/stations. A keyword query parameter filters
// the table immediately; without it the current filter is kept.
func (h *Handler) GetStations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		rows    []view.Row
		keyword string
		err     error
	)
	if q := r.URL.Query(); q.Has("keyword") {
		keyword = q.Get("keyword")
		rows, err = h.session.ApplyKeyword(ctx, keyword)
	} else {
		rows, keyword, err = h.session.Rows(ctx)
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to read stations", err)
		return
	}
	if rows == nil {
		rows = []view.Row{}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, StationsResponse{Stations: rows, Count: len(rows), Keyword: keyword})
}

// PutKeyword handles PUT /api/stations/keyword. The keyword is applied
// after the debounce window.
func (h *Handler) PutKeyword(w http.ResponseWriter, r *http.Request) {
	var req KeywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid keyword body", err)
		return
	}
	h.session.PushKeyword(req.Keyword)
	writeJSON(w, http.StatusAccepted, req)
}

// ReloadStations handles POST /api/stations/reload.
func (h *Handler) ReloadStations(w http.ResponseWriter, r *http.Request) {
	col, err := h.session.Reload(r.Context())
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, station.ErrFetch) {
			status = http.StatusBadGateway
		}
		writeError(w, status, "Failed to load stations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(col.Canonical),
		"filtered": len(col.Filtered),
		"keyword":  col.Keyword,
		"loadedAt": time.Now().UTC(),
	})
}

// GetStation handles GET /api/stations/{sno}.
func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	sno := chi.URLParam(r, "sno")
	row, err := h.session.Station(r.Context(), sno)
	if errors.Is(err, view.ErrUnknownStation) {
		writeError(w, http.StatusNotFound, "Station not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to read station", err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// GetSuggestions handles GET /api/suggestions?q=.
func (h *Handler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	out, err := h.session.Suggest(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to search stations", err)
		return
	}
	if out == nil {
		out = []station.LabelledStation{}
	}
	writeJSON(w, http.StatusOK, SuggestionsResponse{Query: q, Suggestions: out, Count: len(out)})
}

// PostFocus handles POST /api/focus/{sno}. Before the map exists the
// request is accepted and ignored.
func (h *Handler) PostFocus(w http.ResponseWriter, r *http.Request) {
	sno := chi.URLParam(r, "sno")
	applied, err := h.session.Focus(r.Context(), sno)
	switch {
	case errors.Is(err, view.ErrUnknownStation):
		writeError(w, http.StatusNotFound, "Station not found", nil)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to focus station", err)
	case !applied:
		writeJSON(w, http.StatusAccepted, FocusResponse{Sno: sno})
	default:
		writeJSON(w, http.StatusOK, FocusResponse{Sno: sno, Applied: true})
	}
}

// PostPosition handles POST /api/position.
func (h *Handler) PostPosition(w http.ResponseWriter, r *http.Request) {
	if h.positions == nil {
		writeError(w, http.StatusConflict, "Position is not accepted from clients", nil)
		return
	}
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid position body", err)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "latitude and longitude are required", nil)
		return
	}
	p := geo.Point{Lat: *req.Latitude, Lng: *req.Longitude}
	if !p.Valid() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Coordinates out of range",
			Details: map[string]any{"position": p.String()},
		})
		return
	}
	if err := h.positions.Fix(p); err != nil {
		writePositionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostPositionDenied handles POST /api/position/denied.
func (h *Handler) PostPositionDenied(w http.ResponseWriter, r *http.Request) {
	if h.positions == nil {
		writeError(w, http.StatusConflict, "Position is not accepted from clients", nil)
		return
	}
	var req DeniedRequest
	// The body is optional.
	_ = json.NewDecoder(r.Body).Decode(&req)
	var reason error
	if s := strings.TrimSpace(req.Reason); s != "" {
		reason = errors.New(s)
	}
	if err := h.positions.Deny(reason); err != nil {
		writePositionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writePositionError maps a rejected position report. After a denial the
// fallback position is final, so further reports are gone for good.
func writePositionError(w http.ResponseWriter, err error) {
	if errors.Is(err, geo.ErrWatchEnded) {
		writeError(w, http.StatusGone, "Position watch has ended", err)
		return
	}
	writeError(w, http.StatusServiceUnavailable, "Position queue full", err)
}

// GetMap handles GET /api/map.
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.State(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to read map state", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, st)
}

// Health handles GET /health. It reports degraded while no stations are
// loaded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	st, err := h.session.State(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "error",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}
	status, code := "ok", http.StatusOK
	if st.Stations == 0 {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"stations":  st.Stations,
		"summary":   st.Summary,
		"map":       st.State,
		"loadedAt":  st.LoadedAt,
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = map[string]any{"internal": err.Error()}
	}
	writeJSON(w, status, resp)
}
