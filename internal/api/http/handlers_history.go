package apihttp

import (
	"net/http"
	"time"

	"reelengine/internal/domain"
)

type watchPositionResponse struct {
	ItemID    string  `json:"itemId"`
	Index     int     `json:"index"`
	Position  float64 `json:"position"` // seconds
	Duration  float64 `json:"duration"` // seconds
	UpdatedAt string  `json:"updatedAt"`
}

func toWatchPositionResponse(wp domain.WatchPosition) watchPositionResponse {
	return watchPositionResponse{
		ItemID:    string(wp.ItemID),
		Index:     wp.Index,
		Position:  wp.Position.Seconds(),
		Duration:  wp.Duration.Seconds(),
		UpdatedAt: wp.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleRecentHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	if s.viewerStore == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "viewer store not configured")
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
		return
	}
	positions, err := s.viewerStore.RecentPositions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	out := make([]watchPositionResponse, 0, len(positions))
	for _, wp := range positions {
		out = append(out, toWatchPositionResponse(wp))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.viewerStore == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "viewer store not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		settings, found, err := s.viewerStore.GetSettings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
		if !found {
			settings = domain.DefaultViewerSettings()
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var settings domain.ViewerSettings
		if err := decodeJSON(r, &settings); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
			return
		}
		if err := s.viewerStore.SetSettings(r.Context(), settings); err != nil {
			writeError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or PUT")
	}
}
