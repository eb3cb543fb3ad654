package apihttp

import (
	"net/http"
)

func (s *Server) handleViewerState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	index, err := queryInt(r, "index", s.controller.CurrentIndex())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "index must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, s.controller.CurrentPlaybackState(index))
}

type navigateRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	var req navigateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}
	if err := s.controller.RequestNavigate(r.Context(), req.Index); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.CurrentPlaybackState(req.Index))
}

type viewportRequest struct {
	Index    int     `json:"index"`
	Visible  float64 `json:"visible"`
	Dragging bool    `json:"dragging"`
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	var req viewportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}
	s.controller.ReportViewport(req.Index, req.Visible, req.Dragging)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	s.controller.Tap()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTogglePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	s.controller.RequestTogglePlay()
	writeJSON(w, http.StatusOK, s.controller.CurrentPlaybackState(s.controller.CurrentIndex()))
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	s.controller.RequestToggleLike(r.Context())
	w.WriteHeader(http.StatusAccepted)
}

type focusRequest struct {
	Focused bool `json:"focused"`
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	var req focusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}
	s.controller.SetFocus(req.Focused)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	if err := s.controller.Refresh(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.CurrentPlaybackState(s.controller.CurrentIndex()))
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	if s.window == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "window inspection not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.window.Snapshot())
}
