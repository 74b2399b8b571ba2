package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/pkg/daemon"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/pkg/view"
	"github.com/metaoverlayfs/panel/state"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error code to the HTTP status clients see.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidModuleID, errors.ErrCodeConfigInvalid:
		return http.StatusBadRequest
	case errors.ErrCodeModuleNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUpdatePending:
		return http.StatusConflict
	case errors.ErrCodeBridgeUnavailable, errors.ErrCodeDaemonUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	panelErr, ok := errors.As(err)
	if !ok {
		panelErr = errors.Wrap(err, errors.ErrCodeInternal, err.Error())
	}
	status := statusFor(panelErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Warn("Request failed")
	}
	writeJSON(w, status, daemon.ErrorBody{Error: panelErr})
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body")
	}
	return nil
}

// enableAction parses the action path segment of a toggle endpoint.
func enableAction(action string) (bool, error) {
	switch action {
	case "enable":
		return true, nil
	case "disable":
		return false, nil
	}
	return false, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown action %q", action)).
		WithDetail("valid", []string{"enable", "disable"})
}

// handleModules returns the modules view. Without ?filter= the stored
// filter preference applies.
func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	st := s.panel.ViewState(r.URL.Query().Get("q"))
	if raw := r.URL.Query().Get("filter"); raw != "" {
		f, err := view.ParseFilter(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		st.Filter = f
	}
	writeJSON(w, http.StatusOK, s.panel.Snapshot().View(st))
}

func (s *Server) handleModuleAction(w http.ResponseWriter, r *http.Request) {
	enable, err := enableAction(r.PathValue("action"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.panel.ToggleModule(r.Context(), r.PathValue("id"), enable)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.panel.Snapshot().Dashboard())
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.panel.Snapshot().Live)
}

func (s *Server) handleLiveAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	action := r.PathValue("action")

	if action == "apply" {
		out, err := s.panel.LiveApply(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, daemon.ApplyResult{Module: id, Output: out})
		return
	}

	enable, err := enableAction(action)
	if err != nil {
		s.writeError(w, err)
		return
	}
	set, err := s.panel.ToggleLive(r.Context(), id, enable)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// handleRefresh runs a manual refresh, of the active surface unless
// ?surface= names one.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	surface := refresh.Surface(r.URL.Query().Get("surface"))
	if surface == "" {
		surface = s.panel.Surface()
	}
	if surface == "" {
		surface = refresh.Modules
	}
	if !slices.Contains(s.panel.Scheduler().Surfaces(), surface) {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown surface %q", surface)))
		return
	}
	if err := s.panel.Refresh(r.Context(), surface); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, daemon.RefreshResult{
		Surface:    surface,
		Generation: s.panel.Snapshot().Generation,
	})
}

func (s *Server) handleGetSurface(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, daemon.SurfaceBody{Surface: s.panel.Surface()})
}

func (s *Server) handleSetSurface(w http.ResponseWriter, r *http.Request) {
	var body daemon.SurfaceBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.panel.SetSurface(body.Surface); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, daemon.SurfaceBody{Surface: s.panel.Surface()})
}

func (s *Server) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.panel.Prefs())
}

func (s *Server) handleSetPrefs(w http.ResponseWriter, r *http.Request) {
	var patch daemon.PrefsPatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	prefs, err := s.panel.UpdatePrefs(func(p *state.Prefs) { patch.Apply(p) })
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	log := s.panel.Activity()
	text, err := log.Read(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, daemon.LogBody{Path: log.Path(), Log: text})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := s.panel.Activity().Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		s.writeError(w, errors.New(errors.ErrCodeInternal, "config not initialized"))
		return
	}
	writeJSON(w, http.StatusOK, s.runningConfig)
}
