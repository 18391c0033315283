package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/guc-preloader/internal/event"
	"github.com/JakeFAU/guc-preloader/internal/navigation"
	"github.com/JakeFAU/guc-preloader/internal/preload"
	"github.com/JakeFAU/guc-preloader/internal/session"
)

type taskRequest struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

type settleRequest struct {
	Error string `json:"error"`
}

type eventRequest struct {
	Name string `json:"name"`
}

type confirmRequest struct {
	Location string `json:"location"`
}

func (s *Server) createSession(w http.ResponseWriter, _ *http.Request) {
	ctrl := s.sessions.Create()
	view, err := s.sessions.View(ctrl.ID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": view})
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := s.sessions.View(id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": view})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if !s.sessions.Delete(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	taskID, err := s.sessions.AddTask(id, preload.TaskOptions{Name: req.Name, Weight: req.Weight})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id": taskID,
		"weight":  preload.NormalizeWeight(req.Weight),
	})
}

func (s *Server) settleTask(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	taskID, err := uuid.Parse(chi.URLParam(r, "task_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	var cause error
	if req.Error != "" {
		cause = errors.New(req.Error)
	}
	if err := s.sessions.SettleTask(id, taskID, cause); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": taskID, "failed": cause != nil})
}

func (s *Server) emitEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	name, err := event.Parse(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.sessions.Emit(id, name); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Restart(id); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeView(w, id, http.StatusAccepted)
}

func (s *Server) cancelRestart(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := s.sessions.CancelRestart(id); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) confirmRestart(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Location == "" {
		req.Location = "/"
	}
	target, err := s.sessions.ConfirmRestart(r.Context(), id, req.Location)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := s.sessions.Reset(id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": view})
}

func (s *Server) listNavigations(w http.ResponseWriter, r *http.Request) {
	if s.navigations == nil {
		writeJSON(w, http.StatusOK, map[string]any{"navigations": []navigation.Record{}})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	records, err := s.navigations.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list navigations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list navigations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"navigations": records})
}

// redirect runs a one-shot session for the request path and answers with
// the resolved target.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.Create()
	target, err := s.sessions.ConfirmRestart(r.Context(), ctrl.ID(), r.URL.EscapedPath())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	http.Redirect(w, r, target.URL, http.StatusFound)
}

func (s *Server) writeView(w http.ResponseWriter, id uuid.UUID, status int) {
	view, err := s.sessions.View(id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, status, map[string]any{"session": view})
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	default:
		s.logger.Error("session operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}
