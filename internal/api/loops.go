package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/scheduler"
)

// loopHandler exposes the background loops for operational control. These
// routes sit outside the owner scope: they manage the process, not a
// tenant's data.
type loopHandler struct {
	loops []*scheduler.Loop
}

func (h *loopHandler) find(name string) *scheduler.Loop {
	for _, l := range h.loops {
		if l.Name() == name {
			return l
		}
	}
	return nil
}

func (h *loopHandler) status(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]bool, len(h.loops))
	for _, l := range h.loops {
		out[l.Name()] = l.IsRunning()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *loopHandler) start(w http.ResponseWriter, r *http.Request) {
	l := h.find(chi.URLParam(r, "name"))
	if l == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown loop"})
		return
	}
	if !l.Start() {
		writeError(w, apperr.NewConflict("loop is already running"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": l.Name(), "running": true})
}

func (h *loopHandler) stop(w http.ResponseWriter, r *http.Request) {
	l := h.find(chi.URLParam(r, "name"))
	if l == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown loop"})
		return
	}
	if !l.Stop() {
		writeError(w, apperr.NewConflict("loop is not running"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": l.Name(), "running": false})
}
