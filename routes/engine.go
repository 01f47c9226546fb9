package routes

import (
	"net/http"

	"webshrink/engine"
	"webshrink/logger"
)

type EngineStateResponse struct {
	State engine.State `json:"state"`
	Error string       `json:"error,omitempty"`
}

func (h *Handler) engineState() EngineStateResponse {
	resp := EngineStateResponse{State: h.engine.State()}
	if err := h.engine.LoadError(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (h *Handler) EngineStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engineState())
}

// EngineReadyHandler loads the backend if needed and waits for it, bounded
// by the request context.
func (h *Handler) EngineReadyHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.EnsureReady(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engineState())
}

// EngineResetHandler clears a failed load. It answers 409 when the engine is not failed.
func (h *Handler) EngineResetHandler(w http.ResponseWriter, r *http.Request) {
	if !h.engine.ResetEngine() {
		writeJSON(w, http.StatusConflict, h.engineState())
		return
	}
	logger.Info("Engine reset through the API")
	writeJSON(w, http.StatusOK, h.engineState())
}
