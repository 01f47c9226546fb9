package routes

import (
	"net/http"

	"webshrink/logger"

	"github.com/gorilla/mux"
)

// CancelJobHandler cancels a queued or running job and returns its snapshot.
// Cancelling a finished job changes nothing.
func (h *Handler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	logger.Infof("Attempting to cancel job: %s", id)

	snap, err := h.engine.Cancel(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
