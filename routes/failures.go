package routes

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// FailureQueryHandler returns the ledger entry of a failed or cancelled job.
func (h *Handler) FailureQueryHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	record, err := h.engine.FailureRecord(id)
	if err != nil {
		writeError(w, fmt.Errorf("query failure %s: %w", id, err))
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Kind: "record_not_found", Detail: "no failure recorded for " + id})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// FailureListHandler lists the failure ledger, oldest first.
func (h *Handler) FailureListHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.FailureHistory()
	if err != nil {
		writeError(w, fmt.Errorf("list failures: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"failures": list,
		"count":    len(list),
	})
}
