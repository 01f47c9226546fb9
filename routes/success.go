package routes

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// SuccessQueryHandler returns the ledger entry of a succeeded job.
func (h *Handler) SuccessQueryHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	record, err := h.engine.SuccessRecord(id)
	if err != nil {
		writeError(w, fmt.Errorf("query success %s: %w", id, err))
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Kind: "record_not_found", Detail: "no success recorded for " + id})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// SuccessListHandler lists the success ledger, oldest first.
func (h *Handler) SuccessListHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.SuccessHistory()
	if err != nil {
		writeError(w, fmt.Errorf("list success records: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": list,
		"count":   len(list),
	})
}
