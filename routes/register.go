package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"webshrink/engine"
	"webshrink/failures"
	"webshrink/logger"
	"webshrink/models"
)

type RegisterResponse struct {
	Key string `json:"key"`
}

// RegisterDestinationHandler stores export credentials and returns the key
// clients use to refer to them.
func (h *Handler) RegisterDestinationHandler(w http.ResponseWriter, r *http.Request) {
	var dest models.Destination
	if err := json.NewDecoder(r.Body).Decode(&dest); err != nil {
		writeError(w, failures.Newf(failures.KindInvalidInput, "invalid request body: %v", err))
		return
	}

	key, err := h.engine.RegisterDestination(dest)
	if errors.Is(err, engine.ErrExportDisabled) {
		writeError(w, err)
		return
	}
	if err != nil {
		writeError(w, failures.Wrap(failures.KindInvalidInput, err))
		return
	}
	logger.Infof("Registered %s export destination", dest.Type)
	writeJSON(w, http.StatusCreated, RegisterResponse{Key: key})
}
