package routes

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"webshrink/export"
	"webshrink/failures"
	"webshrink/logger"

	"github.com/gorilla/mux"
)

// ArtifactHandler downloads the output of a succeeded job.
func (h *Handler) ArtifactHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	art, err := h.engine.RetrieveArtifact(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", art.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(art.Data); err != nil {
		logger.Warnf("Artifact download of job %s interrupted: %v", id, err)
	}
}

// ReleaseHandler drops the artifact of a job. It is safe to call twice.
func (h *Handler) ReleaseHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Release(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportRequest names the destinations to copy an artifact to.
type ExportRequest struct {
	Destinations []string `json:"destinations"`
}

type ExportResponse struct {
	Results []export.Result `json:"results"`
}

// ExportHandler copies a job's artifact to registered destinations, given as
// repeated ?destination= parameters or a JSON body.
func (h *Handler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	keys := r.URL.Query()["destination"]
	if len(keys) == 0 && r.ContentLength != 0 {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, failures.New(failures.KindInvalidInput, fmt.Sprintf("invalid request body: %v", err)))
			return
		}
		keys = req.Destinations
	}

	results, err := h.engine.ExportArtifact(r.Context(), id, keys...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Results: results})
}
