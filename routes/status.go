package routes

import (
	"net/http"

	"webshrink/models"

	"github.com/gorilla/mux"
)

// JobListResponse lists jobs in submission order.
type JobListResponse struct {
	Jobs  []models.Snapshot `json:"jobs"`
	Count int               `json:"count"`
}

// JobListHandler returns every known job, optionally filtered by ?state=.
func (h *Handler) JobListHandler(w http.ResponseWriter, r *http.Request) {
	jobs := h.engine.ListJobs()
	if state := models.State(r.URL.Query().Get("state")); state != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.State == state {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs, Count: len(jobs)})
}

// JobStatusHandler returns the snapshot of one job.
func (h *Handler) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.GetJob(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
