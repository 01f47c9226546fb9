package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"webshrink/logger"

	"github.com/gorilla/mux"
)

// JobEventsHandler streams a job's progress as server-sent events, starting
// from its first event. The stream ends after the terminal event.
func (h *Handler) JobEventsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sub, err := h.engine.Subscribe(id)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range sub.All(r.Context()) {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("Failed to encode event for job %s: %v", id, err)
			return
		}
		name := "progress"
		if ev.Terminal {
			name = "done"
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, name, data); err != nil {
			logger.Debugf("Event stream for job %s closed by client: %v", id, err)
			return
		}
		flusher.Flush()
	}
}
