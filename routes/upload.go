package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"webshrink/failures"
	"webshrink/logger"
	"webshrink/models"
)

// multipartMemory is how much of an upload is held in memory before spilling to disk.
const multipartMemory = 32 << 20

// SubmitResponse is returned once a job is queued.
type SubmitResponse struct {
	ID     string       `json:"id"`
	State  models.State `json:"state"`
	Events string       `json:"events"`
}

// UploadHandler accepts a multipart upload with a "file" part and optional
// kind, format, quality, speed, max_width and max_height fields.
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		if r.ContentLength > h.maxUpload {
			writeError(w, failures.Newf(failures.KindInputTooLarge, "upload exceeds %d bytes", h.maxUpload))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, failures.Newf(failures.KindInputTooLarge, "upload exceeds %d bytes", tooBig.Limit))
			return
		}
		writeError(w, failures.Newf(failures.KindInvalidInput, "failed to parse multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, failures.New(failures.KindInvalidInput, "missing file part"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("read upload: %w", err))
		return
	}

	in := models.Input{
		Data:     data,
		Filename: header.Filename,
		MIME:     header.Header.Get("Content-Type"),
	}
	format, opts, err := parseJobForm(r, &in)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := h.engine.Submit(in, format, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	subject := "anonymous"
	if claims := claimsFrom(r); claims != nil {
		subject = claims.Subject
	}
	logger.Infof("Upload accepted: job=%s file=%s size=%d subject=%s", id, header.Filename, len(data), subject)

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		ID:     id,
		State:  models.StateQueued,
		Events: "/jobs/" + id + "/events",
	})
}

// parseJobForm fills in.Kind and returns the target format and options. The
// kind falls back to the part's content type, the format to the kind's
// default, and options start from the format's defaults.
func parseJobForm(r *http.Request, in *models.Input) (models.Format, models.Options, error) {
	kind := r.FormValue("kind")
	if kind == "" {
		kind = strings.SplitN(in.MIME, "/", 2)[0]
	}
	in.Kind = models.MediaKind(strings.ToLower(strings.TrimSpace(kind)))

	format := models.DefaultFormat(in.Kind)
	if f := r.FormValue("format"); f != "" {
		parsed, err := models.ParseFormat(f)
		if err != nil {
			return "", models.Options{}, failures.Wrap(failures.KindInvalidInput, err)
		}
		format = parsed
	}

	opts := models.DefaultOptions(format)
	fields := []struct {
		name string
		dst  *int
	}{
		{"quality", &opts.Quality},
		{"speed", &opts.Speed},
		{"max_width", &opts.MaxWidth},
		{"max_height", &opts.MaxHeight},
	}
	for _, f := range fields {
		raw := r.FormValue(f.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", models.Options{}, failures.Newf(failures.KindInvalidInput, "%s must be an integer, got %q", f.name, raw)
		}
		*f.dst = n
	}
	return format, opts, nil
}
