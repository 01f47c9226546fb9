// Package routes exposes the conversion engine over HTTP.
package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"webshrink/auth"
	"webshrink/credentials"
	"webshrink/engine"
	"webshrink/export"
	"webshrink/failures"
	"webshrink/logger"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Token scopes checked by the API.
const (
	ScopeJobs    = "jobs"
	ScopeHistory = "history"
	ScopeAdmin   = "admin"
)

// Handler serves the HTTP API for one engine.
type Handler struct {
	engine    *engine.Engine
	verify    *auth.VerifyConfig // nil when auth is disabled
	maxUpload int64
	started   time.Time
}

func NewHandler(eng *engine.Engine) *Handler {
	cfg := eng.Config()
	h := &Handler{
		engine:    eng,
		maxUpload: cfg.Server.MaxUploadBytes,
		started:   time.Now(),
	}
	if cfg.Auth.JWTSecret != "" {
		h.verify = &auth.VerifyConfig{
			SecretKey:      []byte(cfg.Auth.JWTSecret),
			ExpectedIssuer: cfg.Auth.Issuer,
			ClockSkew:      time.Minute,
		}
	} else {
		logger.Warn("auth.jwt_secret is empty; the API accepts unauthenticated requests")
	}
	return h
}

// NewRouter registers every route and wraps the router in CORS handling.
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthHandler).Methods("GET")
	r.HandleFunc("/version", VersionHandler).Methods("GET")

	r.HandleFunc("/engine", h.require(ScopeJobs, h.EngineStateHandler)).Methods("GET")
	r.HandleFunc("/engine/ready", h.require(ScopeJobs, h.EngineReadyHandler)).Methods("POST")
	r.HandleFunc("/engine/reset", h.require(ScopeAdmin, h.EngineResetHandler)).Methods("POST")

	r.HandleFunc("/jobs", h.require(ScopeJobs, h.UploadHandler)).Methods("POST")
	r.HandleFunc("/jobs", h.require(ScopeJobs, h.JobListHandler)).Methods("GET")
	r.HandleFunc("/jobs/{id}", h.require(ScopeJobs, h.JobStatusHandler)).Methods("GET")
	r.HandleFunc("/jobs/{id}", h.require(ScopeJobs, h.CancelJobHandler)).Methods("DELETE")
	r.HandleFunc("/jobs/{id}/events", h.require(ScopeJobs, h.JobEventsHandler)).Methods("GET")
	r.HandleFunc("/jobs/{id}/artifact", h.require(ScopeJobs, h.ArtifactHandler)).Methods("GET")
	r.HandleFunc("/jobs/{id}/artifact", h.require(ScopeJobs, h.ReleaseHandler)).Methods("DELETE")
	r.HandleFunc("/jobs/{id}/export", h.require(ScopeJobs, h.ExportHandler)).Methods("POST")

	r.HandleFunc("/destinations", h.require(ScopeAdmin, h.RegisterDestinationHandler)).Methods("POST")

	r.HandleFunc("/history/failures", h.require(ScopeHistory, h.FailureListHandler)).Methods("GET")
	r.HandleFunc("/history/failures/{id}", h.require(ScopeHistory, h.FailureQueryHandler)).Methods("GET")
	r.HandleFunc("/history/success", h.require(ScopeHistory, h.SuccessListHandler)).Methods("GET")
	r.HandleFunc("/history/success/{id}", h.require(ScopeHistory, h.SuccessQueryHandler)).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: h.engine.Config().Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Kind    failures.Kind `json:"kind"`
	Detail  string        `json:"detail,omitempty"`
	Message string        `json:"message,omitempty"`
}

const kindInternal failures.Kind = "internal"

var kindStatus = map[failures.Kind]int{
	failures.KindEngineNotReady:   http.StatusServiceUnavailable,
	failures.KindEngineLoadFailed: http.StatusServiceUnavailable,
	failures.KindInvalidInput:     http.StatusBadRequest,
	failures.KindInputTooLarge:    http.StatusRequestEntityTooLarge,
	failures.KindJobNotFound:      http.StatusNotFound,
	failures.KindBackendError:     http.StatusBadGateway,
	failures.KindTimeout:          http.StatusGatewayTimeout,
	failures.KindCancelled:        http.StatusConflict,
	failures.KindNotReady:         http.StatusConflict,
}

// writeError maps err to a status and a JSON body. Errors outside the
// taxonomy are logged and reported as internal.
func writeError(w http.ResponseWriter, err error) {
	var resp ErrorResponse
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, credentials.ErrUnknownDestination), errors.Is(err, export.ErrNoDestinations):
		resp = ErrorResponse{Kind: failures.KindInvalidInput, Detail: err.Error()}
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrExportDisabled):
		resp = ErrorResponse{Kind: "export_disabled", Detail: err.Error()}
		status = http.StatusNotImplemented
	case failures.KindOf(err) != "":
		kind := failures.KindOf(err)
		resp = ErrorResponse{Kind: kind, Detail: failures.DetailOf(err), Message: kind.Describe()}
		if s, ok := kindStatus[kind]; ok {
			status = s
		}
	default:
		logger.Errorf("Request failed: %v", err)
		resp = ErrorResponse{Kind: kindInternal, Detail: err.Error()}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
