package routes

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"webshrink/auth"
	"webshrink/logger"
	"webshrink/models"
)

type claimsKey struct{}

// require rejects requests without a bearer token granting scope. It passes
// everything through when auth is disabled.
func (h *Handler) require(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.verify == nil {
			next(w, r)
			return
		}

		claims, err := h.verifyJWT(r)
		if err != nil {
			logger.Warnf("Rejected request to %s from %s: %v", r.URL.Path, r.RemoteAddr, err)
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Kind: "unauthorized", Detail: err.Error()})
			return
		}
		if !claims.Allows(scope) {
			writeJSON(w, http.StatusForbidden, ErrorResponse{Kind: "forbidden", Detail: "token lacks scope " + scope})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	}
}

// verifyJWT verifies the JWT from the request and returns the claims
func (h *Handler) verifyJWT(r *http.Request) (*models.TokenClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errMissingAuth
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return nil, errAuthFormat
	}
	return auth.VerifyToken(token, *h.verify)
}

var (
	errMissingAuth = errors.New("authorization header required")
	errAuthFormat  = errors.New("invalid authorization header format")
)

// claimsFrom returns the verified token of the request, if any.
func claimsFrom(r *http.Request) *models.TokenClaims {
	claims, _ := r.Context().Value(claimsKey{}).(*models.TokenClaims)
	return claims
}
