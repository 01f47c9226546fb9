// Package auth issues and verifies the HS256 bearer tokens that guard the HTTP API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"webshrink/models"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrWeakSecret       = errors.New("signing secret must be at least 32 bytes")
)

// MinSecretLen is the shortest HMAC secret accepted for signing or verifying.
const MinSecretLen = 32

// VerifyConfig holds verification configuration
type VerifyConfig struct {
	SecretKey      []byte
	ExpectedIssuer string        // Optional: validate issuer
	ClockSkew      time.Duration // Optional: allow clock skew (default 0)
	Now            func() time.Time
}

// VerifyToken verifies the signature and time window of tokenString and returns its claims.
func VerifyToken(tokenString string, config VerifyConfig) (*models.TokenClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	if len(config.SecretKey) < MinSecretLen {
		return nil, ErrWeakSecret
	}

	tok, err := jwt.ParseSigned(tokenString, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &models.TokenClaims{}
	if err := tok.Claims(config.SecretKey, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	now := time.Now
	if config.Now != nil {
		now = config.Now
	}
	ts := now().Unix()
	clockSkew := int64(config.ClockSkew.Seconds())

	if claims.ExpiresAt > 0 && claims.ExpiresAt < (ts-clockSkew) {
		return nil, ErrTokenExpired
	}
	if claims.IssuedAt > 0 && claims.IssuedAt > (ts+clockSkew) {
		return nil, ErrTokenNotYetValid
	}
	if config.ExpectedIssuer != "" && claims.Issuer != config.ExpectedIssuer {
		return nil, fmt.Errorf("%w: expected '%s', got '%s'",
			ErrInvalidIssuer, config.ExpectedIssuer, claims.Issuer)
	}

	return claims, nil
}

// IssueToken signs claims with secret using HS256.
func IssueToken(claims models.TokenClaims, secret []byte) (string, error) {
	if len(secret) < MinSecretLen {
		return "", ErrWeakSecret
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secret}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to create JWT: %w", err)
	}
	return token, nil
}

// NewClaims builds claims for subject valid for ttl from now. A zero ttl
// produces a token that never expires.
func NewClaims(issuer, subject string, ttl time.Duration, scopes ...string) models.TokenClaims {
	now := time.Now()
	claims := models.TokenClaims{
		Issuer:   issuer,
		Subject:  subject,
		IssuedAt: now.Unix(),
		Scopes:   scopes,
	}
	if ttl > 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}
	return claims
}
