package models

// TokenClaims is the payload of an API bearer token.
type TokenClaims struct {
	Issuer    string `json:"iss"` // optional
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`

	// Scopes limits what the bearer may do; empty means full access.
	Scopes []string `json:"scopes,omitempty"`
}

// Allows reports whether the token grants scope.
func (c TokenClaims) Allows(scope string) bool {
	if len(c.Scopes) == 0 {
		return true
	}
	for _, s := range c.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}
