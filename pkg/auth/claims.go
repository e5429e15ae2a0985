package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/vegshop/vegshop-backend/pkg/enums"
)

// AccessTokenPayload captures the caller identity handed over by the auth
// provider when minting a JWT.
type AccessTokenPayload struct {
	UserID    string
	Role      enums.Role
	SessionID string
	JTI       string
}

// AccessTokenClaims is the typed JWT. The user id travels in the standard
// subject claim.
type AccessTokenClaims struct {
	Role      enums.Role `json:"role"`
	SessionID string     `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject.
func (c *AccessTokenClaims) UserID() string {
	return c.Subject
}

// Session returns the submission session key: the token's session id when
// present, otherwise the user id.
func (c *AccessTokenClaims) Session() string {
	if c.SessionID != "" {
		return c.SessionID
	}
	return c.Subject
}
