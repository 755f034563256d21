package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload is what the dev token command and tests mint from.
type AccessTokenPayload struct {
	UserID uuid.UUID
	JTI    string
}

// AccessTokenClaims identifies a shopper or creator. The user id travels in
// the standard sub claim and is resolved into UserID when the token is parsed.
type AccessTokenClaims struct {
	jwt.RegisteredClaims

	UserID uuid.UUID `json:"-"`
}
