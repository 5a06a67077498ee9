// Package auth verifies the bearer tokens the identity provider issues for
// marketplace users. Tokens are HS256 JWTs whose subject is the user id.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is what a verified token says about the caller.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *claims) identity() (Identity, error) {
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("token has no subject")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("token subject %q is not a user id: %w", c.Subject, err)
	}
	ident := Identity{UserID: id, Email: c.Email, TokenID: c.ID}
	if c.ExpiresAt != nil {
		ident.ExpiresAt = c.ExpiresAt.Time
	}
	return ident, nil
}
