package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/koseken/game-trading/pkg/config"
)

// clockSkew is tolerated on exp/iat between the identity provider and us.
const clockSkew = 30 * time.Second

var (
	signingMethod = jwt.SigningMethodHS256

	errNoSecret = errors.New("auth: GT_JWT_SECRET is empty")
)

type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{key: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify checks signature, expiry, issuer and audience, and that the
// subject is a user id.
func (v *Verifier) Verify(token string) (Identity, error) {
	var c claims
	if _, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return v.key, nil }); err != nil {
		return Identity{}, err
	}
	return c.identity()
}

// Issue signs a token for userID valid for cfg.ExpirationMinutes from now.
// Production tokens come from the identity provider; local tooling and
// tests use this.
func Issue(cfg config.JWTConfig, now time.Time, userID uuid.UUID, email string) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errNoSecret
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("auth: GT_JWT_EXPIRATION_MINUTES must be positive")
	case userID == uuid.Nil:
		return "", errors.New("auth: user id is required")
	}
	c := claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
	}
	if cfg.Audience != "" {
		c.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	signed, err := jwt.NewWithClaims(signingMethod, c).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}
