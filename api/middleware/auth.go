package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/koseken/game-trading/api/responses"
	"github.com/koseken/game-trading/pkg/auth"
	"github.com/koseken/game-trading/pkg/config"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
)

// streamTokenParam carries the token on websocket upgrades, where browsers
// cannot set an Authorization header.
const streamTokenParam = "access_token"

// Auth requires a valid bearer token and puts the caller's user id on the
// request context and its log fields.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, setupErr := auth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if setupErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, setupErr, "token verification is not configured"))
				return
			}
			token := credentials(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			ident, err := verifier.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid or expired token"))
				return
			}
			userID := ident.UserID.String()
			ctx := logg.WithUserID(WithUserID(r.Context(), userID), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func credentials(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		if websocket.IsWebSocketUpgrade(r) {
			return strings.TrimSpace(r.URL.Query().Get(streamTokenParam))
		}
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return header
}
