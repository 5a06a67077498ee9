package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/koseken/game-trading/pkg/config"
)

// CORS lets the marketplace web client call the API with credentials.
// Idempotency and request-id headers are allowed in, and the request id and
// replay marker are readable by the browser.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, ReplayedHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           int(cfg.MaxAge.Seconds()),
	})
}
