package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/koseken/game-trading/api/responses"
	"github.com/koseken/game-trading/api/validators"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
	pkgredis "github.com/koseken/game-trading/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	messageReplayTTL = 24 * time.Hour
	tradeReplayTTL   = 7 * 24 * time.Hour
	// an in-flight marker outlives any sane handler, then frees the key
	inFlightTTL = time.Minute
)

// replayable lists the writes whose responses are remembered per key.
// "*" matches one path segment.
var replayable = []struct {
	method, path string
	ttl          time.Duration
}{
	{http.MethodPost, "/api/v1/listings", messageReplayTTL},
	{http.MethodPost, "/api/v1/transactions/*/messages", messageReplayTTL},
	{http.MethodPost, "/api/v1/transactions/*/read", messageReplayTTL},
	{http.MethodPost, "/api/v1/transactions", tradeReplayTTL},
	{http.MethodPut, "/api/v1/transactions/*/complete", tradeReplayTTL},
	{http.MethodPut, "/api/v1/transactions/*/cancel", tradeReplayTTL},
	{http.MethodPost, "/api/v1/reviews", tradeReplayTTL},
}

type storedResponse struct {
	InFlight    bool   `json:"in_flight,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes retried writes safe. The first request carrying an
// Idempotency-Key claims it with an in-flight marker; once the handler
// answers with a non-5xx status the response replaces the marker and is
// replayed for later requests with the same key and body. A different body
// under the same key, or a retry while the first is still running, is a
// 409. Requests without the header are not tracked.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, tracked := replayTTL(r.Method, r.URL.Path)
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if !tracked || clientKey == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)
			fingerprint := fingerprintOf(body)

			claimed, err := claim(ctx, store, key, fingerprint)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
				return
			}
			if !claimed {
				replayOrReject(ctx, store, logg, w, key, fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.statusOrOK() >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}
			finished := storedResponse{
				Fingerprint: fingerprint,
				Status:      capture.statusOrOK(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			if err := persist(ctx, store, key, finished, ttl); err != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

func claim(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string) (bool, error) {
	marker, err := json.Marshal(storedResponse{InFlight: true, Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(marker), inFlightTTL)
}

// persist overwrites the in-flight marker with the finished response in one
// write, so the key is never free in between.
func persist(ctx context.Context, store pkgredis.IdempotencyStore, key string, resp storedResponse, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(raw), ttl)
}

func replayOrReject(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, w http.ResponseWriter, key, fingerprint string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the holder failed and released the key between our SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key failed, retry it"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt idempotency record"))
		return
	}
	switch {
	case stored.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
	case stored.InFlight:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// replayTTL matches the raw path: this runs before chi resolves the
// sub-router's route pattern.
func replayTTL(method, path string) (time.Duration, bool) {
	path = strings.TrimSuffix(path, "/")
	for _, rule := range replayable {
		if rule.method == method && pathMatches(rule.path, path) {
			return rule.ttl, true
		}
	}
	return 0, false
}

func pathMatches(pattern, path string) bool {
	want := strings.Split(pattern, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != "*" && want[i] != got[i] {
			return false
		}
		if want[i] == "*" && got[i] == "" {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
