package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/koseken/game-trading/api/validators"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
)

type memoryIdempotencyStore struct {
	data map[string]string
	// beforeWrite runs once, ahead of the next Set or Del.
	beforeWrite func()
}

func (m *memoryIdempotencyStore) fireBeforeWrite() {
	if hook := m.beforeWrite; hook != nil {
		m.beforeWrite = nil
		hook()
	}
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{data: map[string]string{}}
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryIdempotencyStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.fireBeforeWrite()
	m.data[key] = value.(string)
	return nil
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	m.fireBeforeWrite()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return scope + "#" + id
}

func keyedRequest(method, path, key, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req.WithContext(WithUserID(req.Context(), "buyer-1"))
}

func TestReplayTTL(t *testing.T) {
	cases := []struct {
		method, path string
		want         time.Duration
		tracked      bool
	}{
		{http.MethodPost, "/api/v1/transactions", tradeReplayTTL, true},
		{http.MethodPost, "/api/v1/transactions/", tradeReplayTTL, true},
		{http.MethodPut, "/api/v1/transactions/5b1c/complete", tradeReplayTTL, true},
		{http.MethodPut, "/api/v1/transactions/5b1c/cancel", tradeReplayTTL, true},
		{http.MethodPost, "/api/v1/reviews", tradeReplayTTL, true},
		{http.MethodPost, "/api/v1/transactions/5b1c/messages", messageReplayTTL, true},
		{http.MethodPost, "/api/v1/transactions/5b1c/read", messageReplayTTL, true},
		{http.MethodPost, "/api/v1/listings", messageReplayTTL, true},
		{http.MethodGet, "/api/v1/transactions/5b1c/messages", 0, false},
		{http.MethodPost, "/api/v1/transactions//messages", 0, false},
		{http.MethodPatch, "/api/v1/users/me", 0, false},
	}
	for _, tc := range cases {
		ttl, tracked := replayTTL(tc.method, tc.path)
		require.Equal(t, tc.tracked, tracked, "%s %s", tc.method, tc.path)
		require.Equal(t, tc.want, ttl, "%s %s", tc.method, tc.path)
	}
}

func TestIdempotencyIgnoresRequestsWithoutKey(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/transactions", "", `{"listing_id":"x"}`))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	require.Equal(t, 2, calls)
	require.Empty(t, store.data)
}

func TestIdempotencyReplaysFinishedResponse(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"status":"pending"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(http.MethodPost, "/api/v1/transactions", "k-1", `{"listing_id":"x"}`))
	require.Equal(t, http.StatusCreated, first.Code)
	require.Empty(t, first.Header().Get(ReplayedHeader))

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, keyedRequest(http.MethodPost, "/api/v1/transactions", "k-1", `{"listing_id":"x"}`))
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	require.Equal(t, "true", replay.Header().Get(ReplayedHeader))
	require.JSONEq(t, `{"data":{"status":"pending"}}`, replay.Body.String())
	require.Equal(t, 1, calls)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/reviews", "retry-me", `{"rating":5}`))
	}
	require.Equal(t, 2, calls)
}

func TestIdempotencyRejectsChangedBodyAndInFlightRetry(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var inner http.Handler
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a retry arriving while the first request is still being handled
		retry := httptest.NewRecorder()
		inner.ServeHTTP(retry, keyedRequest(http.MethodPut, "/api/v1/transactions/t1/complete", "done-1", `{}`))
		require.Equal(t, http.StatusConflict, retry.Code)
		require.Contains(t, retry.Body.String(), "still in progress")
		w.WriteHeader(http.StatusOK)
	}))
	inner = handler

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(http.MethodPut, "/api/v1/transactions/t1/complete", "done-1", `{}`))
	require.Equal(t, http.StatusOK, rec.Code)

	changed := httptest.NewRecorder()
	handler.ServeHTTP(changed, keyedRequest(http.MethodPut, "/api/v1/transactions/t1/complete", "done-1", `{"note":"x"}`))
	require.Equal(t, http.StatusConflict, changed.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(changed.Body.Bytes(), &body))
	require.Equal(t, string(pkgerrors.CodeIdempotency), body.Error.Code)
}

func TestIdempotencyKeyStaysClaimedWhileResponseIsStored(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"seq":7}}`))
	}))

	send := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/transactions/abc/messages", "msg-1", `{"content":"hi"}`))
		return rec
	}
	var retry *httptest.ResponseRecorder
	store.beforeWrite = func() { retry = send() }

	first := send()
	require.Equal(t, http.StatusCreated, first.Code)
	require.NotNil(t, retry)
	require.Equal(t, http.StatusConflict, retry.Code)
	require.Equal(t, 1, calls)

	replay := send()
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, "true", replay.Header().Get(ReplayedHeader))
	require.Equal(t, 1, calls)
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))

	rec := httptest.NewRecorder()
	body := `{"description":"` + strings.Repeat("x", validators.MaxBodyBytes) + `"}`
	handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/listings", "big-1", body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "exceeds")
	require.Zero(t, calls)
	require.Empty(t, store.data)
}
