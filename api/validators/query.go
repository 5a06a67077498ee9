package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/koseken/game-trading/pkg/errors"
)

func invalidParam(field, msg string, cause error, extra map[string]any) error {
	details := map[string]any{"field": field}
	for k, v := range extra {
		details[k] = v
	}
	var err *pkgerrors.Error
	if cause != nil {
		err = pkgerrors.Wrap(pkgerrors.CodeValidation, cause, msg)
	} else {
		err = pkgerrors.New(pkgerrors.CodeValidation, msg)
	}
	return err.WithDetails(details)
}

func query(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// ParseQueryInt returns def when key is absent and rejects values outside
// [min, max].
func ParseQueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := query(r, key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, invalidParam(key, key+" must be a whole number", nil, nil)
	case n < min || n > max:
		return 0, invalidParam(key, key+" is out of range", nil, map[string]any{"min": min, "max": max})
	}
	return n, nil
}

func ParseQueryInt64(r *http.Request, key string, def int64) (int64, error) {
	raw := query(r, key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, invalidParam(key, key+" must be a non-negative integer", nil, nil)
	}
	return n, nil
}

// ParseQueryUUID returns nil when the parameter is absent.
func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := query(r, key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, invalidParam(key, key+" must be a UUID", err, nil)
	}
	return &id, nil
}

func ParseURLParamUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil {
		return uuid.Nil, invalidParam(name, "invalid "+name, err, nil)
	}
	return id, nil
}
