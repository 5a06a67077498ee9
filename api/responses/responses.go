// Package responses writes the JSON envelopes every handler returns:
// {"data": ...} on success and {"error": {...}} on failure.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
)

type Body struct {
	Data any `json:"data"`
}

type Problem struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorBody struct {
	Error Problem `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, Body{Data: data})
}

func WriteCreated(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, Body{Data: data})
}

// WriteError maps err through its code's policy. Untyped errors become
// INTERNAL_ERROR and their text never reaches the client. Server-side
// failures are logged at error level, client mistakes at warn.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("error response without cause")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	policy := pkgerrors.PolicyFor(typed.Code())

	problem := Problem{
		Code:      string(typed.Code()),
		Message:   policy.Fallback,
		Retryable: policy.Retryable,
	}
	if policy.Public && typed.Message() != "" {
		problem.Message = typed.Message()
	}
	if policy.ShowDetails {
		problem.Details = typed.Details()
	}

	if logg != nil {
		fields := pkgerrors.Dump(err).Fields()
		if details, ok := typed.Details().(map[string]any); ok {
			if id, ok := details["transaction_id"]; ok {
				fields["transaction_id"] = id
			}
		}
		ctx = logg.WithFields(ctx, fields)
		if policy.Status >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.error")
		}
	}

	write(w, policy.Status, ErrorBody{Error: problem})
}

func write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status line is already out; nothing useful left to do on failure
	_ = json.NewEncoder(w).Encode(payload)
}
