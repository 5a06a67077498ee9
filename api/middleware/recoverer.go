package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/koseken/game-trading/api/responses"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
)

// Recoverer turns a handler panic into a 500 envelope. http.ErrAbortHandler
// is re-raised so net/http can drop the connection quietly.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				ctx := logg.WithField(r.Context(), "panic", fmt.Sprint(rec))
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "handler panicked"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
