package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/api/responses"
	"github.com/koseken/game-trading/internal/transactions"
	"github.com/koseken/game-trading/pkg/logger"
)

type TransactionReader interface {
	Get(ctx context.Context, actorID, id uuid.UUID) (*transactions.TransactionDTO, error)
}

// StreamServer takes over an authorized request as a websocket.
type StreamServer interface {
	Serve(w http.ResponseWriter, r *http.Request, transactionID, userID uuid.UUID) error
}

// TransactionStream upgrades to a websocket that pushes new messages and
// status changes for one transaction. Only its parties may subscribe.
func TransactionStream(txns TransactionReader, hub StreamServer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if txns == nil || hub == nil {
			serviceUnavailable(w, r, logg, "realtime")
			return
		}
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, ok := pathID(w, r, logg, "transactionID")
		if !ok {
			return
		}
		if _, err := txns.Get(r.Context(), actorID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// the upgrader has already answered the client when Serve fails
		if err := hub.Serve(w, r, id, actorID); err != nil && logg != nil {
			ctx := logg.WithTransactionID(r.Context(), id.String())
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "realtime.upgrade_failed")
		}
	}
}
