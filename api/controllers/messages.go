package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/api/responses"
	"github.com/koseken/game-trading/api/validators"
	"github.com/koseken/game-trading/internal/messages"
	"github.com/koseken/game-trading/pkg/logger"
)

const maxMessagePage = 500

type MessageService interface {
	List(ctx context.Context, transactionID, actorID uuid.UUID, afterSeq int64, limit int) ([]messages.MessageDTO, error)
	Send(ctx context.Context, transactionID, senderID uuid.UUID, content string) (*messages.MessageDTO, error)
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// MessageList returns the chat in seq order. after_seq narrows it to newer
// messages for reconnect catch-up.
func MessageList(svc MessageService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "message")
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
		afterSeq, err := validators.ParseQueryInt64(r, "after_seq", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxMessagePage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.List(r.Context(), id, actorID, afterSeq, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func MessageSend(svc MessageService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "message")
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

		var req sendMessageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		msg, err := svc.Send(r.Context(), id, actorID, req.Content)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, msg)
	}
}
