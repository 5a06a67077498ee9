package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/api/responses"
	"github.com/koseken/game-trading/api/validators"
	"github.com/koseken/game-trading/internal/transactions"
	"github.com/koseken/game-trading/pkg/enums"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
)

type TransactionService interface {
	Create(ctx context.Context, buyerID, listingID uuid.UUID) (*transactions.TransactionDTO, error)
	Get(ctx context.Context, actorID, id uuid.UUID) (*transactions.TransactionDTO, error)
	Complete(ctx context.Context, actorID, id uuid.UUID) (*transactions.TransactionDTO, error)
	Cancel(ctx context.Context, actorID, id uuid.UUID) (*transactions.TransactionDTO, error)
	List(ctx context.Context, userID uuid.UUID, params transactions.ListParams) (*transactions.TransactionList, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID, seq int64) (*transactions.ReadStateDTO, error)
}

type createTransactionRequest struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
}

type markReadRequest struct {
	Seq int64 `json:"seq" validate:"gte=0"`
}

// TransactionCreate starts a trade on a listing for the caller as buyer.
// A duplicate open request answers 409 with the existing transaction_id.
func TransactionCreate(svc TransactionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "transaction")
			return
		}
		buyerID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var req createTransactionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Create(r.Context(), buyerID, req.ListingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, txn)
	}
}

func TransactionGet(svc TransactionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "transaction")
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
		txn, err := svc.Get(r.Context(), actorID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// TransactionList pages through the caller's trades, newest first.
func TransactionList(svc TransactionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "transaction")
			return
		}
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		query := r.URL.Query()
		role, err := enums.ParseTransactionRole(strings.TrimSpace(query.Get("role")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role").WithDetails(map[string]any{"field": "role"}))
			return
		}
		status, err := parseTransactionStatus(query.Get("status"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.List(r.Context(), actorID, transactions.ListParams{
			Role:   role,
			Status: status,
			Cursor: strings.TrimSpace(query.Get("cursor")),
			Limit:  limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// TransactionComplete lets the seller close an in-progress trade.
func TransactionComplete(svc TransactionService, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, func(ctx context.Context, actorID, id uuid.UUID) (*transactions.TransactionDTO, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable")
		}
		return svc.Complete(ctx, actorID, id)
	})
}

// TransactionCancel lets either party abandon an open trade.
func TransactionCancel(svc TransactionService, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, func(ctx context.Context, actorID, id uuid.UUID) (*transactions.TransactionDTO, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable")
		}
		return svc.Cancel(ctx, actorID, id)
	})
}

func transition(logg *logger.Logger, apply func(ctx context.Context, actorID, id uuid.UUID) (*transactions.TransactionDTO, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, ok := pathID(w, r, logg, "transactionID")
		if !ok {
			return
		}
		txn, err := apply(r.Context(), actorID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// TransactionMarkRead advances the caller's read cursor. An empty body or a
// zero seq marks everything read.
func TransactionMarkRead(svc TransactionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "transaction")
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

		var req markReadRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		state, err := svc.MarkRead(r.Context(), actorID, id, req.Seq)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

func parseTransactionStatus(raw string) (*enums.TransactionStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParseTransactionStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
	}
	return &status, nil
}
