package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/api/responses"
	"github.com/koseken/game-trading/api/validators"
	"github.com/koseken/game-trading/internal/admin"
	"github.com/koseken/game-trading/internal/listings"
	"github.com/koseken/game-trading/internal/transactions"
	"github.com/koseken/game-trading/internal/users"
	"github.com/koseken/game-trading/pkg/enums"
	"github.com/koseken/game-trading/pkg/logger"
)

type AdminService interface {
	Stats(ctx context.Context) (*admin.StatsDTO, error)
	ListUsers(ctx context.Context, q string, page, limit int) (*admin.UserList, error)
	SetAdmin(ctx context.Context, actorID, userID uuid.UUID, isAdmin bool) (*users.UserDTO, error)
	ListListings(ctx context.Context, filters listings.Filters, page, limit int) (*listings.ListingList, error)
	DeleteListing(ctx context.Context, adminID, listingID uuid.UUID) (*listings.DeleteResult, error)
	ListTransactions(ctx context.Context, status *enums.TransactionStatus, page, limit int) (*transactions.AdminTransactionList, error)
	CancelTransaction(ctx context.Context, adminID, transactionID uuid.UUID) (*transactions.TransactionDTO, error)
}

type setAdminRequest struct {
	IsAdmin *bool `json:"is_admin" validate:"required"`
}

func AdminStats(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "admin")
			return
		}
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func AdminListUsers(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "admin")
			return
		}
		page, limit, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLen)
		out, err := svc.ListUsers(r.Context(), q, page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminSetUserRole grants or revokes the admin flag.
func AdminSetUserRole(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "admin")
			return
		}
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		userID, ok := pathID(w, r, logg, "userID")
		if !ok {
			return
		}

		var req setAdminRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.SetAdmin(r.Context(), actorID, userID, *req.IsAdmin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// AdminListListings shows listings in every status unless one is requested.
func AdminListListings(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "admin")
			return
		}
		filters, page, limit, err := parseListingQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.ListListings(r.Context(), filters, page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func AdminDeleteListing(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "admin")
			return
		}
		adminID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, ok := pathID(w, r, logg, "listingID")
		if !ok {
			return
		}
		result, err := svc.DeleteListing(r.Context(), adminID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminListTransactions(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "admin")
			return
		}
		status, err := parseTransactionStatus(r.URL.Query().Get("status"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, limit, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.ListTransactions(r.Context(), status, page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminCancelTransaction is the moderation cancel.
func AdminCancelTransaction(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "admin")
			return
		}
		adminID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, ok := pathID(w, r, logg, "transactionID")
		if !ok {
			return
		}
		txn, err := svc.CancelTransaction(r.Context(), adminID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}
