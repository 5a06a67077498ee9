package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/internal/admin"
	"github.com/koseken/game-trading/internal/listings"
	"github.com/koseken/game-trading/internal/transactions"
	"github.com/koseken/game-trading/internal/users"
	"github.com/koseken/game-trading/pkg/enums"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
)

type stubAdminService struct {
	err       error
	setAdmin  *bool
	status    *enums.TransactionStatus
	filters   listings.Filters
	cancelled uuid.UUID
}

func (s *stubAdminService) Stats(context.Context) (*admin.StatsDTO, error) {
	return &admin.StatsDTO{Users: 3, Listings: 5, Transactions: 2, TransactionsToday: 1}, s.err
}

func (s *stubAdminService) ListUsers(_ context.Context, _ string, page, limit int) (*admin.UserList, error) {
	return &admin.UserList{Page: page, Limit: limit}, s.err
}

func (s *stubAdminService) SetAdmin(_ context.Context, _, userID uuid.UUID, isAdmin bool) (*users.UserDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.setAdmin = &isAdmin
	return &users.UserDTO{ID: userID, IsAdmin: isAdmin}, nil
}

func (s *stubAdminService) ListListings(_ context.Context, filters listings.Filters, page, limit int) (*listings.ListingList, error) {
	s.filters = filters
	return &listings.ListingList{Page: page, Limit: limit}, s.err
}

func (s *stubAdminService) DeleteListing(_ context.Context, _, id uuid.UUID) (*listings.DeleteResult, error) {
	return &listings.DeleteResult{ListingID: id, Deleted: true}, s.err
}

func (s *stubAdminService) ListTransactions(_ context.Context, status *enums.TransactionStatus, page, limit int) (*transactions.AdminTransactionList, error) {
	s.status = status
	return &transactions.AdminTransactionList{Page: page, Limit: limit}, s.err
}

func (s *stubAdminService) CancelTransaction(_ context.Context, _, id uuid.UUID) (*transactions.TransactionDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.cancelled = id
	return &transactions.TransactionDTO{ID: id, Status: enums.TransactionStatusCancelled}, nil
}

func TestAdminStats(t *testing.T) {
	rec := serve(t, http.MethodGet, "/stats", "/stats", AdminStats(&stubAdminService{}, nil), "", uuid.New())
	var stats admin.StatsDTO
	decodeData(t, rec, &stats)
	if stats.Users != 3 || stats.TransactionsToday != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestAdminSetUserRole(t *testing.T) {
	svc := &stubAdminService{}
	rec := serve(t, http.MethodPatch, "/users/{userID}", "/users/"+uuid.NewString(), AdminSetUserRole(svc, nil), `{"is_admin":false}`, uuid.New())
	if rec.Code != http.StatusOK || svc.setAdmin == nil || *svc.setAdmin {
		t.Fatalf("expected explicit false to be forwarded, code=%d", rec.Code)
	}

	rec = serve(t, http.MethodPatch, "/users/{userID}", "/users/"+uuid.NewString(), AdminSetUserRole(svc, nil), `{}`, uuid.New())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without is_admin got %d", rec.Code)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeValidation, "admins cannot revoke their own role")
	rec = serve(t, http.MethodPatch, "/users/{userID}", "/users/"+uuid.NewString(), AdminSetUserRole(svc, nil), `{"is_admin":false}`, uuid.New())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminListListingsKeepsAllStatuses(t *testing.T) {
	svc := &stubAdminService{}
	rec := serve(t, http.MethodGet, "/listings", "/listings", AdminListListings(svc, nil), "", uuid.New())
	if rec.Code != http.StatusOK || svc.filters.Status != nil {
		t.Fatalf("expected no status filter, code=%d", rec.Code)
	}
}

func TestAdminListTransactionsAndCancel(t *testing.T) {
	svc := &stubAdminService{}
	rec := serve(t, http.MethodGet, "/transactions", "/transactions?status=pending", AdminListTransactions(svc, nil), "", uuid.New())
	if rec.Code != http.StatusOK || svc.status == nil || *svc.status != enums.TransactionStatusPending {
		t.Fatalf("expected pending filter, code=%d", rec.Code)
	}

	id := uuid.New()
	rec = serve(t, http.MethodPut, "/transactions/{transactionID}/cancel", "/transactions/"+id.String()+"/cancel", AdminCancelTransaction(svc, nil), "", uuid.New())
	if rec.Code != http.StatusOK || svc.cancelled != id {
		t.Fatalf("expected cancel of %s, code=%d", id, rec.Code)
	}
}
