package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/internal/reviews"
	"github.com/koseken/game-trading/internal/users"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
)

type stubUserService struct {
	err    error
	update users.UpdateProfileInput
}

func (s *stubUserService) GetMe(_ context.Context, id uuid.UUID) (*users.UserDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &users.UserDTO{ID: id, Email: "me@example.com", Username: "me"}, nil
}

func (s *stubUserService) GetProfile(_ context.Context, id uuid.UUID) (*users.ProfileDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &users.ProfileDTO{SummaryDTO: users.SummaryDTO{ID: id, Username: "trader", RatingAvg: 4.5, RatingCount: 2}}, nil
}

func (s *stubUserService) UpdateMe(_ context.Context, id uuid.UUID, input users.UpdateProfileInput) (*users.UserDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.update = input
	return &users.UserDTO{ID: id, Username: *input.Username}, nil
}

func TestUserMeRequiresAuth(t *testing.T) {
	rec := serve(t, http.MethodGet, "/users/me", "/users/me", UserMe(&stubUserService{}, nil), "", uuid.Nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	me := uuid.New()
	rec = serve(t, http.MethodGet, "/users/me", "/users/me", UserMe(&stubUserService{}, nil), "", me)
	var dto users.UserDTO
	decodeData(t, rec, &dto)
	if dto.ID != me {
		t.Fatalf("expected own profile")
	}
}

func TestUserUpdateMe(t *testing.T) {
	svc := &stubUserService{}
	rec := serve(t, http.MethodPatch, "/users/me", "/users/me", UserUpdateMe(svc, nil), `{"username":"new_name"}`, uuid.New())
	if rec.Code != http.StatusOK || svc.update.Username == nil || *svc.update.Username != "new_name" {
		t.Fatalf("expected update to pass through, code=%d", rec.Code)
	}

	rec = serve(t, http.MethodPatch, "/users/me", "/users/me", UserUpdateMe(svc, nil), `{"avatar_url":"not a url"}`, uuid.New())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad avatar got %d", rec.Code)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
	rec = serve(t, http.MethodPatch, "/users/me", "/users/me", UserUpdateMe(svc, nil), `{"username":"taken"}`, uuid.New())
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
}

func TestUserProfileNotFound(t *testing.T) {
	svc := &stubUserService{err: pkgerrors.New(pkgerrors.CodeNotFound, "user not found")}
	rec := serve(t, http.MethodGet, "/users/{userID}", "/users/"+uuid.NewString(), UserProfile(svc, nil), "", uuid.Nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

type stubReviewService struct {
	err   error
	input reviews.SubmitInput
	page  int
}

func (s *stubReviewService) Submit(_ context.Context, reviewerID uuid.UUID, input reviews.SubmitInput) (*reviews.ReviewDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.input = input
	return &reviews.ReviewDTO{ID: uuid.New(), ReviewerID: reviewerID, RevieweeID: input.RevieweeID, Rating: input.Rating}, nil
}

func (s *stubReviewService) ListReceived(_ context.Context, _ uuid.UUID, page, limit int) (*reviews.ReceivedList, error) {
	s.page = page
	return &reviews.ReceivedList{Items: []reviews.ReviewDTO{}, Page: page, Limit: limit}, s.err
}

func TestReviewSubmit(t *testing.T) {
	svc := &stubReviewService{}
	body := `{"transaction_id":"` + uuid.NewString() + `","reviewee_id":"` + uuid.NewString() + `","rating":5,"comment":"great"}`
	rec := serve(t, http.MethodPost, "/reviews", "/reviews", ReviewSubmit(svc, nil), body, uuid.New())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	if svc.input.Rating != 5 || svc.input.Comment == nil {
		t.Fatalf("unexpected input %+v", svc.input)
	}
}

func TestReviewSubmitErrors(t *testing.T) {
	body := func(rating string) string {
		return `{"transaction_id":"` + uuid.NewString() + `","reviewee_id":"` + uuid.NewString() + `","rating":` + rating + `}`
	}
	cases := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{"rating too high", nil, body("6"), http.StatusBadRequest},
		{"rating zero", nil, body("0"), http.StatusBadRequest},
		{"not found", pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found"), body("4"), http.StatusNotFound},
		{"outsider", pkgerrors.New(pkgerrors.CodeForbidden, "not a party"), body("4"), http.StatusForbidden},
		{"not completed", pkgerrors.New(pkgerrors.CodeInvalidState, "transaction is not completed"), body("4"), http.StatusBadRequest},
		{"duplicate", pkgerrors.New(pkgerrors.CodeConflict, "already reviewed"), body("4"), http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, http.MethodPost, "/reviews", "/reviews", ReviewSubmit(&stubReviewService{err: tc.err}, nil), tc.body, uuid.New())
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestUserReviewsPaging(t *testing.T) {
	svc := &stubReviewService{}
	rec := serve(t, http.MethodGet, "/users/{userID}/reviews", "/users/"+uuid.NewString()+"/reviews?page=3", UserReviews(svc, nil), "", uuid.Nil)
	if rec.Code != http.StatusOK || svc.page != 3 {
		t.Fatalf("expected page 3, code=%d page=%d", rec.Code, svc.page)
	}
}
