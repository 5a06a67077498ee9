package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/api/responses"
	"github.com/koseken/game-trading/api/validators"
	"github.com/koseken/game-trading/internal/reviews"
	"github.com/koseken/game-trading/pkg/logger"
)

type ReviewService interface {
	Submit(ctx context.Context, reviewerID uuid.UUID, input reviews.SubmitInput) (*reviews.ReviewDTO, error)
	ListReceived(ctx context.Context, userID uuid.UUID, page, limit int) (*reviews.ReceivedList, error)
}

type submitReviewRequest struct {
	TransactionID uuid.UUID `json:"transaction_id" validate:"required"`
	RevieweeID    uuid.UUID `json:"reviewee_id" validate:"required"`
	Rating        int       `json:"rating" validate:"required,min=1,max=5"`
	Comment       *string   `json:"comment,omitempty" validate:"omitempty,max=500"`
}

// ReviewSubmit records the caller's review of the other party of a completed
// transaction. A second review by the same reviewer answers 409.
func ReviewSubmit(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "review")
			return
		}
		reviewerID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var req submitReviewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.Submit(r.Context(), reviewerID, reviews.SubmitInput{
			TransactionID: req.TransactionID,
			RevieweeID:    req.RevieweeID,
			Rating:        req.Rating,
			Comment:       req.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, review)
	}
}

// UserReviews lists reviews a user has received, newest first.
func UserReviews(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "review")
			return
		}
		userID, ok := pathID(w, r, logg, "userID")
		if !ok {
			return
		}
		page, limit, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.ListReceived(r.Context(), userID, page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
