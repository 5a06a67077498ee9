package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/internal/users"
	"github.com/koseken/game-trading/pkg/db/models"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 500
)

type SubmitInput struct {
	TransactionID uuid.UUID
	RevieweeID    uuid.UUID
	Rating        int
	Comment       *string
}

type ReviewDTO struct {
	ID            uuid.UUID         `json:"id"`
	TransactionID uuid.UUID         `json:"transaction_id"`
	ReviewerID    uuid.UUID         `json:"reviewer_id"`
	RevieweeID    uuid.UUID         `json:"reviewee_id"`
	Rating        int               `json:"rating"`
	Comment       *string           `json:"comment,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Reviewer      *users.SummaryDTO `json:"reviewer,omitempty"`
}

// Aggregate is a user's running rating.
type Aggregate struct {
	RatingAvg   float64 `json:"rating_avg"`
	RatingCount int     `json:"rating_count"`
}

// ReceivedList is one page of reviews naming a user as reviewee.
type ReceivedList struct {
	Items     []ReviewDTO `json:"items"`
	Page      int         `json:"page"`
	Limit     int         `json:"limit"`
	Total     int64       `json:"total"`
	Aggregate Aggregate   `json:"aggregate"`
}

func FromModel(r *models.Review) ReviewDTO {
	return ReviewDTO{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		ReviewerID:    r.ReviewerID,
		RevieweeID:    r.RevieweeID,
		Rating:        r.Rating,
		Comment:       r.Comment,
		CreatedAt:     r.CreatedAt,
		Reviewer:      users.SummaryFromModel(r.Reviewer),
	}
}
