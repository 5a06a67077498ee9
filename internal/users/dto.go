package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/pkg/db/models"
)

// UserDTO is the caller's own profile.
type UserDTO struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	RatingAvg   float64   `json:"rating_avg"`
	RatingCount int       `json:"rating_count"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SummaryDTO is the public projection embedded in listings, transactions and
// reviews. It never carries the email address.
type SummaryDTO struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	RatingAvg   float64   `json:"rating_avg"`
	RatingCount int       `json:"rating_count"`
}

// ProfileDTO is the public profile page.
type ProfileDTO struct {
	SummaryDTO
	CreatedAt time.Time `json:"created_at"`
}

// UpdateProfileInput carries a partial profile edit. Nil fields are untouched.
type UpdateProfileInput struct {
	Username  *string
	AvatarURL *string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		AvatarURL:   u.AvatarURL,
		RatingAvg:   u.RatingAvg,
		RatingCount: u.RatingCount,
		IsAdmin:     u.IsAdmin,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// SummaryFromModel returns nil for a nil user so unloaded associations stay
// out of the payload.
func SummaryFromModel(u *models.User) *SummaryDTO {
	if u == nil {
		return nil
	}
	return &SummaryDTO{
		ID:          u.ID,
		Username:    u.Username,
		AvatarURL:   u.AvatarURL,
		RatingAvg:   u.RatingAvg,
		RatingCount: u.RatingCount,
	}
}

func ProfileFromModel(u *models.User) *ProfileDTO {
	if u == nil {
		return nil
	}
	return &ProfileDTO{SummaryDTO: *SummaryFromModel(u), CreatedAt: u.CreatedAt}
}
