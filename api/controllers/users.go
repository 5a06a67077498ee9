package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/api/responses"
	"github.com/koseken/game-trading/api/validators"
	"github.com/koseken/game-trading/internal/users"
	"github.com/koseken/game-trading/pkg/logger"
)

type UserService interface {
	GetMe(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*users.ProfileDTO, error)
	UpdateMe(ctx context.Context, userID uuid.UUID, input users.UpdateProfileInput) (*users.UserDTO, error)
}

type updateProfileRequest struct {
	Username  *string `json:"username,omitempty" validate:"omitempty,min=3,max=20"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

func UserMe(svc UserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "user")
			return
		}
		userID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		me, err := svc.GetMe(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, me)
	}
}

func UserUpdateMe(svc UserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "user")
			return
		}
		userID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var req updateProfileRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		me, err := svc.UpdateMe(r.Context(), userID, users.UpdateProfileInput{
			Username:  req.Username,
			AvatarURL: req.AvatarURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, me)
	}
}

// UserProfile is the public profile, without the email address.
func UserProfile(svc UserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "user")
			return
		}
		userID, ok := pathID(w, r, logg, "userID")
		if !ok {
			return
		}
		profile, err := svc.GetProfile(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
