package users

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/koseken/game-trading/pkg/db"
	"github.com/koseken/game-trading/pkg/db/models"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

// Service implements profile reads and self-service edits.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("users repository required")
	}
	return &Service{repo: repo}, nil
}

// GetMe returns the caller's own profile.
func (s *Service) GetMe(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

// GetProfile returns the public view of any user.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ProfileFromModel(user), nil
}

// IsAdmin reports the stored admin flag. Unknown users are not admins.
func (s *Service) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user.IsAdmin, nil
}

// UpdateMe applies a partial profile edit.
func (s *Service) UpdateMe(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*UserDTO, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if !usernamePattern.MatchString(username) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "username must be 3-20 characters of letters, digits, '_' or '-'")
		}
		taken, err := s.repo.UsernameTaken(ctx, username, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check username")
		}
		if taken {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		}
		updates["username"] = username
	}
	if input.AvatarURL != nil {
		avatar := strings.TrimSpace(*input.AvatarURL)
		if avatar == "" {
			updates["avatar_url"] = nil
		} else {
			if !isHTTPURL(avatar) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "avatar_url must be an http(s) URL")
			}
			updates["avatar_url"] = avatar
		}
	}

	if err := s.repo.Update(ctx, userID, updates); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return s.GetMe(ctx, userID)
}

func (s *Service) load(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
