package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the marketplace projection of an identity-provider account. Rows
// are provisioned by the identity provider; the API only reads and edits them.
type User struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email       string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	Username    string    `gorm:"column:username;type:text;not null;uniqueIndex"`
	AvatarURL   *string   `gorm:"column:avatar_url"`
	RatingAvg   float64   `gorm:"column:rating_avg;not null;default:0"`
	RatingCount int       `gorm:"column:rating_count;not null;default:0"`
	IsAdmin     bool      `gorm:"column:is_admin;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
