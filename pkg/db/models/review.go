package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is written once per (transaction, reviewer) and never changes.
type Review struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex:ux_reviews_transaction_reviewer,priority:1"`
	ReviewerID    uuid.UUID `gorm:"column:reviewer_id;type:uuid;not null;uniqueIndex:ux_reviews_transaction_reviewer,priority:2"`
	RevieweeID    uuid.UUID `gorm:"column:reviewee_id;type:uuid;not null;index"`
	Rating        int       `gorm:"column:rating;not null"`
	Comment       *string   `gorm:"column:comment"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`

	Reviewer *User `gorm:"foreignKey:ReviewerID;references:ID"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
