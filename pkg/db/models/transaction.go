package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/koseken/game-trading/pkg/enums"
)

// Transaction is one buyer's negotiation over one listing. SellerID is copied
// from the listing at creation.
type Transaction struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ListingID   uuid.UUID               `gorm:"column:listing_id;type:uuid;not null;index"`
	BuyerID     uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID    uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index"`
	Status      enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'in_progress'"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	CompletedAt *time.Time              `gorm:"column:completed_at"`

	Listing *Listing `gorm:"foreignKey:ListingID;references:ID"`
	Buyer   *User    `gorm:"foreignKey:BuyerID;references:ID"`
	Seller  *User    `gorm:"foreignKey:SellerID;references:ID"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsParty reports whether userID is the buyer or the seller.
func (t *Transaction) IsParty(userID uuid.UUID) bool {
	return t != nil && (t.BuyerID == userID || t.SellerID == userID)
}

// Counterparty returns the other side of the trade relative to userID.
func (t *Transaction) Counterparty(userID uuid.UUID) uuid.UUID {
	if t.BuyerID == userID {
		return t.SellerID
	}
	return t.BuyerID
}
