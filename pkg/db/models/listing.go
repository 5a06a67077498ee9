package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/koseken/game-trading/pkg/db/types"
	"github.com/koseken/game-trading/pkg/enums"
)

// Listing is an item offered for sale. Status moves are owned by the
// transaction lifecycle; edits by the seller are limited to active listings.
type Listing struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID    uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	CategoryID  *uuid.UUID          `gorm:"column:category_id;type:uuid;index"`
	Title       string              `gorm:"column:title;type:text;not null"`
	Description string              `gorm:"column:description;type:text;not null"`
	Price       int64               `gorm:"column:price;not null"`
	Images      dbtypes.StringList  `gorm:"column:images;not null"`
	Status      enums.ListingStatus `gorm:"column:status;type:listing_status;not null;default:'active';index"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Seller   *User     `gorm:"foreignKey:SellerID;references:ID"`
	Category *Category `gorm:"foreignKey:CategoryID;references:ID"`
}

func (l *Listing) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
