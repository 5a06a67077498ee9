package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionRead stores how far a party has read a transaction's chat.
type TransactionRead struct {
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	LastReadSeq   int64     `gorm:"column:last_read_seq;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
