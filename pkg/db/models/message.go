package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is an immutable chat entry. Seq is assigned per transaction under
// the transaction row lock and defines the read order.
type Message struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex:ux_messages_transaction_seq,priority:1"`
	Seq           int64     `gorm:"column:seq;not null;uniqueIndex:ux_messages_transaction_seq,priority:2"`
	SenderID      uuid.UUID `gorm:"column:sender_id;type:uuid;not null"`
	Content       string    `gorm:"column:content;type:text;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`

	Sender *User `gorm:"foreignKey:SenderID;references:ID"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
