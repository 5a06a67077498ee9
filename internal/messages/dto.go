package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/internal/users"
	"github.com/koseken/game-trading/pkg/db/models"
)

const MaxContentLen = 1000

// MessageDTO is one chat entry. Clients dedupe realtime deliveries by ID and
// order by Seq.
type MessageDTO struct {
	ID            uuid.UUID         `json:"id"`
	TransactionID uuid.UUID         `json:"transaction_id"`
	Seq           int64             `json:"seq"`
	SenderID      uuid.UUID         `json:"sender_id"`
	Content       string            `json:"content"`
	CreatedAt     time.Time         `json:"created_at"`
	Sender        *users.SummaryDTO `json:"sender,omitempty"`
}

func FromModel(m *models.Message) MessageDTO {
	return MessageDTO{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		Seq:           m.Seq,
		SenderID:      m.SenderID,
		Content:       m.Content,
		CreatedAt:     m.CreatedAt,
		Sender:        users.SummaryFromModel(m.Sender),
	}
}
