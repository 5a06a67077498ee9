package transactions

import (
	"time"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/internal/messages"
	"github.com/koseken/game-trading/internal/users"
	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
)

// System messages appended by the lifecycle.
const (
	MessageStarted   = "取引を開始しました。よろしくお願いします。"
	MessageCompleted = "取引が完了しました。ご利用ありがとうございました。"
	MessageCancelled = "取引がキャンセルされました。"
)

// EventTransactionUpdated is the realtime event sent on every status change.
const EventTransactionUpdated = "transaction.updated"

// ListingSummaryDTO is the slice of a listing shown next to a transaction.
type ListingSummaryDTO struct {
	ID     uuid.UUID           `json:"id"`
	Title  string              `json:"title"`
	Price  int64               `json:"price"`
	Image  *string             `json:"image,omitempty"`
	Status enums.ListingStatus `json:"status"`
}

// TransactionDTO is a transaction with its listing and both parties.
type TransactionDTO struct {
	ID          uuid.UUID               `json:"id"`
	ListingID   uuid.UUID               `json:"listing_id"`
	BuyerID     uuid.UUID               `json:"buyer_id"`
	SellerID    uuid.UUID               `json:"seller_id"`
	Status      enums.TransactionStatus `json:"status"`
	CreatedAt   time.Time               `json:"created_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
	Listing     *ListingSummaryDTO      `json:"listing,omitempty"`
	Buyer       *users.SummaryDTO       `json:"buyer,omitempty"`
	Seller      *users.SummaryDTO       `json:"seller,omitempty"`
}

// ListItemDTO is one row of the caller's transaction list.
type ListItemDTO struct {
	TransactionDTO
	Role         enums.TransactionRole `json:"role"`
	Counterparty *users.SummaryDTO     `json:"counterparty,omitempty"`
	LastMessage  *messages.MessageDTO  `json:"last_message,omitempty"`
	UnreadCount  int64                 `json:"unread_count"`
}

// TransactionList is one cursor page of the caller's transactions.
type TransactionList struct {
	Items      []ListItemDTO `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// AdminTransactionList is one offset page for moderators.
type AdminTransactionList struct {
	Items []TransactionDTO `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int64            `json:"total"`
}

// ReadStateDTO reports the caller's read cursor after MarkRead.
type ReadStateDTO struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	LastReadSeq   int64     `json:"last_read_seq"`
	UnreadCount   int64     `json:"unread_count"`
}

// ListParams filters the caller's transaction list.
type ListParams struct {
	Role   enums.TransactionRole
	Status *enums.TransactionStatus
	Cursor string
	Limit  int
}

func listingSummary(l *models.Listing) *ListingSummaryDTO {
	if l == nil {
		return nil
	}
	out := &ListingSummaryDTO{ID: l.ID, Title: l.Title, Price: l.Price, Status: l.Status}
	if len(l.Images) > 0 {
		first := l.Images[0]
		out.Image = &first
	}
	return out
}

func FromModel(t *models.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          t.ID,
		ListingID:   t.ListingID,
		BuyerID:     t.BuyerID,
		SellerID:    t.SellerID,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
		Listing:     listingSummary(t.Listing),
		Buyer:       users.SummaryFromModel(t.Buyer),
		Seller:      users.SummaryFromModel(t.Seller),
	}
}
