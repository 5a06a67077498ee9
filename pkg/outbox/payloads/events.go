package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/pkg/enums"
)

// TransactionCreatedEvent is emitted when a buyer reserves a listing.
type TransactionCreatedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ListingID     uuid.UUID `json:"listing_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	Price         int64     `json:"price"`
}

// TransactionCompletedEvent is emitted when the seller closes a trade.
type TransactionCompletedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ListingID     uuid.UUID `json:"listing_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

// TransactionCancelledEvent is emitted when a party or an admin cancels.
type TransactionCancelledEvent struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	ListingID     uuid.UUID               `json:"listing_id"`
	BuyerID       uuid.UUID               `json:"buyer_id"`
	SellerID      uuid.UUID               `json:"seller_id"`
	CancelledBy   uuid.UUID               `json:"cancelled_by"`
	ByAdmin       bool                    `json:"by_admin"`
	FromStatus    enums.TransactionStatus `json:"from_status"`
}

// ReviewSubmittedEvent carries the reviewee's recomputed aggregate.
type ReviewSubmittedEvent struct {
	ReviewID      uuid.UUID `json:"review_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	ReviewerID    uuid.UUID `json:"reviewer_id"`
	RevieweeID    uuid.UUID `json:"reviewee_id"`
	Rating        int       `json:"rating"`
	RatingAvg     float64   `json:"rating_avg"`
	RatingCount   int       `json:"rating_count"`
}

// ListingEvent covers listing creation, withdrawal and deletion.
type ListingEvent struct {
	ListingID uuid.UUID           `json:"listing_id"`
	SellerID  uuid.UUID           `json:"seller_id"`
	Status    enums.ListingStatus `json:"status"`
	Price     int64               `json:"price,omitempty"`
	ByAdmin   bool                `json:"by_admin,omitempty"`
}

// Keyed is implemented by every payload; the key must equal the outbox row's
// aggregate_id.
type Keyed interface {
	AggregateKey() uuid.UUID
}

func (e TransactionCreatedEvent) AggregateKey() uuid.UUID   { return e.TransactionID }
func (e TransactionCompletedEvent) AggregateKey() uuid.UUID { return e.TransactionID }
func (e TransactionCancelledEvent) AggregateKey() uuid.UUID { return e.TransactionID }
func (e ReviewSubmittedEvent) AggregateKey() uuid.UUID      { return e.ReviewID }
func (e ListingEvent) AggregateKey() uuid.UUID              { return e.ListingID }
