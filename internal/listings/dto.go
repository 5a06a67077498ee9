package listings

import (
	"time"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/internal/users"
	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
)

const (
	MinTitleLen       = 1
	MaxTitleLen       = 100
	MinDescriptionLen = 10
	MaxDescriptionLen = 2000
	MinPrice          = 100
	MaxPrice          = 1_000_000
	MinImages         = 1
	MaxImages         = 3
)

// CategoryDTO is a game category.
type CategoryDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	ImageURL *string   `json:"image_url,omitempty"`
}

// ListingDTO is the listing payload returned by every listing route.
type ListingDTO struct {
	ID          uuid.UUID           `json:"id"`
	SellerID    uuid.UUID           `json:"seller_id"`
	CategoryID  *uuid.UUID          `json:"category_id,omitempty"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Price       int64               `json:"price"`
	Images      []string            `json:"images"`
	Status      enums.ListingStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Seller      *users.SummaryDTO   `json:"seller,omitempty"`
	Category    *CategoryDTO        `json:"category,omitempty"`
}

// ListingList is one offset page of listings.
type ListingList struct {
	Items []ListingDTO `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int64        `json:"total"`
}

// CreateInput is a new listing as submitted by its seller.
type CreateInput struct {
	CategoryID  *uuid.UUID
	Title       string
	Description string
	Price       int64
	Images      []string
}

// UpdateInput is a partial listing edit. Nil fields are untouched.
type UpdateInput struct {
	CategoryID  *uuid.UUID
	Title       *string
	Description *string
	Price       *int64
	Images      []string
}

// Filters narrow the browse and admin listing queries.
type Filters struct {
	Status     *enums.ListingStatus
	CategoryID *uuid.UUID
	SellerID   *uuid.UUID
	Query      string
}

// DeleteResult tells the caller whether the listing was removed or withdrawn.
type DeleteResult struct {
	ListingID uuid.UUID           `json:"listing_id"`
	Deleted   bool                `json:"deleted"`
	Status    enums.ListingStatus `json:"status,omitempty"`
}

func CategoryFromModel(c *models.Category) *CategoryDTO {
	if c == nil {
		return nil
	}
	return &CategoryDTO{ID: c.ID, Name: c.Name, Slug: c.Slug, ImageURL: c.ImageURL}
}

func FromModel(l *models.Listing) ListingDTO {
	images := append([]string{}, l.Images...)
	return ListingDTO{
		ID:          l.ID,
		SellerID:    l.SellerID,
		CategoryID:  l.CategoryID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Images:      images,
		Status:      l.Status,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
		Seller:      users.SummaryFromModel(l.Seller),
		Category:    CategoryFromModel(l.Category),
	}
}
