package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/api/responses"
	"github.com/koseken/game-trading/api/validators"
	"github.com/koseken/game-trading/internal/listings"
	"github.com/koseken/game-trading/pkg/enums"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
)

const maxSearchLen = 100

// ListingService is the listing surface the HTTP layer needs.
type ListingService interface {
	Create(ctx context.Context, sellerID uuid.UUID, input listings.CreateInput) (*listings.ListingDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*listings.ListingDTO, error)
	List(ctx context.Context, filters listings.Filters, page, limit int) (*listings.ListingList, error)
	Update(ctx context.Context, sellerID, id uuid.UUID, input listings.UpdateInput) (*listings.ListingDTO, error)
	Delete(ctx context.Context, actorID, id uuid.UUID, byAdmin bool) (*listings.DeleteResult, error)
	Categories(ctx context.Context) ([]listings.CategoryDTO, error)
}

type createListingRequest struct {
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	Title       string     `json:"title" validate:"required,max=100"`
	Description string     `json:"description" validate:"required,min=10,max=2000"`
	Price       int64      `json:"price" validate:"required,min=100,max=1000000"`
	Images      []string   `json:"images" validate:"required,min=1,max=3,dive,required"`
}

type updateListingRequest struct {
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	Title       *string    `json:"title,omitempty" validate:"omitempty,max=100"`
	Description *string    `json:"description,omitempty" validate:"omitempty,min=10,max=2000"`
	Price       *int64     `json:"price,omitempty" validate:"omitempty,min=100,max=1000000"`
	Images      []string   `json:"images,omitempty" validate:"omitempty,min=1,max=3,dive,required"`
}

// ListingCreate publishes a new active listing for the caller.
func ListingCreate(svc ListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listing")
			return
		}
		sellerID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var req createListingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Create(r.Context(), sellerID, listings.CreateInput{
			CategoryID:  req.CategoryID,
			Title:       req.Title,
			Description: req.Description,
			Price:       req.Price,
			Images:      req.Images,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, listing)
	}
}

// ListingBrowse is the public catalogue. Without a status filter only
// active listings are shown.
func ListingBrowse(svc ListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listing")
			return
		}
		filters, page, limit, err := parseListingQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.Status == nil {
			active := enums.ListingStatusActive
			filters.Status = &active
		}

		out, err := svc.List(r.Context(), filters, page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// ListingMine returns the caller's own listings in every status.
func ListingMine(svc ListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listing")
			return
		}
		sellerID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		filters, page, limit, err := parseListingQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.SellerID = &sellerID

		out, err := svc.List(r.Context(), filters, page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func ListingDetail(svc ListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listing")
			return
		}
		id, ok := pathID(w, r, logg, "listingID")
		if !ok {
			return
		}
		listing, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// ListingUpdate applies a partial edit from the owner.
func ListingUpdate(svc ListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listing")
			return
		}
		sellerID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, ok := pathID(w, r, logg, "listingID")
		if !ok {
			return
		}

		var req updateListingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Update(r.Context(), sellerID, id, listings.UpdateInput{
			CategoryID:  req.CategoryID,
			Title:       req.Title,
			Description: req.Description,
			Price:       req.Price,
			Images:      req.Images,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func ListingDelete(svc ListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listing")
			return
		}
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, ok := pathID(w, r, logg, "listingID")
		if !ok {
			return
		}
		result, err := svc.Delete(r.Context(), actorID, id, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CategoryList(svc ListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listing")
			return
		}
		categories, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

func parseListingQuery(r *http.Request) (listings.Filters, int, int, error) {
	var filters listings.Filters

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseListingStatus(raw)
		if err != nil {
			return filters, 0, 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
		}
		filters.Status = &status
	}
	categoryID, err := validators.ParseQueryUUID(r, "category_id")
	if err != nil {
		return filters, 0, 0, err
	}
	filters.CategoryID = categoryID

	sellerID, err := validators.ParseQueryUUID(r, "seller_id")
	if err != nil {
		return filters, 0, 0, err
	}
	filters.SellerID = sellerID
	filters.Query = validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLen)

	page, limit, err := parsePage(r)
	if err != nil {
		return filters, 0, 0, err
	}
	return filters, page, limit, nil
}

func parsePage(r *http.Request) (int, int, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, 100000)
	if err != nil {
		return 0, 0, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}
