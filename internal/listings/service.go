package listings

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/koseken/game-trading/pkg/db/models"
	dbtypes "github.com/koseken/game-trading/pkg/db/types"
	"github.com/koseken/game-trading/pkg/enums"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
	"github.com/koseken/game-trading/pkg/outbox"
	"github.com/koseken/game-trading/pkg/outbox/payloads"
	"github.com/koseken/game-trading/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ImageCleaner removes stored images once their listing is gone.
type ImageCleaner interface {
	DeleteURLs(ctx context.Context, urls []string) error
}

// Service implements listing CRUD and the delete-or-withdraw rule.
type Service struct {
	repo       Repository
	tx         txRunner
	outbox     outbox.Emitter
	categories *CategoryCache
	images     ImageCleaner
	logg       *logger.Logger
}

// ServiceParams wires a listings Service. Images may be nil when blob cleanup
// is disabled.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outbox.Emitter
	Categories *CategoryCache
	Images     ImageCleaner
	Logger     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Categories == nil {
		return nil, fmt.Errorf("category cache required")
	}
	return &Service{
		repo:       params.Repository,
		tx:         params.Tx,
		outbox:     params.Outbox,
		categories: params.Categories,
		images:     params.Images,
		logg:       params.Logger,
	}, nil
}

// Create stores a new active listing for sellerID.
func (s *Service) Create(ctx context.Context, sellerID uuid.UUID, input CreateInput) (*ListingDTO, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	images := trimImages(input.Images)
	if err := validateFields(title, description, input.Price, images); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	listing := &models.Listing{
		SellerID:    sellerID,
		CategoryID:  input.CategoryID,
		Title:       title,
		Description: description,
		Price:       input.Price,
		Images:      dbtypes.StringList(images),
		Status:      enums.ListingStatusActive,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, listing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
		}
		return s.emitListingEvent(ctx, tx, enums.EventListingCreated, listing, sellerID, false)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, listing.ID)
}

// Get returns one listing in any status.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ListingDTO, error) {
	listing, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(listing)
	return &dto, nil
}

// List returns one page of listings. Browse callers default to active ones.
func (s *Service) List(ctx context.Context, filters Filters, page, limit int) (*ListingList, error) {
	p := pagination.NewPage(page, limit)
	page, limit = p.Number, p.Size
	rows, total, err := s.repo.List(ctx, filters, p.Offset(), p.Size)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}
	items := make([]ListingDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	return &ListingList{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// Update edits a listing owned by sellerID while it is still active.
func (s *Service) Update(ctx context.Context, sellerID, id uuid.UUID, input UpdateInput) (*ListingDTO, error) {
	listing, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can edit this listing")
	}
	if listing.Status != enums.ListingStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "listing can only be edited while active")
	}

	title, description, price, images := listing.Title, listing.Description, listing.Price, []string(listing.Images)
	updates := map[string]any{}
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
		updates["title"] = title
	}
	if input.Description != nil {
		description = strings.TrimSpace(*input.Description)
		updates["description"] = description
	}
	if input.Price != nil {
		price = *input.Price
		updates["price"] = price
	}
	if input.Images != nil {
		images = trimImages(input.Images)
		updates["images"] = dbtypes.StringList(images)
	}
	if input.CategoryID != nil {
		if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *input.CategoryID
	}
	if err := validateFields(title, description, price, images); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		dto := FromModel(listing)
		return &dto, nil
	}

	affected, err := s.repo.UpdateIfActive(ctx, id, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update listing")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "listing is no longer active")
	}
	return s.Get(ctx, id)
}

// Delete removes an active listing. A listing that historical transactions
// still reference is withdrawn instead. byAdmin skips the ownership check.
func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID, byAdmin bool) (*DeleteResult, error) {
	var (
		result *DeleteResult
		images []string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if !byAdmin && listing.SellerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can delete this listing")
		}
		if listing.Status != enums.ListingStatusActive {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "listing can only be deleted while active")
		}

		referenced, err := repo.CountTransactions(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count listing transactions")
		}
		if referenced > 0 {
			affected, err := repo.TransitionStatus(ctx, id, enums.ListingStatusActive, enums.ListingStatusCancelled)
			if err != nil {
				if errors.Is(err, enums.ErrIllegalTransition) {
					return pkgerrors.Wrap(pkgerrors.CodeInvalidState, err, "listing cannot be withdrawn")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "withdraw listing")
			}
			if affected == 0 {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "listing is no longer active")
			}
			listing.Status = enums.ListingStatusCancelled
			result = &DeleteResult{ListingID: id, Deleted: false, Status: listing.Status}
			return s.emitListingEvent(ctx, tx, enums.EventListingWithdrawn, listing, actorID, byAdmin)
		}

		affected, err := repo.DeleteIfActive(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete listing")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "listing is no longer active")
		}
		images = append(images, listing.Images...)
		result = &DeleteResult{ListingID: id, Deleted: true}
		return s.emitListingEvent(ctx, tx, enums.EventListingDeleted, listing, actorID, byAdmin)
	})
	if err != nil {
		return nil, err
	}

	if len(images) > 0 {
		s.cleanupImages(ctx, id, images)
	}
	return result, nil
}

// Categories returns every game category.
func (s *Service) Categories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.categories.All(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *CategoryFromModel(&rows[i]))
	}
	return out, nil
}

// Count returns the number of listings in every status.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *Service) cleanupImages(ctx context.Context, listingID uuid.UUID, images []string) {
	if s.images == nil {
		return
	}
	err := s.images.DeleteURLs(ctx, images)
	if err == nil || s.logg == nil {
		return
	}
	fields := map[string]any{
		"listing_id": listingID.String(),
		"failed":     len(multierr.Errors(err)),
		"error":      err.Error(),
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), "listing image cleanup failed")
}

func (s *Service) emitListingEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, listing *models.Listing, actorID uuid.UUID, byAdmin bool) error {
	role := "seller"
	if byAdmin {
		role = "admin"
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateListing,
		AggregateID:   listing.ID,
		Actor:         &outbox.Actor{UserID: actorID, Role: role},
		Data: payloads.ListingEvent{
			ListingID: listing.ID,
			SellerID:  listing.SellerID,
			Status:    listing.Status,
			Price:     listing.Price,
			ByAdmin:   byAdmin,
		},
	})
}

func (s *Service) ensureCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	category, err := s.categories.Get(ctx, *id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if category == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist").
			WithDetails(map[string]any{"category_id": id.String()})
	}
	return nil
}

func (s *Service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Listing, error) {
	listing, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return listing, nil
}

func validateFields(title, description string, price int64, images []string) error {
	if n := utf8.RuneCountInString(title); n < MinTitleLen || n > MaxTitleLen {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("title must be %d-%d characters", MinTitleLen, MaxTitleLen))
	}
	if n := utf8.RuneCountInString(description); n < MinDescriptionLen || n > MaxDescriptionLen {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("description must be %d-%d characters", MinDescriptionLen, MaxDescriptionLen))
	}
	if price < MinPrice || price > MaxPrice {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("price must be between %d and %d yen", MinPrice, MaxPrice))
	}
	if len(images) < MinImages || len(images) > MaxImages {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("between %d and %d images are required", MinImages, MaxImages))
	}
	for _, img := range images {
		u, err := url.Parse(img)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "images must be http(s) URLs")
		}
	}
	return nil
}

func trimImages(images []string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if trimmed := strings.TrimSpace(img); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
