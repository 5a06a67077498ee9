package listings

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
)

// Repository persists listings and reads categories.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	List(ctx context.Context, filters Filters, offset, limit int) ([]models.Listing, int64, error)
	UpdateIfActive(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.ListingStatus) (int64, error)
	DeleteIfActive(ctx context.Context, id uuid.UUID) (int64, error)
	CountTransactions(ctx context.Context, listingID uuid.UUID) (int64, error)
	Count(ctx context.Context) (int64, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a listings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(listing).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("Seller").
		Preload("Category").
		First(&listing, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&listing, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) List(ctx context.Context, filters Filters, offset, limit int) ([]models.Listing, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Listing{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CategoryID != nil {
		query = query.Where("category_id = ?", *filters.CategoryID)
	}
	if filters.SellerID != nil {
		query = query.Where("seller_id = ?", *filters.SellerID)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Listing
	err := query.
		Preload("Seller").
		Preload("Category").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) UpdateIfActive(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, enums.ListingStatusActive).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// TransitionStatus moves a listing from one status to another only if it is
// still in the expected status. The affected row count reports who won.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.ListingStatus) (int64, error) {
	if err := enums.CheckListingTransition(from, to); err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteIfActive(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, enums.ListingStatusActive).
		Delete(&models.Listing{})
	return res.RowsAffected, res.Error
}

func (r *repository) CountTransactions(ctx context.Context, listingID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("listing_id = ?", listingID).
		Count(&total).Error
	return total, err
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Listing{}).Count(&total).Error
	return total, err
}

func (r *repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}
