package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/koseken/game-trading/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Exists(ctx context.Context, transactionID, reviewerID uuid.UUID) (bool, error)
	Insert(ctx context.Context, review *models.Review) error
	Aggregate(ctx context.Context, revieweeID uuid.UUID) (Aggregate, error)
	ListReceived(ctx context.Context, revieweeID uuid.UUID, offset, limit int) ([]models.Review, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) Exists(ctx context.Context, transactionID, reviewerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("transaction_id = ? AND reviewer_id = ?", transactionID, reviewerID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) Insert(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(review).Error
}

// Aggregate recomputes the rating from every review naming revieweeID.
func (r *repository) Aggregate(ctx context.Context, revieweeID uuid.UUID) (Aggregate, error) {
	var agg Aggregate
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS rating_avg, COUNT(*) AS rating_count").
		Where("reviewee_id = ?", revieweeID).
		Scan(&agg).Error
	return agg, err
}

func (r *repository) ListReceived(ctx context.Context, revieweeID uuid.UUID, offset, limit int) ([]models.Review, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Review{}).Where("reviewee_id = ?", revieweeID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Review
	err := query.
		Preload("Reviewer").
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
