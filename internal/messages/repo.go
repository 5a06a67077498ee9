package messages

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/koseken/game-trading/pkg/db/models"
)

// Repository persists the append-only chat log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	FindTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	NextSeq(ctx context.Context, transactionID uuid.UUID) (int64, error)
	Insert(ctx context.Context, msg *models.Message) error
	List(ctx context.Context, transactionID uuid.UUID, afterSeq int64, limit int) ([]models.Message, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a messages repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockTransaction takes the row lock every append serializes on.
func (r *repository) LockTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, "id = ?", transactionID).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", transactionID).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) NextSeq(ctx context.Context, transactionID uuid.UUID) (int64, error) {
	var maxSeq int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("transaction_id = ?", transactionID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

func (r *repository) Insert(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error
}

func (r *repository) List(ctx context.Context, transactionID uuid.UUID, afterSeq int64, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).
		Preload("Sender").
		Where("transaction_id = ? AND seq > ?", transactionID, afterSeq).
		Order("seq ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
