package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
	"github.com/koseken/game-trading/pkg/pagination"
)

// Repository defines persistence for transactions, the listing status moves
// they drive, and read cursors.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error)
	FindOpen(ctx context.Context, listingID, buyerID uuid.UUID) (*models.Transaction, error)
	TransitionListing(ctx context.Context, listingID uuid.UUID, from, to enums.ListingStatus) (int64, error)
	Create(ctx context.Context, txn *models.Transaction) error
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus, completedAt *time.Time) (int64, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params ListParams, cursor *pagination.Cursor, limit int) ([]models.Transaction, error)
	LastMessages(ctx context.Context, transactionIDs []uuid.UUID) (map[uuid.UUID]models.Message, error)
	UnreadCounts(ctx context.Context, userID uuid.UUID, transactionIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	MaxSeq(ctx context.Context, transactionID uuid.UUID) (int64, error)
	FindReadSeq(ctx context.Context, transactionID, userID uuid.UUID) (int64, error)
	UpsertReadSeq(ctx context.Context, transactionID, userID uuid.UUID, seq int64) error
	List(ctx context.Context, status *enums.TransactionStatus, offset, limit int) ([]models.Transaction, int64, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	Recent(ctx context.Context, limit int) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", listingID).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) FindOpen(ctx context.Context, listingID, buyerID uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND buyer_id = ? AND status IN ?", listingID, buyerID, enums.OpenTransactionStatuses).
		Order("created_at DESC").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// TransitionListing is the conditional update that decides races on a
// listing: only the caller that still sees `from` gets a row back. Moves the
// listing transition table forbids never reach the database.
func (r *repository) TransitionListing(ctx context.Context, listingID uuid.UUID, from, to enums.ListingStatus) (int64, error) {
	if err := enums.CheckListingTransition(from, to); err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", listingID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(txn).Error
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindDetail(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Listing").
		Preload("Buyer").
		Preload("Seller").
		First(&txn, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus, completedAt *time.Time) (int64, error) {
	if err := enums.CheckTransactionTransition(from, to); err != nil {
		return 0, err
	}
	updates := map[string]any{"status": to}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, params ListParams, cursor *pagination.Cursor, limit int) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{})
	switch params.Role {
	case enums.TransactionRoleBuyer:
		query = query.Where("buyer_id = ?", userID)
	case enums.TransactionRoleSeller:
		query = query.Where("seller_id = ?", userID)
	default:
		query = query.Where("(buyer_id = ? OR seller_id = ?)", userID, userID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Transaction
	err := query.
		Preload("Listing").
		Preload("Buyer").
		Preload("Seller").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) LastMessages(ctx context.Context, transactionIDs []uuid.UUID) (map[uuid.UUID]models.Message, error) {
	out := make(map[uuid.UUID]models.Message, len(transactionIDs))
	if len(transactionIDs) == 0 {
		return out, nil
	}
	var rows []models.Message
	err := r.db.WithContext(ctx).Raw(`
SELECT m.* FROM messages m
JOIN (
	SELECT transaction_id, MAX(seq) AS seq FROM messages
	WHERE transaction_id IN ?
	GROUP BY transaction_id
) latest ON latest.transaction_id = m.transaction_id AND latest.seq = m.seq`, transactionIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TransactionID] = row
	}
	return out, nil
}

type unreadRow struct {
	TransactionID uuid.UUID
	Unread        int64
}

// UnreadCounts counts messages from the other party above the user's read
// cursor, per transaction.
func (r *repository) UnreadCounts(ctx context.Context, userID uuid.UUID, transactionIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(transactionIDs))
	if len(transactionIDs) == 0 {
		return out, nil
	}
	var rows []unreadRow
	err := r.db.WithContext(ctx).Raw(`
SELECT m.transaction_id AS transaction_id, COUNT(*) AS unread
FROM messages m
LEFT JOIN transaction_reads r ON r.transaction_id = m.transaction_id AND r.user_id = ?
WHERE m.transaction_id IN ?
  AND m.sender_id <> ?
  AND m.seq > COALESCE(r.last_read_seq, 0)
GROUP BY m.transaction_id`, userID, transactionIDs, userID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TransactionID] = row.Unread
	}
	return out, nil
}

func (r *repository) MaxSeq(ctx context.Context, transactionID uuid.UUID) (int64, error) {
	var maxSeq int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("transaction_id = ?", transactionID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	return maxSeq, err
}

func (r *repository) FindReadSeq(ctx context.Context, transactionID, userID uuid.UUID) (int64, error) {
	var read models.TransactionRead
	err := r.db.WithContext(ctx).
		Where("transaction_id = ? AND user_id = ?", transactionID, userID).
		Limit(1).
		Find(&read).Error
	if err != nil {
		return 0, err
	}
	return read.LastReadSeq, nil
}

func (r *repository) UpsertReadSeq(ctx context.Context, transactionID, userID uuid.UUID, seq int64) error {
	read := models.TransactionRead{TransactionID: transactionID, UserID: userID, LastReadSeq: seq}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_read_seq", "updated_at"}),
		}).
		Create(&read).Error
}

func (r *repository) List(ctx context.Context, status *enums.TransactionStatus, offset, limit int) ([]models.Transaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Transaction
	err := query.
		Preload("Listing").
		Preload("Buyer").
		Preload("Seller").
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

func (r *repository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).Count(&total).Error
	return total, err
}

func (r *repository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("created_at >= ?", since).
		Count(&total).Error
	return total, err
}

func (r *repository) Recent(ctx context.Context, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Listing").
		Preload("Buyer").
		Preload("Seller").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
