package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
)

const maxStoredErrorLen = 1024

var errNoTx = errors.New("outbox repository needs a transaction")

// Repository reads and writes outbox_events and outbox_dlq. Every method runs
// on the caller's transaction.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Append(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(&event).Error
}

// Claim returns up to limit unpublished rows in insertion order. On Postgres
// the rows stay locked until tx ends, so parallel publishers skip each
// other's batches.
func (r *Repository) Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	q := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Update("published_at", time.Now().UTC()).Error
}

// RecordFailure bumps attempt_count so the row backs off toward the
// dead-letter ceiling.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    clip(cause),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// DeadLetter copies the row into outbox_dlq and pins its attempt_count at
// ceiling so Claim never returns it again.
func (r *Repository) DeadLetter(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, ceiling int) error {
	if tx == nil {
		return errNoTx
	}
	if ceiling <= event.AttemptCount {
		ceiling = event.AttemptCount + 1
	}
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  clip(cause),
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"last_error":    clip(cause),
			"attempt_count": ceiling,
		}).Error
}

func clip(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > maxStoredErrorLen {
		msg = msg[:maxStoredErrorLen]
	}
	return &msg
}
