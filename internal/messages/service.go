package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
)

// EventMessageCreated is the realtime event type for a new chat entry.
const EventMessageCreated = "message.created"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Broadcaster pushes an event to everyone watching a transaction.
type Broadcaster interface {
	Broadcast(ctx context.Context, transactionID uuid.UUID, eventType string, data any) error
}

type messageMetrics interface {
	MessageAppended()
}

// Service implements the per-transaction chat log.
type Service struct {
	repo        Repository
	tx          txRunner
	broadcaster Broadcaster
	metrics     messageMetrics
	logg        *logger.Logger
}

// ServiceParams wires a messages Service. Broadcaster and Metrics are optional.
type ServiceParams struct {
	Repository  Repository
	Tx          txRunner
	Broadcaster Broadcaster
	Metrics     messageMetrics
	Logger      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("messages repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Service{
		repo:        params.Repository,
		tx:          params.Tx,
		broadcaster: params.Broadcaster,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// List returns the chat log in seq order. afterSeq > 0 returns only newer
// entries for catch-up after a reconnect.
func (s *Service) List(ctx context.Context, transactionID, actorID uuid.UUID, afterSeq int64, limit int) ([]MessageDTO, error) {
	txn, err := s.repo.FindTransaction(ctx, transactionID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	if !txn.IsParty(actorID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this transaction")
	}
	if afterSeq < 0 {
		afterSeq = 0
	}
	rows, err := s.repo.List(ctx, transactionID, afterSeq, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	out := make([]MessageDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

// Send appends a party's message. Messages are accepted while the
// transaction is open or completed, never once cancelled.
func (s *Service) Send(ctx context.Context, transactionID, senderID uuid.UUID, content string) (*MessageDTO, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("message content must be at most %d characters", MaxContentLen))
	}

	var msg *models.Message
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txn, err := s.repo.WithTx(tx).LockTransaction(ctx, transactionID)
		if err != nil {
			return mapLoadError(err)
		}
		if !txn.IsParty(senderID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this transaction")
		}
		if txn.Status == enums.TransactionStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "transaction has been cancelled")
		}
		msg, err = s.AppendTx(ctx, tx, transactionID, senderID, content)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Deliver(ctx, msg)
	dto := FromModel(msg)
	return &dto, nil
}

// AppendTx inserts a message inside the caller's database transaction. The
// caller must already hold the transaction row lock so seq stays gapless and
// ordered.
func (s *Service) AppendTx(ctx context.Context, tx *gorm.DB, transactionID, senderID uuid.UUID, content string) (*models.Message, error) {
	repo := s.repo.WithTx(tx)
	seq, err := repo.NextSeq(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate message seq")
	}
	msg := &models.Message{
		TransactionID: transactionID,
		Seq:           seq,
		SenderID:      senderID,
		Content:       content,
	}
	if err := repo.Insert(ctx, msg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert message")
	}
	return msg, nil
}

// Deliver pushes committed messages to connected parties. Failures are logged;
// ListMessages stays the source of truth.
func (s *Service) Deliver(ctx context.Context, msgs ...*models.Message) {
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if s.metrics != nil {
			s.metrics.MessageAppended()
		}
		if s.broadcaster == nil {
			continue
		}
		if err := s.broadcaster.Broadcast(ctx, msg.TransactionID, EventMessageCreated, FromModel(msg)); err != nil && s.logg != nil {
			fields := map[string]any{
				"transaction_id": msg.TransactionID.String(),
				"message_id":     msg.ID.String(),
				"error":          err.Error(),
			}
			s.logg.Warn(s.logg.WithFields(ctx, fields), "realtime delivery failed")
		}
	}
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
}
