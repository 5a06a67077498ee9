package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/koseken/game-trading/internal/messages"
	"github.com/koseken/game-trading/internal/users"
	"github.com/koseken/game-trading/pkg/db"
	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
	"github.com/koseken/game-trading/pkg/outbox"
	"github.com/koseken/game-trading/pkg/outbox/payloads"
	"github.com/koseken/game-trading/pkg/pagination"
)

const (
	openListingConstraint = "ux_transactions_open_listing"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MessageAppender writes system messages into a transaction's chat.
type MessageAppender interface {
	AppendTx(ctx context.Context, tx *gorm.DB, transactionID, senderID uuid.UUID, content string) (*models.Message, error)
	Deliver(ctx context.Context, msgs ...*models.Message)
}

type lifecycleMetrics interface {
	TransactionEvent(event string)
}

// Service runs the transaction lifecycle and keeps listing status in step.
type Service struct {
	repo        Repository
	tx          txRunner
	messages    MessageAppender
	outbox      outbox.Emitter
	broadcaster messages.Broadcaster
	metrics     lifecycleMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// ServiceParams wires a transactions Service. Broadcaster and Metrics are optional.
type ServiceParams struct {
	Repository  Repository
	Tx          txRunner
	Messages    MessageAppender
	Outbox      outbox.Emitter
	Broadcaster messages.Broadcaster
	Metrics     lifecycleMetrics
	Logger      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Messages == nil {
		return nil, fmt.Errorf("message appender required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Service{
		repo:        params.Repository,
		tx:          params.Tx,
		messages:    params.Messages,
		outbox:      params.Outbox,
		broadcaster: params.Broadcaster,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

// Create reserves listingID for buyerID and opens an in-progress transaction.
// Of any number of concurrent callers at most one succeeds; the rest see a
// conflict (same buyer) or an invalid state (listing taken).
func (s *Service) Create(ctx context.Context, buyerID, listingID uuid.UUID) (*TransactionDTO, error) {
	var (
		txn *models.Transaction
		msg *models.Message
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := repo.FindListing(ctx, listingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if listing.SellerID == buyerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot purchase your own listing")
		}
		if err := s.ensureNoOpen(ctx, repo, listingID, buyerID); err != nil {
			return err
		}

		reserved, err := repo.TransitionListing(ctx, listingID, enums.ListingStatusActive, enums.ListingStatusReserved)
		if err != nil {
			return transitionError(err, "reserve listing")
		}
		if reserved == 0 {
			if err := s.ensureNoOpen(ctx, repo, listingID, buyerID); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeInvalidState, "listing is no longer available")
		}

		txn = &models.Transaction{
			ListingID: listingID,
			BuyerID:   buyerID,
			SellerID:  listing.SellerID,
			Status:    enums.TransactionStatusInProgress,
		}
		if err := repo.Create(ctx, txn); err != nil {
			if db.IsUniqueViolation(err, openListingConstraint) {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "listing is no longer available")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
		}

		msg, err = s.messages.AppendTx(ctx, tx, txn.ID, buyerID, MessageStarted)
		if err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTransactionCreated,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Actor:         &outbox.Actor{UserID: buyerID, Role: string(enums.TransactionRoleBuyer)},
			Data: payloads.TransactionCreatedEvent{
				TransactionID: txn.ID,
				ListingID:     listingID,
				BuyerID:       buyerID,
				SellerID:      listing.SellerID,
				Price:         listing.Price,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.messages.Deliver(ctx, msg)
	s.observe("created")
	if s.logg != nil {
		s.logg.Info(s.logg.WithTransactionID(ctx, txn.ID.String()), "transaction created")
	}
	return s.detail(ctx, txn.ID)
}

// Get returns a transaction to one of its parties.
func (s *Service) Get(ctx context.Context, actorID, id uuid.UUID) (*TransactionDTO, error) {
	txn, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	if !txn.IsParty(actorID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this transaction")
	}
	dto := FromModel(txn)
	return &dto, nil
}

// Complete closes an in-progress transaction and marks its listing sold.
// Only the seller may complete.
func (s *Service) Complete(ctx context.Context, actorID, id uuid.UUID) (*TransactionDTO, error) {
	var msg *models.Message
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if txn.SellerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can complete this transaction")
		}
		if !txn.Status.CanTransition(enums.TransactionStatusCompleted) {
			return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("cannot complete a %s transaction", txn.Status))
		}

		completedAt := s.now().UTC()
		affected, err := repo.TransitionStatus(ctx, id, txn.Status, enums.TransactionStatusCompleted, &completedAt)
		if err != nil {
			return transitionError(err, "complete transaction")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "transaction status changed")
		}
		sold, err := repo.TransitionListing(ctx, txn.ListingID, enums.ListingStatusReserved, enums.ListingStatusSold)
		if err != nil {
			return transitionError(err, "mark listing sold")
		}
		if sold == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "listing is not reserved")
		}

		msg, err = s.messages.AppendTx(ctx, tx, id, actorID, MessageCompleted)
		if err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTransactionCompleted,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   id,
			Actor:         &outbox.Actor{UserID: actorID, Role: string(enums.TransactionRoleSeller)},
			Data: payloads.TransactionCompletedEvent{
				TransactionID: id,
				ListingID:     txn.ListingID,
				BuyerID:       txn.BuyerID,
				SellerID:      txn.SellerID,
				CompletedAt:   completedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.afterTransition(ctx, id, "completed", msg)
}

// Cancel aborts an open transaction on behalf of either party and returns
// the listing to sale.
func (s *Service) Cancel(ctx context.Context, actorID, id uuid.UUID) (*TransactionDTO, error) {
	return s.cancel(ctx, actorID, id, false)
}

// AdminCancel aborts an open transaction on behalf of a moderator.
func (s *Service) AdminCancel(ctx context.Context, adminID, id uuid.UUID) (*TransactionDTO, error) {
	return s.cancel(ctx, adminID, id, true)
}

func (s *Service) cancel(ctx context.Context, actorID, id uuid.UUID, byAdmin bool) (*TransactionDTO, error) {
	var msg *models.Message
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if !byAdmin && !txn.IsParty(actorID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this transaction")
		}
		if !txn.Status.CanTransition(enums.TransactionStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("cannot cancel a %s transaction", txn.Status))
		}

		fromStatus := txn.Status
		affected, err := repo.TransitionStatus(ctx, id, fromStatus, enums.TransactionStatusCancelled, nil)
		if err != nil {
			return transitionError(err, "cancel transaction")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "transaction status changed")
		}
		// The listing may already have left reserved through moderation.
		if _, err := repo.TransitionListing(ctx, txn.ListingID, enums.ListingStatusReserved, enums.ListingStatusActive); err != nil {
			return transitionError(err, "release listing")
		}

		sender := actorID
		role := "party"
		if byAdmin {
			sender = txn.SellerID
			role = "admin"
		}
		msg, err = s.messages.AppendTx(ctx, tx, id, sender, MessageCancelled)
		if err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTransactionCancelled,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   id,
			Actor:         &outbox.Actor{UserID: actorID, Role: role},
			Data: payloads.TransactionCancelledEvent{
				TransactionID: id,
				ListingID:     txn.ListingID,
				BuyerID:       txn.BuyerID,
				SellerID:      txn.SellerID,
				CancelledBy:   actorID,
				ByAdmin:       byAdmin,
				FromStatus:    fromStatus,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.afterTransition(ctx, id, "cancelled", msg)
}

// List returns the caller's transactions newest first, each with its last
// message and the caller's unread count.
func (s *Service) List(ctx context.Context, userID uuid.UUID, params ListParams) (*TransactionList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	size := pagination.NewPage(1, params.Limit).Size

	rows, err := s.repo.ListForUser(ctx, userID, params, cursor, size+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	list := &TransactionList{Items: []ListItemDTO{}}
	rows, more := pagination.Trim(rows, size)
	if more {
		last := rows[len(rows)-1]
		list.NextCursor = pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	if len(rows) == 0 {
		return list, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID)
	}
	lastMessages, err := s.repo.LastMessages(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load last messages")
	}
	unread, err := s.repo.UnreadCounts(ctx, userID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread messages")
	}

	for i := range rows {
		txn := &rows[i]
		item := ListItemDTO{
			TransactionDTO: FromModel(txn),
			Role:           enums.TransactionRoleBuyer,
			Counterparty:   users.SummaryFromModel(txn.Seller),
			UnreadCount:    unread[txn.ID],
		}
		if txn.SellerID == userID {
			item.Role = enums.TransactionRoleSeller
			item.Counterparty = users.SummaryFromModel(txn.Buyer)
		}
		if msg, ok := lastMessages[txn.ID]; ok {
			dto := messages.FromModel(&msg)
			item.LastMessage = &dto
		}
		list.Items = append(list.Items, item)
	}
	return list, nil
}

// MarkRead advances the caller's read cursor. seq <= 0 means "everything so
// far"; the cursor never moves backwards.
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID, seq int64) (*ReadStateDTO, error) {
	var state *ReadStateDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if !txn.IsParty(userID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this transaction")
		}

		maxSeq, err := repo.MaxSeq(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load message seq")
		}
		if seq <= 0 || seq > maxSeq {
			seq = maxSeq
		}
		current, err := repo.FindReadSeq(ctx, id, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load read cursor")
		}
		if seq < current {
			seq = current
		}
		if seq != current {
			if err := repo.UpsertReadSeq(ctx, id, userID, seq); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save read cursor")
			}
		}

		counts, err := repo.UnreadCounts(ctx, userID, []uuid.UUID{id})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread messages")
		}
		state = &ReadStateDTO{TransactionID: id, LastReadSeq: seq, UnreadCount: counts[id]}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// AdminList returns one offset page of every transaction.
func (s *Service) AdminList(ctx context.Context, status *enums.TransactionStatus, page, limit int) (*AdminTransactionList, error) {
	p := pagination.NewPage(page, limit)
	page, limit = p.Number, p.Size
	rows, total, err := s.repo.List(ctx, status, p.Offset(), p.Size)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	items := make([]TransactionDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	return &AdminTransactionList{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// Count returns the number of transactions in every status.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// CountSince returns how many transactions were opened at or after since.
func (s *Service) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return s.repo.CountSince(ctx, since)
}

// Recent returns the newest transactions across the marketplace.
func (s *Service) Recent(ctx context.Context, limit int) ([]TransactionDTO, error) {
	rows, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]TransactionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *Service) ensureNoOpen(ctx context.Context, repo Repository, listingID, buyerID uuid.UUID) error {
	existing, err := repo.FindOpen(ctx, listingID, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open transaction")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "transaction already exists").
		WithDetails(map[string]any{"transaction_id": existing.ID.String()})
}

func (s *Service) afterTransition(ctx context.Context, id uuid.UUID, event string, msg *models.Message) (*TransactionDTO, error) {
	s.messages.Deliver(ctx, msg)
	s.observe(event)

	dto, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.Broadcast(ctx, id, EventTransactionUpdated, dto); err != nil && s.logg != nil {
			fields := map[string]any{"transaction_id": id.String(), "error": err.Error()}
			s.logg.Warn(s.logg.WithFields(ctx, fields), "realtime status update failed")
		}
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(s.logg.WithTransactionID(ctx, id.String()), "status", event), "transaction status changed")
	}
	return dto, nil
}

func (s *Service) detail(ctx context.Context, id uuid.UUID) (*TransactionDTO, error) {
	txn, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	dto := FromModel(txn)
	return &dto, nil
}

func (s *Service) observe(event string) {
	if s.metrics != nil {
		s.metrics.TransactionEvent(event)
	}
}

// transitionError keeps illegal moves as InvalidState; anything else is a
// storage failure.
func transitionError(err error, op string) error {
	if errors.Is(err, enums.ErrIllegalTransition) {
		return pkgerrors.Wrap(pkgerrors.CodeInvalidState, err, op+": status change not allowed")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
}
