package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

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
	uniqueReviewConstraint = "ux_reviews_transaction_reviewer"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type reviewMetrics interface {
	ReviewSubmitted()
}

// Service accepts post-trade reviews and keeps each user's rating aggregate
// equal to the mean of the reviews they received.
type Service struct {
	repo    Repository
	users   *users.Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics reviewMetrics
	logg    *logger.Logger
}

type ServiceParams struct {
	Repository Repository
	Users      *users.Repository
	Tx         txRunner
	Outbox     outbox.Emitter
	Metrics    reviewMetrics
	Logger     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Service{
		repo:    params.Repository,
		users:   params.Users,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Submit records reviewerID's review of the other party of a completed
// transaction and folds it into the reviewee's aggregate.
func (s *Service) Submit(ctx context.Context, reviewerID uuid.UUID, input SubmitInput) (*ReviewDTO, error) {
	comment, err := validateInput(input)
	if err != nil {
		return nil, err
	}

	review := &models.Review{
		TransactionID: input.TransactionID,
		ReviewerID:    reviewerID,
		RevieweeID:    input.RevieweeID,
		Rating:        input.Rating,
		Comment:       comment,
	}
	var agg Aggregate
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindTransaction(ctx, input.TransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}
		if !txn.IsParty(reviewerID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this transaction")
		}
		if txn.Status != enums.TransactionStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "reviews open once the transaction is completed")
		}
		if input.RevieweeID != txn.Counterparty(reviewerID) {
			return pkgerrors.New(pkgerrors.CodeValidation, "reviewee must be the other party of the transaction")
		}

		exists, err := repo.Exists(ctx, txn.ID, reviewerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing review")
		}
		if exists {
			return duplicateReview(txn.ID)
		}
		if err := repo.Insert(ctx, review); err != nil {
			if db.IsUniqueViolation(err, uniqueReviewConstraint) {
				return duplicateReview(txn.ID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert review")
		}

		userRepo := s.users.WithTx(tx)
		if _, err := userRepo.FindByIDForUpdate(ctx, input.RevieweeID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock reviewee")
		}
		agg, err = repo.Aggregate(ctx, input.RevieweeID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate ratings")
		}
		if err := userRepo.UpdateRating(ctx, input.RevieweeID, agg.RatingAvg, agg.RatingCount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update rating")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewSubmitted,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Actor:         &outbox.Actor{UserID: reviewerID, Role: "party"},
			Data: payloads.ReviewSubmittedEvent{
				ReviewID:      review.ID,
				TransactionID: txn.ID,
				ReviewerID:    reviewerID,
				RevieweeID:    input.RevieweeID,
				Rating:        review.Rating,
				RatingAvg:     agg.RatingAvg,
				RatingCount:   agg.RatingCount,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ReviewSubmitted()
	}
	if s.logg != nil {
		fields := map[string]any{
			"review_id":    review.ID.String(),
			"reviewee_id":  input.RevieweeID.String(),
			"rating_count": agg.RatingCount,
		}
		s.logg.Info(s.logg.WithFields(s.logg.WithTransactionID(ctx, input.TransactionID.String()), fields), "review submitted")
	}
	dto := FromModel(review)
	return &dto, nil
}

// ListReceived returns reviews naming userID, newest first, together with the
// user's current aggregate.
func (s *Service) ListReceived(ctx context.Context, userID uuid.UUID, page, limit int) (*ReceivedList, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	p := pagination.NewPage(page, limit)
	page, limit = p.Number, p.Size

	rows, total, err := s.repo.ListReceived(ctx, userID, p.Offset(), p.Size)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	items := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	return &ReceivedList{
		Items:     items,
		Page:      page,
		Limit:     limit,
		Total:     total,
		Aggregate: Aggregate{RatingAvg: user.RatingAvg, RatingCount: user.RatingCount},
	}, nil
}

func validateInput(input SubmitInput) (*string, error) {
	if input.Rating < MinRating || input.Rating > MaxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
	}
	if input.Comment == nil {
		return nil, nil
	}
	comment := strings.TrimSpace(*input.Comment)
	if comment == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("comment must be at most %d characters", MaxCommentLength))
	}
	return &comment, nil
}

func duplicateReview(transactionID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "review already submitted").
		WithDetails(map[string]any{"transaction_id": transactionID.String()})
}
