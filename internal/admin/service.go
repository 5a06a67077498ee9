package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/koseken/game-trading/internal/listings"
	"github.com/koseken/game-trading/internal/transactions"
	"github.com/koseken/game-trading/internal/users"
	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
	"github.com/koseken/game-trading/pkg/pagination"
)

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, q string, offset, limit int) ([]models.User, int64, error)
	SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error
	Count(ctx context.Context) (int64, error)
}

type listingService interface {
	List(ctx context.Context, filters listings.Filters, page, limit int) (*listings.ListingList, error)
	Delete(ctx context.Context, actorID, id uuid.UUID, byAdmin bool) (*listings.DeleteResult, error)
	Count(ctx context.Context) (int64, error)
}

type transactionService interface {
	AdminList(ctx context.Context, status *enums.TransactionStatus, page, limit int) (*transactions.AdminTransactionList, error)
	AdminCancel(ctx context.Context, adminID, id uuid.UUID) (*transactions.TransactionDTO, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	Recent(ctx context.Context, limit int) ([]transactions.TransactionDTO, error)
}

// Service is the moderation surface. Callers are expected to have passed the
// admin guard already.
type Service struct {
	users        userStore
	listings     listingService
	transactions transactionService
	logg         *logger.Logger
	now          func() time.Time
}

type ServiceParams struct {
	Users        userStore
	Listings     listingService
	Transactions transactionService
	Logger       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users store required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listings service required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions service required")
	}
	return &Service{
		users:        params.Users,
		listings:     params.Listings,
		transactions: params.Transactions,
		logg:         params.Logger,
		now:          time.Now,
	}, nil
}

// Stats gathers the dashboard counters concurrently. "Today" starts at UTC
// midnight.
func (s *Service) Stats(ctx context.Context) (*StatsDTO, error) {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var stats StatsDTO
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Users, err = s.users.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Listings, err = s.listings.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Transactions, err = s.transactions.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TransactionsToday, err = s.transactions.CountSince(gctx, midnight)
		return err
	})
	g.Go(func() (err error) {
		stats.RecentTransactions, err = s.transactions.Recent(gctx, RecentTransactionsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load admin stats")
	}
	if stats.RecentTransactions == nil {
		stats.RecentTransactions = []transactions.TransactionDTO{}
	}
	return &stats, nil
}

func (s *Service) ListUsers(ctx context.Context, q string, page, limit int) (*UserList, error) {
	p := pagination.NewPage(page, limit)
	page, limit = p.Number, p.Size
	rows, total, err := s.users.List(ctx, q, p.Offset(), p.Size)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	items := make([]users.UserDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *users.FromModel(&rows[i]))
	}
	return &UserList{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// SetAdmin grants or revokes the admin flag. Admins cannot revoke their own.
func (s *Service) SetAdmin(ctx context.Context, actorID, userID uuid.UUID, isAdmin bool) (*users.UserDTO, error) {
	if actorID == userID && !isAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot revoke your own admin role")
	}
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.SetAdmin(ctx, userID, isAdmin); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update admin flag")
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		fields := map[string]any{"target_user_id": userID.String(), "is_admin": isAdmin}
		s.logg.Info(s.logg.WithFields(s.logg.WithUserID(ctx, actorID.String()), fields), "admin flag changed")
	}
	return users.FromModel(user), nil
}

// ListListings pages every listing; a nil status means all statuses.
func (s *Service) ListListings(ctx context.Context, filters listings.Filters, page, limit int) (*listings.ListingList, error) {
	return s.listings.List(ctx, filters, page, limit)
}

func (s *Service) DeleteListing(ctx context.Context, adminID, listingID uuid.UUID) (*listings.DeleteResult, error) {
	return s.listings.Delete(ctx, adminID, listingID, true)
}

func (s *Service) ListTransactions(ctx context.Context, status *enums.TransactionStatus, page, limit int) (*transactions.AdminTransactionList, error) {
	return s.transactions.AdminList(ctx, status, page, limit)
}

func (s *Service) CancelTransaction(ctx context.Context, adminID, transactionID uuid.UUID) (*transactions.TransactionDTO, error) {
	return s.transactions.AdminCancel(ctx, adminID, transactionID)
}

func (s *Service) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}
