package reviews

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/koseken/game-trading/internal/messages"
	"github.com/koseken/game-trading/internal/storetest"
	"github.com/koseken/game-trading/internal/transactions"
	"github.com/koseken/game-trading/internal/users"
	"github.com/koseken/game-trading/pkg/db"
	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
	"github.com/koseken/game-trading/pkg/outbox"
)

type reviewCounter struct {
	mu sync.Mutex
	n  int
}

func (c *reviewCounter) ReviewSubmitted() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

type fixture struct {
	client  *db.Client
	conn    *gorm.DB
	svc     *Service
	metrics *reviewCounter
	logg    *logger.Logger
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := storetest.NewDB(t)
	conn := client.DB()
	logg := logger.New(logger.Options{ServiceName: "reviews-test", Output: io.Discard})
	metrics := &reviewCounter{}
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(conn),
		Users:      users.NewRepository(conn),
		Tx:         client,
		Outbox:     outbox.NewService(outbox.NewRepository(), logg, "test"),
		Metrics:    metrics,
		Logger:     logg,
	})
	require.NoError(t, err)
	return fixture{client: client, conn: conn, svc: svc, metrics: metrics, logg: logg}
}

func (f fixture) completedTrade(t *testing.T) (*models.Transaction, *models.User, *models.User) {
	t.Helper()
	seller := storetest.MustUser(t, f.conn, "seller")
	buyer := storetest.MustUser(t, f.conn, "buyer")
	listing := storetest.MustListingWithStatus(t, f.conn, seller.ID, enums.ListingStatusSold)
	txn := storetest.MustTransaction(t, f.conn, listing, buyer.ID, enums.TransactionStatusCompleted)
	return txn, seller, buyer
}

func (f fixture) user(t *testing.T, id uuid.UUID) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, f.conn.First(&u, "id = ?", id).Error)
	return u
}

func TestSubmitUpdatesAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := storetest.MustUser(t, f.conn, "seller")

	for _, rating := range []int{5, 3, 4} {
		buyer := storetest.MustUser(t, f.conn, "buyer")
		listing := storetest.MustListingWithStatus(t, f.conn, seller.ID, enums.ListingStatusSold)
		txn := storetest.MustTransaction(t, f.conn, listing, buyer.ID, enums.TransactionStatusCompleted)
		_, err := f.svc.Submit(ctx, buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: rating})
		require.NoError(t, err)
	}

	got := f.user(t, seller.ID)
	require.InDelta(t, 4.0, got.RatingAvg, 1e-9)
	require.Equal(t, 3, got.RatingCount)
	require.Equal(t, 3, f.metrics.n)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventReviewSubmitted).Count(&events).Error)
	require.EqualValues(t, 3, events)
}

func TestConcurrentSubmitsKeepEveryRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := storetest.MustUser(t, f.conn, "seller")
	ratings := []int{5, 1, 4, 2, 5, 3, 4, 5}

	type trade struct {
		buyer, txn uuid.UUID
		rating     int
	}
	trades := make([]trade, len(ratings))
	sum := 0
	for i, rating := range ratings {
		buyer := storetest.MustUser(t, f.conn, "buyer")
		listing := storetest.MustListingWithStatus(t, f.conn, seller.ID, enums.ListingStatusSold)
		txn := storetest.MustTransaction(t, f.conn, listing, buyer.ID, enums.TransactionStatusCompleted)
		trades[i] = trade{buyer: buyer.ID, txn: txn.ID, rating: rating}
		sum += rating
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(trades))
	for _, tr := range trades {
		wg.Add(1)
		go func(tr trade) {
			defer wg.Done()
			_, err := f.svc.Submit(ctx, tr.buyer, SubmitInput{TransactionID: tr.txn, RevieweeID: seller.ID, Rating: tr.rating})
			errs <- err
		}(tr)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got := f.user(t, seller.ID)
	require.Equal(t, len(ratings), got.RatingCount)
	require.InDelta(t, float64(sum)/float64(len(ratings)), got.RatingAvg, 1e-9)
}

func TestSubmitOncePerReviewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn, seller, buyer := f.completedTrade(t)

	_, err := f.svc.Submit(ctx, buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: 5})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: 1})
	require.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	got := f.user(t, seller.ID)
	require.InDelta(t, 5.0, got.RatingAvg, 1e-9)
	require.Equal(t, 1, got.RatingCount)

	// the other party still gets their own review
	_, err = f.svc.Submit(ctx, seller.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: buyer.ID, Rating: 4})
	require.NoError(t, err)
	require.Equal(t, 1, f.user(t, buyer.ID).RatingCount)
}

func TestSubmitCheckOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn, seller, buyer := f.completedTrade(t)
	outsider := storetest.MustUser(t, f.conn, "outsider")
	long := strings.Repeat("x", MaxCommentLength+1)

	cases := []struct {
		name     string
		reviewer uuid.UUID
		input    SubmitInput
		want     pkgerrors.Code
	}{
		{"rating too low", buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: 0}, pkgerrors.CodeValidation},
		{"rating too high", buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: 6}, pkgerrors.CodeValidation},
		{"comment too long", buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: 3, Comment: &long}, pkgerrors.CodeValidation},
		{"invalid beats missing", buyer.ID, SubmitInput{TransactionID: uuid.New(), RevieweeID: seller.ID, Rating: 9}, pkgerrors.CodeValidation},
		{"missing transaction", buyer.ID, SubmitInput{TransactionID: uuid.New(), RevieweeID: seller.ID, Rating: 3}, pkgerrors.CodeNotFound},
		{"outsider", outsider.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: 3}, pkgerrors.CodeForbidden},
		{"self review", buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: buyer.ID, Rating: 3}, pkgerrors.CodeValidation},
		{"third party reviewee", buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: outsider.ID, Rating: 3}, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tc.reviewer, tc.input)
			require.Equal(t, tc.want, pkgerrors.CodeOf(err))
		})
	}
	require.Zero(t, f.user(t, seller.ID).RatingCount)
}

func TestSubmitRequiresCompletedTransaction(t *testing.T) {
	f := newFixture(t)
	seller := storetest.MustUser(t, f.conn, "seller")
	buyer := storetest.MustUser(t, f.conn, "buyer")
	listing := storetest.MustListingWithStatus(t, f.conn, seller.ID, enums.ListingStatusReserved)
	txn := storetest.MustTransaction(t, f.conn, listing, buyer.ID, enums.TransactionStatusInProgress)

	_, err := f.svc.Submit(context.Background(), buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: 5})
	require.Equal(t, pkgerrors.CodeInvalidState, pkgerrors.CodeOf(err))
}

func TestListReceived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn, seller, buyer := f.completedTrade(t)
	comment := "  smooth trade  "
	_, err := f.svc.Submit(ctx, buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: 4, Comment: &comment})
	require.NoError(t, err)

	list, err := f.svc.ListReceived(ctx, seller.ID, 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, list.Total)
	require.Len(t, list.Items, 1)
	require.NotNil(t, list.Items[0].Reviewer)
	require.Equal(t, buyer.ID, list.Items[0].Reviewer.ID)
	require.Equal(t, "smooth trade", *list.Items[0].Comment)
	require.Equal(t, 1, list.Aggregate.RatingCount)
	require.InDelta(t, 4.0, list.Aggregate.RatingAvg, 1e-9)

	_, err = f.svc.ListReceived(ctx, uuid.New(), 1, 10)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

// A full trade: list, reserve, chat, complete, review both ways.
func TestTradeLifecycleEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msgs, err := messages.NewService(messages.ServiceParams{
		Repository: messages.NewRepository(f.conn),
		Tx:         f.client,
		Logger:     f.logg,
	})
	require.NoError(t, err)
	txns, err := transactions.NewService(transactions.ServiceParams{
		Repository: transactions.NewRepository(f.conn),
		Tx:         f.client,
		Messages:   msgs,
		Outbox:     outbox.NewService(outbox.NewRepository(), f.logg, "test"),
		Logger:     f.logg,
	})
	require.NoError(t, err)

	seller := storetest.MustUser(t, f.conn, "seller")
	buyer := storetest.MustUser(t, f.conn, "buyer")
	listing := storetest.MustListing(t, f.conn, seller.ID)

	txn, err := txns.Create(ctx, buyer.ID, listing.ID)
	require.NoError(t, err)

	// the seller is refused as a buyer of their own, already reserved listing
	_, err = txns.Create(ctx, seller.ID, listing.ID)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.Submit(ctx, buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: 5})
	require.Equal(t, pkgerrors.CodeInvalidState, pkgerrors.CodeOf(err))

	_, err = msgs.Send(ctx, txn.ID, buyer.ID, "フレンド申請を送りました")
	require.NoError(t, err)
	_, err = msgs.Send(ctx, txn.ID, seller.ID, "受け取りました、送ります")
	require.NoError(t, err)

	_, err = txns.Complete(ctx, seller.ID, txn.ID)
	require.NoError(t, err)

	var sold models.Listing
	require.NoError(t, f.conn.First(&sold, "id = ?", listing.ID).Error)
	require.Equal(t, enums.ListingStatusSold, sold.Status)

	chat, err := msgs.List(ctx, txn.ID, buyer.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, chat, 4)
	for i, msg := range chat {
		require.EqualValues(t, i+1, msg.Seq)
	}

	_, err = f.svc.Submit(ctx, buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: 5})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, seller.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: buyer.ID, Rating: 4})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, buyer.ID, SubmitInput{TransactionID: txn.ID, RevieweeID: seller.ID, Rating: 4})
	require.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	sellerAfter := f.user(t, seller.ID)
	require.InDelta(t, 5.0, sellerAfter.RatingAvg, 1e-9)
	require.Equal(t, 1, sellerAfter.RatingCount)
	require.InDelta(t, 4.0, f.user(t, buyer.ID).RatingAvg, 1e-9)
}
