// Package storetest opens isolated in-memory sqlite databases carrying the
// marketplace schema, plus small fixtures for repository and service tests.
package storetest

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/koseken/game-trading/pkg/db"
	"github.com/koseken/game-trading/pkg/db/models"
	dbtypes "github.com/koseken/game-trading/pkg/db/types"
	"github.com/koseken/game-trading/pkg/enums"
	"github.com/koseken/game-trading/pkg/migrate"
)

// NewDB returns a client over a fresh database that lives as long as the test.
func NewDB(t *testing.T) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.AutoSchema(conn); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db.NewFromGorm(conn)
}

// MustUser inserts a user with a unique username derived from name.
func MustUser(t *testing.T, conn *gorm.DB, name string) *models.User {
	t.Helper()
	suffix := uuid.NewString()[:8]
	user := &models.User{
		Email:    fmt.Sprintf("%s_%s@example.com", name, suffix),
		Username: fmt.Sprintf("%s_%s", name, suffix),
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// MustAdmin inserts a user flagged as admin.
func MustAdmin(t *testing.T, conn *gorm.DB, name string) *models.User {
	t.Helper()
	user := MustUser(t, conn, name)
	if err := conn.Model(user).Update("is_admin", true).Error; err != nil {
		t.Fatalf("flag admin: %v", err)
	}
	user.IsAdmin = true
	return user
}

// MustCategory inserts a category.
func MustCategory(t *testing.T, conn *gorm.DB, name string) *models.Category {
	t.Helper()
	category := &models.Category{Name: name, Slug: fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])}
	if err := conn.Create(category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

// MustListing inserts an active listing owned by sellerID.
func MustListing(t *testing.T, conn *gorm.DB, sellerID uuid.UUID) *models.Listing {
	t.Helper()
	return MustListingWithStatus(t, conn, sellerID, enums.ListingStatusActive)
}

// MustListingWithStatus inserts a listing in the given status.
func MustListingWithStatus(t *testing.T, conn *gorm.DB, sellerID uuid.UUID, status enums.ListingStatus) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		SellerID:    sellerID,
		Title:       "Rare sword skin",
		Description: "Unused code, delivered through in-game trade.",
		Price:       3000,
		Images:      dbtypes.StringList{"https://cdn.example.com/listing-images/a.png"},
		Status:      status,
	}
	if err := conn.Create(listing).Error; err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return listing
}

// MustTransaction inserts a transaction directly, bypassing the lifecycle.
func MustTransaction(t *testing.T, conn *gorm.DB, listing *models.Listing, buyerID uuid.UUID, status enums.TransactionStatus) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		ListingID: listing.ID,
		BuyerID:   buyerID,
		SellerID:  listing.SellerID,
		Status:    status,
	}
	if status == enums.TransactionStatusCompleted {
		now := time.Now().UTC()
		txn.CompletedAt = &now
	}
	if err := conn.Create(txn).Error; err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return txn
}
