package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/koseken/game-trading/internal/storetest"
	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
	"github.com/koseken/game-trading/pkg/outbox"
	"github.com/koseken/game-trading/pkg/outbox/payloads"
)

func TestEmitStoresEnvelope(t *testing.T) {
	client := storetest.NewDB(t)
	svc := outbox.NewService(outbox.NewRepository(), nil, "api-7")
	txnID := uuid.New()
	buyer := uuid.New()

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventTransactionCreated,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txnID,
			Actor:         &outbox.Actor{UserID: buyer, Role: "buyer"},
			Data:          payloads.TransactionCreatedEvent{TransactionID: txnID, Price: 1200},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, client.DB().First(&row).Error)
	require.Equal(t, txnID, row.AggregateID)

	env, err := outbox.DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	require.Equal(t, "api-7", env.Source)
	require.Equal(t, buyer, env.Actor.UserID)
	require.NotEmpty(t, env.EventID)
	var data payloads.TransactionCreatedEvent
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.EqualValues(t, 1200, data.Price)
}

func TestEmitRejectsUnknownEventsAndMissingTx(t *testing.T) {
	svc := outbox.NewService(outbox.NewRepository(), nil, "")
	event := outbox.DomainEvent{
		EventType:     enums.EventListingCreated,
		AggregateType: enums.AggregateListing,
		AggregateID:   uuid.New(),
	}
	require.Error(t, svc.Emit(context.Background(), nil, event))

	client := storetest.NewDB(t)
	event.EventType = "listing_featured"
	require.Error(t, svc.Emit(context.Background(), client.DB(), event))

	event.EventType = enums.EventListingCreated
	event.AggregateID = uuid.Nil
	require.Error(t, svc.Emit(context.Background(), client.DB(), event))
}

func TestRepositoryClaimSkipsPublishedAndExhaustedRows(t *testing.T) {
	client := storetest.NewDB(t)
	repo := outbox.NewRepository()
	conn := client.DB()

	pending := appendRow(t, conn, repo)
	done := appendRow(t, conn, repo)
	exhausted := appendRow(t, conn, repo)
	require.NoError(t, repo.MarkPublished(conn, done.ID))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordFailure(conn, exhausted.ID, errors.New("timeout")))
	}

	rows, err := repo.Claim(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, pending.ID, rows[0].ID)
}

func TestRepositoryDeadLetterPinsRow(t *testing.T) {
	client := storetest.NewDB(t)
	repo := outbox.NewRepository()
	conn := client.DB()
	row := appendRow(t, conn, repo)

	require.NoError(t, repo.DeadLetter(conn, row, enums.OutboxDLQReasonNonRetryable, errors.New("bad payload"), 5))

	var dlq models.OutboxDLQ
	require.NoError(t, conn.Where("event_id = ?", row.ID).First(&dlq).Error)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.ErrorReason)
	require.Equal(t, "bad payload", *dlq.ErrorMessage)

	rows, err := repo.Claim(conn, 10, 5)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func appendRow(t *testing.T, conn *gorm.DB, repo *outbox.Repository) models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventListingCreated,
		AggregateType: enums.AggregateListing,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"data":{}}`),
	}
	require.NoError(t, repo.Append(conn, row))
	return row
}
