package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
	"github.com/koseken/game-trading/pkg/logger"
)

const envelopeVersion = 1

// DomainEvent is what services hand to the emitter; Data is marshalled into
// the envelope's data field.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *Actor
	Data          any
	OccurredAt    time.Time
}

// Emitter queues a domain event inside the caller's database transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo   *Repository
	logg   *logger.Logger
	source string
}

// NewService builds an emitter. source is stamped on every envelope so
// consumers can tell which API instance wrote it.
func NewService(repo *Repository, logg *logger.Logger, source string) *Service {
	return &Service{repo: repo, logg: logg, source: source}
}

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("outbox emit needs the caller's transaction")
	}
	if !event.EventType.IsValid() || !event.AggregateType.IsValid() {
		return fmt.Errorf("unknown outbox event %q on %q", event.EventType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return fmt.Errorf("outbox event %s has no aggregate id", event.EventType)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	env := Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurred,
		Source:     s.source,
		Actor:      event.Actor,
		Data:       data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event.EventType, err)
	}

	if err := s.repo.Append(tx, models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       body,
	}); err != nil {
		return err
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"event_id":     env.EventID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		})
		s.logg.Debug(ctx, "outbox.queued")
	}
	return nil
}
