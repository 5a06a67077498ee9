package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/koseken/game-trading/pkg/logger"
)

// Event is the frame written to websocket clients.
type Event struct {
	Type          string          `json:"type"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Data          json.RawMessage `json:"data"`
}

// envelope wraps an event on the Redis channel so instances can skip their
// own publications.
type envelope struct {
	Origin        string          `json:"origin"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Event         json.RawMessage `json:"event"`
}

// Bus is the Redis surface the broker needs.
type Bus interface {
	ChannelName(parts ...string) string
	Publish(ctx context.Context, channel string, payload []byte) error
	PSubscribe(ctx context.Context, patterns ...string) (*goredis.PubSub, error)
}

// Broker delivers events to local clients and relays them to the other API
// instances through Redis.
type Broker struct {
	hub     *Hub
	bus     Bus
	channel string
	origin  string
	logg    *logger.Logger
}

type BrokerParams struct {
	Hub *Hub
	// Bus may be nil for single-instance deployments.
	Bus     Bus
	Channel string
	Origin  string
	Logger  *logger.Logger
}

func NewBroker(params BrokerParams) (*Broker, error) {
	if params.Hub == nil {
		return nil, fmt.Errorf("realtime hub required")
	}
	channel := params.Channel
	if channel == "" {
		channel = "messages"
	}
	return &Broker{
		hub:     params.Hub,
		bus:     params.Bus,
		channel: channel,
		origin:  params.Origin,
		logg:    params.Logger,
	}, nil
}

// Broadcast implements the services' broadcaster.
func (b *Broker) Broadcast(ctx context.Context, transactionID uuid.UUID, eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal realtime data: %w", err)
	}
	frame, err := json.Marshal(Event{Type: eventType, TransactionID: transactionID, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal realtime event: %w", err)
	}
	b.hub.Deliver(transactionID, frame)

	if b.bus == nil {
		return nil
	}
	payload, err := json.Marshal(envelope{Origin: b.origin, TransactionID: transactionID, Event: frame})
	if err != nil {
		return fmt.Errorf("marshal realtime envelope: %w", err)
	}
	if err := b.bus.Publish(ctx, b.bus.ChannelName(b.channel, transactionID.String()), payload); err != nil {
		return fmt.Errorf("publish realtime event: %w", err)
	}
	return nil
}

// Run relays events published by other instances until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	if b.bus == nil {
		<-ctx.Done()
		return nil
	}
	pattern := b.bus.ChannelName(b.channel, "*")
	sub, err := b.bus.PSubscribe(ctx, pattern)
	if err != nil {
		return err
	}
	defer sub.Close()

	if b.logg != nil {
		b.logg.Info(b.logg.WithField(ctx, "pattern", pattern), "realtime subscriber started")
	}
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("realtime subscription closed")
			}
			b.relay(ctx, []byte(msg.Payload))
		}
	}
}

func (b *Broker) relay(ctx context.Context, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		if b.logg != nil {
			b.logg.Warn(b.logg.WithField(ctx, "error", err.Error()), "discarding malformed realtime envelope")
		}
		return
	}
	if env.Origin == b.origin || env.TransactionID == uuid.Nil {
		return
	}
	b.hub.Deliver(env.TransactionID, env.Event)
}
