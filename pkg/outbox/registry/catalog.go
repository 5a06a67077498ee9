// Package registry maps outbox event types to Pub/Sub topics and typed
// payloads.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/pkg/config"
	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
	"github.com/koseken/game-trading/pkg/outbox"
	"github.com/koseken/game-trading/pkg/outbox/payloads"
)

// Route says where an event type is published and how its data decodes.
type Route struct {
	Event     enums.OutboxEventType
	Aggregate enums.OutboxAggregateType
	Topic     string
	decode    func(json.RawMessage) (payloads.Keyed, error)
}

// Resolved is a decoded outbox row ready to publish.
type Resolved struct {
	Route    Route
	Envelope outbox.Envelope
	Data     payloads.Keyed
}

// Permanent marks a row that can never be published, however often it is
// retried.
type Permanent struct {
	Err error
}

func (p Permanent) Error() string {
	if p.Err == nil {
		return "permanent outbox failure"
	}
	return p.Err.Error()
}

func (p Permanent) Unwrap() error { return p.Err }

// IsPermanent reports whether err carries a Permanent anywhere in its chain.
func IsPermanent(err error) bool {
	var p Permanent
	return errors.As(err, &p)
}

func permanent(format string, args ...any) error {
	return Permanent{Err: fmt.Errorf(format, args...)}
}

// Catalog holds one Route per supported event type.
type Catalog struct {
	routes map[enums.OutboxEventType]Route
}

// NewCatalog wires each aggregate to its configured topic.
func NewCatalog(cfg config.PubSubConfig) (*Catalog, error) {
	topics := map[enums.OutboxAggregateType]string{
		enums.AggregateTransaction: cfg.TransactionsTopic,
		enums.AggregateReview:      cfg.ReviewsTopic,
		enums.AggregateListing:     cfg.ListingsTopic,
	}
	for aggregate, topic := range topics {
		if topic == "" {
			return nil, fmt.Errorf("no pubsub topic configured for %s events", aggregate)
		}
	}

	c := &Catalog{routes: map[enums.OutboxEventType]Route{}}
	c.add(enums.EventTransactionCreated, enums.AggregateTransaction, topics, decodeAs[payloads.TransactionCreatedEvent])
	c.add(enums.EventTransactionCompleted, enums.AggregateTransaction, topics, decodeAs[payloads.TransactionCompletedEvent])
	c.add(enums.EventTransactionCancelled, enums.AggregateTransaction, topics, decodeAs[payloads.TransactionCancelledEvent])
	c.add(enums.EventReviewSubmitted, enums.AggregateReview, topics, decodeAs[payloads.ReviewSubmittedEvent])
	for _, event := range []enums.OutboxEventType{enums.EventListingCreated, enums.EventListingWithdrawn, enums.EventListingDeleted} {
		c.add(event, enums.AggregateListing, topics, decodeAs[payloads.ListingEvent])
	}
	return c, nil
}

func (c *Catalog) add(event enums.OutboxEventType, aggregate enums.OutboxAggregateType, topics map[enums.OutboxAggregateType]string, decode func(json.RawMessage) (payloads.Keyed, error)) {
	c.routes[event] = Route{Event: event, Aggregate: aggregate, Topic: topics[aggregate], decode: decode}
}

func decodeAs[T payloads.Keyed](raw json.RawMessage) (payloads.Keyed, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Topics lists the distinct topics, sorted.
func (c *Catalog) Topics() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range c.routes {
		if !seen[r.Topic] {
			seen[r.Topic] = true
			out = append(out, r.Topic)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve decodes row. Every error it returns is Permanent: a row that fails
// here will fail identically on every retry.
func (c *Catalog) Resolve(row models.OutboxEvent) (*Resolved, error) {
	route, ok := c.routes[row.EventType]
	if !ok {
		return nil, permanent("no route for event type %q", row.EventType)
	}
	if route.Aggregate != row.AggregateType {
		return nil, permanent("%s belongs to %s, row says %s", row.EventType, route.Aggregate, row.AggregateType)
	}
	if row.AggregateID == uuid.Nil {
		return nil, permanent("%s row %s has no aggregate id", row.EventType, row.ID)
	}

	env, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, Permanent{Err: err}
	}
	data, err := route.decode(env.Data)
	if err != nil {
		return nil, permanent("decode %s data: %w", row.EventType, err)
	}
	if key := data.AggregateKey(); key != row.AggregateID {
		return nil, permanent("%s data is about %s, row aggregate is %s", row.EventType, key, row.AggregateID)
	}
	return &Resolved{Route: route, Envelope: env, Data: data}, nil
}
