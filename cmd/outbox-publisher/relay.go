package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/koseken/game-trading/pkg/config"
	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/enums"
	"github.com/koseken/game-trading/pkg/logger"
	"github.com/koseken/game-trading/pkg/metrics"
	"github.com/koseken/game-trading/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxPause           = 10 * time.Second
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubsubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxStore interface {
	Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	DeadLetter(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, ceiling int) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

type RelayParams struct {
	Config  config.OutboxConfig
	Logger  *logger.Logger
	DB      txRunner
	PubSub  pubsubClient
	Store   outboxStore
	Catalog resolver
	Metrics *metrics.OutboxMetrics
	// Topics overrides how a topic publisher is opened; tests use it.
	Topics func(topic string) topicPublisher
}

// Relay moves committed outbox rows to Pub/Sub. Rows of one aggregate are
// published in insertion order: once a row fails, later rows of the same
// aggregate wait for the next batch.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	pubsub      pubsubClient
	store       outboxStore
	catalog     resolver
	metrics     *metrics.OutboxMetrics
	topics      *topicSet
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

type batchStats struct {
	claimed      int
	published    int
	retried      int
	deadLettered int
	deferred     int
}

func (b batchStats) progressed() int { return b.published + b.deadLettered }

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Store == nil:
		return nil, errors.New("outbox store is required")
	case p.Catalog == nil:
		return nil, errors.New("event catalog is required")
	}

	open := p.Topics
	if open == nil {
		open = func(topic string) topicPublisher {
			return newOrderedTopic(p.PubSub.Publisher(topic))
		}
	}

	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		pubsub:      p.PubSub,
		store:       p.Store,
		catalog:     p.Catalog,
		metrics:     p.Metrics,
		topics:      newTopicSet(open),
		batchSize:   p.Config.BatchSize,
		maxAttempts: p.Config.MaxAttempts,
		poll:        time.Duration(p.Config.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	return r, nil
}

// Run drains the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": r.db.Ping, "pubsub": r.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			r.logg.Error(ctx, "outbox.dependency_unavailable", err)
			return fmt.Errorf("%s not ready: %w", name, err)
		}
	}
	defer r.topics.stop()
	r.logg.Info(ctx, "outbox.relay_started")

	pause := newPause(r.poll, maxPause)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats, err := r.drain(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait = pause.longer()
		case stats.retried > 0 && stats.progressed() == 0:
			wait = pause.longer()
		case stats.claimed == r.batchSize && stats.progressed() == stats.claimed:
			pause.reset()
			continue
		default:
			pause.reset()
			wait = pause.idle()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *Relay) drain(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		stats = batchStats{}
		rows, err := r.store.Claim(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		stats.claimed = len(rows)

		stalled := map[uuid.UUID]bool{}
		for _, row := range rows {
			if stalled[row.AggregateID] {
				stats.deferred++
				r.metrics.Observe(string(row.EventType), metrics.OutboxResultDeferred)
				continue
			}
			result, err := r.relay(ctx, tx, row)
			if err != nil {
				return err
			}
			switch result {
			case metrics.OutboxResultPublished:
				stats.published++
			case metrics.OutboxResultDeadLettered:
				stats.deadLettered++
			case metrics.OutboxResultRetry:
				stats.retried++
				stalled[row.AggregateID] = true
			}
			r.metrics.Observe(string(row.EventType), result)
		}
		return nil
	})
	return stats, err
}

// relay publishes one row and records the result on it. The returned error is
// reserved for bookkeeping failures that must roll the batch back.
func (r *Relay) relay(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (string, error) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":    row.ID.String(),
		"event_type":   row.EventType,
		"aggregate_id": row.AggregateID.String(),
		"attempt":      row.AttemptCount + 1,
	})

	resolved, err := r.catalog.Resolve(row)
	if err != nil {
		return r.bury(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	ctx = r.logg.WithFields(ctx, map[string]any{
		"event_id": resolved.Envelope.EventID,
		"topic":    resolved.Route.Topic,
	})

	sendErr := r.send(ctx, row, resolved)
	switch {
	case sendErr == nil:
		if err := r.store.MarkPublished(tx, row.ID); err != nil {
			return "", fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.logg.Info(ctx, "outbox.published")
		return metrics.OutboxResultPublished, nil
	case registry.IsPermanent(sendErr):
		return r.bury(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, sendErr)
	case row.AttemptCount+1 >= r.maxAttempts:
		return r.bury(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, sendErr))
	}

	if err := r.store.RecordFailure(tx, row.ID, sendErr); err != nil {
		return "", fmt.Errorf("record %s failure: %w", row.ID, err)
	}
	r.logg.Warn(r.logg.WithField(ctx, "error", sendErr.Error()), "outbox.publish_retry")
	return metrics.OutboxResultRetry, nil
}

func (r *Relay) bury(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) (string, error) {
	if err := r.store.DeadLetter(tx, row, reason, cause, r.maxAttempts); err != nil {
		return "", fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	ctx = r.logg.WithFields(ctx, map[string]any{"reason": reason, "error": cause.Error()})
	r.logg.Warn(ctx, "outbox.dead_lettered")
	return metrics.OutboxResultDeadLettered, nil
}

func (r *Relay) send(ctx context.Context, row models.OutboxEvent, resolved *registry.Resolved) error {
	topic := r.topics.get(resolved.Route.Topic)
	if topic == nil {
		return registry.Permanent{Err: fmt.Errorf("no publisher for topic %s", resolved.Route.Topic)}
	}

	key := row.AggregateID.String()
	msg := &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: key,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   key,
			"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if resolved.Envelope.Source != "" {
		msg.Attributes["source"] = resolved.Envelope.Source
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := topic.Publish(publishCtx, msg).Get(publishCtx); err != nil {
		// the client pauses an ordering key after a failure until resumed
		topic.Resume(key)
		return err
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
