package main

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publishResult interface {
	Get(context.Context) (string, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Resume(orderingKey string)
	Stop()
}

// orderedTopic is a Pub/Sub publisher with message ordering switched on, so
// events sharing an aggregate id reach subscribers in publish order.
type orderedTopic struct {
	p *gcppubsub.Publisher
}

func newOrderedTopic(p *gcppubsub.Publisher) topicPublisher {
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	return &orderedTopic{p: p}
}

func (t *orderedTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return t.p.Publish(ctx, msg)
}

func (t *orderedTopic) Resume(key string) { t.p.ResumePublish(key) }

func (t *orderedTopic) Stop() { t.p.Stop() }

// topicSet opens each topic publisher once and keeps it for the relay's life.
type topicSet struct {
	mu   sync.Mutex
	open func(string) topicPublisher
	byID map[string]topicPublisher
}

func newTopicSet(open func(string) topicPublisher) *topicSet {
	return &topicSet{open: open, byID: map[string]topicPublisher{}}
}

func (s *topicSet) get(topic string) topicPublisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.byID[topic]; ok {
		return p
	}
	p := s.open(topic)
	if p != nil {
		s.byID[topic] = p
	}
	return p
}

func (s *topicSet) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.byID {
		p.Stop()
		delete(s.byID, id)
	}
}

const jitter = 250 * time.Millisecond

// pause doubles from base up to max while batches keep failing.
type pause struct {
	base, max, cur time.Duration
}

func newPause(base, max time.Duration) *pause {
	return &pause{base: base, max: max, cur: base}
}

func (p *pause) reset() { p.cur = p.base }

func (p *pause) idle() time.Duration { return p.base + rand.N(jitter) }

func (p *pause) longer() time.Duration {
	p.cur = min(p.cur*2, p.max)
	return p.cur + rand.N(jitter)
}
