package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/koseken/game-trading/pkg/config"
)

func TestHitCountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}

	for i := int64(1); i <= 2; i++ {
		w, err := client.Hit(ctx, "messages:user:42", 2, time.Minute)
		require.NoError(t, err)
		require.True(t, w.Allowed)
		require.Equal(t, i, w.Count)
		require.Zero(t, w.ResetIn)
	}
	require.Equal(t, []string{"gt:rate_limit:messages:user:42"}, fake.expired, "expiry is set once per window")

	fake.ttl = 41 * time.Second
	w, err := client.Hit(ctx, "messages:user:42", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, w.Allowed)
	require.Equal(t, 41*time.Second, w.ResetIn)
}

func TestIdempotencyRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}
	key := client.IdempotencyKey("reviews", "abc")

	won, err := client.SetNX(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	won, err = client.SetNX(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	require.False(t, won)

	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "pending", got)

	require.NoError(t, client.Set(ctx, key, "done", time.Hour))
	got, err = client.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "done", got)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	require.ErrorIs(t, err, redis.Nil)
}

func TestPublishUsesChannel(t *testing.T) {
	fake := newFakeCommands()
	client := &Client{cmd: fake}
	channel := client.ChannelName("transactions", "tx-1")

	require.NoError(t, client.Publish(context.Background(), channel, []byte(`{"seq":1}`)))
	require.Equal(t, []string{`{"seq":1}`}, fake.published[channel])
}

func TestUnconnectedClientErrors(t *testing.T) {
	var client *Client
	require.ErrorIs(t, client.Ping(context.Background()), errNoConnection)
	_, err := client.PSubscribe(context.Background(), "gt:channel:*")
	require.ErrorIs(t, err, errNoConnection)
	require.NoError(t, client.Close())
}

func TestKeys(t *testing.T) {
	c := &Client{}
	require.Equal(t, "gt:idempotency:transactions:k1", c.IdempotencyKey("transactions", "k1"))
	require.Equal(t, "gt:rate_limit:writes:ip:1.2.3.4", c.RateLimitKey("writes:ip:1.2.3.4"))
	require.Equal(t, "gt:channel:transactions:tx", c.ChannelName("transactions", "tx"))
	require.Equal(t, "gt:channel:transactions", c.ChannelName("transactions", " "))
}

func TestDialOptions(t *testing.T) {
	opts, err := dialOptions(config.RedisConfig{URL: "redis://:secret@cache:6380/3", PoolSize: 20, DialTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 20, opts.PoolSize)
	require.Equal(t, time.Second, opts.DialTimeout)

	opts, err = dialOptions(config.RedisConfig{Address: "localhost:6379", DB: 2})
	require.NoError(t, err)
	require.Equal(t, 2, opts.DB)

	_, err = dialOptions(config.RedisConfig{})
	require.Error(t, err)
	_, err = dialOptions(config.RedisConfig{URL: "http://nope"})
	require.Error(t, err)
}

type fakeCommands struct {
	data      map[string]string
	counters  map[string]int64
	published map[string][]string
	expired   []string
	ttl       time.Duration
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{
		data:      map[string]string{},
		counters:  map[string]int64{},
		published: map[string][]string{},
	}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeCommands) Expire(_ context.Context, key string, _ time.Duration) *redis.BoolCmd {
	f.expired = append(f.expired, key)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) PTTL(context.Context, string) *redis.DurationCmd {
	return redis.NewDurationResult(f.ttl, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeCommands) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.published[channel] = append(f.published[channel], fmt.Sprintf("%s", message))
	return redis.NewIntResult(1, nil)
}
