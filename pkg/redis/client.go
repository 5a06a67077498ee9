// Package redis holds the shared Redis connection used for idempotency
// records, write throttling and the realtime fan-out channel. Every key and
// channel lives under the "gt:" namespace.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/koseken/game-trading/pkg/config"
	"github.com/koseken/game-trading/pkg/logger"
)

const namespace = "gt"

var errNoConnection = errors.New("redis: no connection")

// commands is the slice of go-redis used outside pub/sub; tests stub it.
type commands interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	PTTL(context.Context, string) *redis.DurationCmd
	Del(context.Context, ...string) *redis.IntCmd
	Publish(context.Context, string, any) *redis.IntCmd
}

type Client struct {
	cmd  commands
	conn *redis.Client
}

// Pinger is what readiness probes need.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is the surface the idempotency middleware depends on.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Set(context.Context, string, any, time.Duration) error
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// Window is the state of one fixed-window counter after a hit.
type Window struct {
	Count   int64
	Allowed bool
	// ResetIn is the time left before the counter expires. Zero when unknown.
	ResetIn time.Duration
}

// New dials Redis from cfg and pings it before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB}), "redis.connected")
	return &Client{cmd: conn, conn: conn}, nil
}

// dialOptions prefers GT_REDIS_URL and fills anything the URL leaves unset
// from the discrete settings.
func dialOptions(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing GT_REDIS_URL: %w", err)
		}
		if parsed.DB == 0 {
			parsed.DB = cfg.DB
		}
		opts = parsed
	}
	if opts.Addr == "" {
		return nil, errors.New("redis: GT_REDIS_URL or GT_REDIS_ADDR must be set")
	}

	setDefault(&opts.PoolSize, cfg.PoolSize)
	setDefault(&opts.MinIdleConns, cfg.MinIdleConns)
	setDefault(&opts.DialTimeout, cfg.DialTimeout)
	setDefault(&opts.ReadTimeout, cfg.ReadTimeout)
	setDefault(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func setDefault[T comparable](dst *T, value T) {
	var zero T
	if *dst == zero {
		*dst = value
	}
}

func (c *Client) commands() (commands, error) {
	if c == nil || c.cmd == nil {
		return nil, errNoConnection
	}
	return c.cmd, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	cmd, err := c.commands()
	if err != nil {
		return "", err
	}
	return cmd.Get(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	cmd, err := c.commands()
	if err != nil {
		return false, err
	}
	return cmd.SetNX(ctx, key, value, ttl).Result()
}

// Set overwrites key unconditionally.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	cmd, err := c.commands()
	if err != nil {
		return err
	}
	return cmd.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	cmd, err := c.commands()
	if err != nil {
		return err
	}
	return cmd.Del(ctx, keys...).Err()
}

// Hit counts one request against scope's fixed window. The first hit in a
// window starts the expiry; ResetIn is only looked up for rejected hits.
func (c *Client) Hit(ctx context.Context, scope string, limit int64, window time.Duration) (Window, error) {
	cmd, err := c.commands()
	if err != nil {
		return Window{}, err
	}
	key := c.RateLimitKey(scope)
	count, err := cmd.Incr(ctx, key).Result()
	if err != nil {
		return Window{}, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 && window > 0 {
		if err := cmd.Expire(ctx, key, window).Err(); err != nil {
			return Window{}, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	w := Window{Count: count, Allowed: count <= limit}
	if !w.Allowed {
		if ttl, err := cmd.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
			w.ResetIn = ttl
		}
	}
	return w, nil
}

// Publish sends payload to every subscriber of channel.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	cmd, err := c.commands()
	if err != nil {
		return err
	}
	return cmd.Publish(ctx, channel, payload).Err()
}

// PSubscribe opens a pattern subscription and waits for the confirmation.
// The caller closes the returned handle.
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error) {
	if c == nil || c.conn == nil {
		return nil, errNoConnection
	}
	sub := c.conn.PSubscribe(ctx, patterns...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("psubscribe %s: %w", strings.Join(patterns, ","), err)
	}
	return sub, nil
}

func (c *Client) Ping(ctx context.Context) error {
	cmd, err := c.commands()
	if err != nil {
		return err
	}
	return cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// IdempotencyKey is gt:idempotency:<scope>:<id>.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key("idempotency", scope, id)
}

// RateLimitKey is gt:rate_limit:<scope>.
func (c *Client) RateLimitKey(scope string) string {
	return key("rate_limit", scope)
}

// ChannelName is gt:channel:<parts...>. Empty parts are dropped.
func (c *Client) ChannelName(parts ...string) string {
	return key(append([]string{"channel"}, parts...)...)
}

func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
