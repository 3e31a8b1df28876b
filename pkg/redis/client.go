package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/smartpark-backend/pkg/config"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

const (
	keyNamespace    = "sp"
	rateLimitPrefix = "rate_limit"
	lockPrefix      = "lock"
	realtimePrefix  = "realtime"
	parkSegment     = "park"
)

var errNotInitialized = errors.New("redis client not initialized")

// compareAndDelete drops KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type cmdable interface {
	redis.Scripter
	Ping(context.Context) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Publish(context.Context, string, any) *redis.IntCmd
}

// Client carries the rate limit counters, cron locks and realtime fan-out.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"redis_db":   opts.DB,
			"redis_pool": opts.PoolSize,
		}), "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	// URL values win; config fills whatever the URL left unset.
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	setIfZero(&opts.PoolSize, cfg.PoolSize)
	setIfZero(&opts.MinIdleConns, cfg.MinIdleConns)
	setIfZero(&opts.DialTimeout, cfg.DialTimeout)
	setIfZero(&opts.ReadTimeout, cfg.ReadTimeout)
	setIfZero(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func setIfZero[T comparable](dst *T, v T) {
	var zero T
	if *dst == zero {
		*dst = v
	}
}

func (c *Client) ready() error {
	if c == nil || c.store == nil {
		return errNotInitialized
	}
	return nil
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// DelIfEquals deletes key only while it still holds value, in one round trip.
// It reports whether the key was removed.
func (c *Client) DelIfEquals(ctx context.Context, key string, value string) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	n, err := compareAndDelete.Run(ctx, c.store, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FixedWindowAllow counts a hit against scope and reports whether the count
// is still within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if err := c.ready(); err != nil {
		return false, 0, err
	}
	key := c.RateLimitKey(scope)
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	// the first hit opens the window
	if window > 0 && count == 1 {
		if err := c.store.Expire(ctx, key, window).Err(); err != nil {
			return false, count, err
		}
	}
	return count <= limit, count, nil
}

// Publish sends payload to a pub/sub channel.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Publish(ctx, channel, payload).Err()
}

// PSubscribe opens a pattern subscription. The caller owns the returned
// PubSub and must Close it.
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error) {
	if c == nil || c.raw == nil {
		return nil, errNotInitialized
	}
	sub := c.raw.PSubscribe(ctx, patterns...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("psubscribe: %w", err)
	}
	return sub, nil
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey(rateLimitPrefix, scope)
}

func (c *Client) LockKey(name string) string {
	return buildKey(lockPrefix, name)
}

// ParkChannel returns the pub/sub channel carrying a park's realtime events.
func (c *Client) ParkChannel(parkID string) string {
	return buildKey(realtimePrefix, parkSegment, parkID)
}

// ParkChannelPattern matches every park channel.
func (c *Client) ParkChannelPattern() string {
	return buildKey(realtimePrefix, parkSegment, "*")
}

// ParkIDFromChannel extracts the park id from a channel built by ParkChannel.
func (c *Client) ParkIDFromChannel(channel string) (string, bool) {
	prefix := buildKey(realtimePrefix, parkSegment) + ":"
	id, ok := strings.CutPrefix(channel, prefix)
	return id, ok && id != ""
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}
