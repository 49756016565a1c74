package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartstate/internal/config"
	"github.com/nikolayk812/cartstate/internal/logger"
	"github.com/nikolayk812/cartstate/internal/port"
	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace   = "cs"
	kvPrefix       = "kv"
	DefaultChannel = "cs:changes"
)

// envelope is published on every write. It names the change only; listeners
// read the value when they handle it, so a late message never carries a value
// that was overwritten since.
type envelope struct {
	Key     string `json:"key"`
	Origin  string `json:"origin"`
	Deleted bool   `json:"deleted"`
}

// Client is a substrate handle backed by Redis strings and pub/sub.
type Client struct {
	raw     *redis.Client
	owned   bool
	origin  string
	channel string
	logg    *logger.Logger
}

var _ port.Substrate = (*Client)(nil)

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

	c := NewFromClient(raw, cfg.Channel, logg)
	c.owned = true
	return c, nil
}

// NewFromClient wraps an existing connection. Handles created this way share
// the connection pool but each has its own origin; Close leaves raw open.
func NewFromClient(raw *redis.Client, channel string, logg *logger.Logger) *Client {
	if channel == "" {
		channel = DefaultChannel
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Client{
		raw:     raw,
		origin:  uuid.NewString(),
		channel: channel,
		logg:    logg,
	}
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

func (c *Client) Origin() string {
	return c.origin
}

// KVKey returns the namespaced redis key for a substrate key.
func (c *Client) KVKey(key string) string {
	return buildKey(kvPrefix, key)
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if c.raw == nil {
		return "", false, errors.New("redis client not initialized")
	}
	value, err := c.raw.Get(ctx, c.KVKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis.Get: %w", err)
	}
	return value, true, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	return c.write(ctx, envelope{Key: key, Origin: c.origin}, value)
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.write(ctx, envelope{Key: key, Origin: c.origin, Deleted: true}, "")
}

// write applies the change and publishes it in one MULTI/EXEC.
func (c *Client) write(ctx context.Context, e envelope, value string) error {
	if c.raw == nil {
		return errors.New("redis client not initialized")
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	pipe := c.raw.TxPipeline()
	if e.Deleted {
		pipe.Del(ctx, c.KVKey(e.Key))
	} else {
		pipe.Set(ctx, c.KVKey(e.Key), value, 0)
	}
	pipe.Publish(ctx, c.channel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipe.Exec: %w", err)
	}
	return nil
}

// Subscribe listens on the change channel until unsubscribe is called or ctx is done.
func (c *Client) Subscribe(ctx context.Context, key string, fn func(port.Change)) (func(), error) {
	if c.raw == nil {
		return nil, errors.New("redis client not initialized")
	}
	if fn == nil {
		return nil, errors.New("fn is nil")
	}

	ps := c.raw.Subscribe(ctx, c.channel)
	// wait for the subscription confirmation so no write after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("ps.Receive: %w", err)
	}

	listenCtx, cancel := context.WithCancel(ctx)
	logCtx := c.logg.WithFields(context.WithoutCancel(ctx), map[string]any{
		"channel": c.channel,
		"key":     key,
	})
	done := make(chan struct{})
	messages := ps.Channel()

	go func() {
		defer close(done)
		for {
			select {
			case <-listenCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				c.dispatch(listenCtx, logCtx, key, msg.Payload, fn)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			if err := ps.Close(); err != nil {
				c.logg.Warn(logCtx, "failed to close subscription", err)
			}
		})
	}, nil
}

func (c *Client) dispatch(ctx, logCtx context.Context, key, payload string, fn func(port.Change)) {
	e, err := decodeEnvelope(payload)
	if err != nil {
		c.logg.Warn(logCtx, "ignoring malformed change envelope", err)
		return
	}
	if e.Key != key || e.Origin == c.origin {
		return
	}

	change := e.change()
	if change.Present {
		value, found, err := c.Get(ctx, key)
		if err != nil {
			c.logg.Error(logCtx, "failed to read changed value", err)
			return
		}
		change.Value = value
		change.Present = found
	}

	fn(change)
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if c.raw == nil {
		return errors.New("redis client not initialized")
	}
	return c.raw.Ping(ctx).Err()
}

// Close shuts down the underlying client if this handle owns it.
func (c *Client) Close() error {
	if c.raw == nil || !c.owned {
		return nil
	}
	return c.raw.Close()
}

func decodeEnvelope(payload string) (envelope, error) {
	var e envelope
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return envelope{}, fmt.Errorf("json.Unmarshal: %w", err)
	}
	if e.Key == "" || e.Origin == "" {
		return envelope{}, errors.New("envelope key or origin is empty")
	}
	return e, nil
}

func (e envelope) change() port.Change {
	return port.Change{Key: e.Key, Origin: e.Origin, Present: !e.Deleted}
}

func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}
