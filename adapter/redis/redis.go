// Package redis announces assembled messages on a Redis pub/sub channel.
//
// Each completed message becomes one JSON MessageAssembledEvent. A
// "{session}" placeholder in the channel name is replaced by the event's
// session, so several assemblers can share one server without sharing a
// channel.
package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/vst/adapter"
)

// DefaultChannel is used when Config.Channel is empty.
const DefaultChannel = "vst:message_assembled"

// SessionPlaceholder in a channel name is replaced by the event's session.
const SessionPlaceholder = "{session}"

// DefaultTimeout bounds one PUBLISH.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the retry count the CLI uses when none is configured.
const DefaultRetries = 3

// Config configures the adapter. Only URL is required.
type Config struct {
	// URL is redis://[:password@]host:port[/db].
	URL     string
	Channel string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Adapter publishes message_assembled events via PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New validates cfg, fills defaults and connects lazily.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	cfg.Channel = cmp.Or(cfg.Channel, DefaultChannel)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = adapter.DefaultBackoff
	}
	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// channel resolves the channel name for one event.
func (a *Adapter) channel(event *adapter.MessageAssembledEvent) string {
	return strings.ReplaceAll(a.config.Channel, SessionPlaceholder, event.Session)
}

// Publish announces event, retrying failed PUBLISH calls with backoff.
func (a *Adapter) Publish(ctx context.Context, event *adapter.MessageAssembledEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	channel := a.channel(event)
	err = adapter.Retry(ctx, a.config.Retries, a.config.Backoff, nil, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		return a.client.Publish(ctx, channel, body).Err()
	})
	if err != nil {
		return fmt.Errorf("redis: publish message %d to %s: %w", event.MessageID, channel, err)
	}
	return nil
}

// Close closes the connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
