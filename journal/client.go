package journal

import (
	"context"
	"errors"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("journal closed")

// LodeClient is a Lode-backed implementation of Client.
// Uses Lode's HiveLayout with partition keys: session/day.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	mu     sync.Mutex // guards closed
	closed bool
}

// newDataset opens the journal dataset over factory.
func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewLodeClient creates a client with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	ds, err := newDataset(cfg.dataset(), factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.dataset())
	}
	return &LodeClient{dataset: ds, config: cfg}, nil
}

// WriteMessages writes a batch of records as one Lode snapshot.
// Records with an empty Session take the client's configured session.
func (c *LodeClient) WriteMessages(ctx context.Context, records []*Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if len(records) == 0 {
		return nil
	}

	items := make([]any, 0, len(records))
	for _, r := range records {
		m := toRecordMap(r)
		if r.Session == "" {
			m["session"] = c.config.Session
		}
		items = append(items, m)
	}

	if _, err := c.dataset.Write(ctx, items, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.config.dataset())
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Verify LodeClient implements Client.
var _ Client = (*LodeClient)(nil)
