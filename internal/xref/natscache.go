package xref

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSCache keeps downloaded reference maps in a JetStream key/value bucket
// so repeated builds skip the network.
type NATSCache struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
	ttl  time.Duration
}

type natsCacheEntry struct {
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
	Data      []byte    `json:"data"`
}

// NewNATSCache connects to natsURL and opens (or creates) bucket. Entries
// older than ttl are treated as misses.
func NewNATSCache(ctx context.Context, natsURL, bucket string, ttl time.Duration) (*NATSCache, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	kv, err := js.KeyValue(initCtx, bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(initCtx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "Downloaded reference maps",
			MaxBytes:    512 * 1024 * 1024,
			History:     1,
			TTL:         ttl,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create KV bucket: %w", err)
		}
		slog.Info("Created KV bucket for reference maps", slog.String("bucket", bucket))
	}
	return &NATSCache{conn: conn, kv: kv, ttl: ttl}, nil
}

// cacheKey maps a URL to a valid KV key.
func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "map." + hex.EncodeToString(sum[:])
}

func (c *NATSCache) Get(ctx context.Context, rawURL string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	entry, err := c.kv.Get(ctx, cacheKey(rawURL))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	var cached natsCacheEntry
	if err := json.Unmarshal(entry.Value(), &cached); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	if cached.URL != rawURL || (c.ttl > 0 && time.Since(cached.FetchedAt) >= c.ttl) {
		return nil, false, nil
	}
	return cached.Data, true, nil
}

func (c *NATSCache) Put(ctx context.Context, rawURL string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	payload, err := json.Marshal(natsCacheEntry{URL: rawURL, FetchedAt: time.Now(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if _, err := c.kv.Put(ctx, cacheKey(rawURL), payload); err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (c *NATSCache) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}
