// Package eventstore persists build events and projects them into a build history.
package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error

	// ByBuild retrieves all events for a specific build in append order.
	ByBuild(ctx context.Context, buildID string) ([]Event, error)

	// Range retrieves events with start <= timestamp <= end in append order.
	Range(ctx context.Context, start, end time.Time) ([]Event, error)

	Close() error
}
