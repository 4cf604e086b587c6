package eventstore

import (
	"time"

	"github.com/goccy/go-json"
)

// Event is one persisted build event.
type Event struct {
	ID        int64
	BuildID   string
	Type      string
	Timestamp time.Time
	Payload   []byte
	Metadata  map[string]string
}

// Decode unmarshals the JSON payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}
