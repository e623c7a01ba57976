// Package bus carries immutable facts between services. Delivery is
// at-least-once and unordered across topics; consumers must apply facts
// idempotently, keyed by the entity id inside the fact value.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topics are extendable; "-add" facts carry the full new entity snapshot,
// "-update" facts carry the full entity after a change.
const (
	TopicUserAdd      = "user-add"
	TopicUserUpdate   = "user-update"
	TopicDriverAdd    = "driver-add"
	TopicDriverUpdate = "driver-update"
	TopicOrderAdd     = "order-add"
	TopicOrderUpdate  = "order-update"
)

// Fact is a serialized entity snapshot at the moment something happened.
// Key is a human-debuggable, time-derived string; it is never used for
// partitioning correctness.
type Fact struct {
	ID    string          `json:"id"`
	Topic string          `json:"topic"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// NewFact builds a fact for topic, marshalling the entity snapshot.
// The key prefix follows the "<entity>-create" convention of the wire
// protocol, e.g. "order-create-2024-01-02T15:04:05.999999999Z".
func NewFact(topic, keyPrefix string, entity any) (Fact, error) {
	val, err := json.Marshal(entity)
	if err != nil {
		return Fact{}, err
	}
	return Fact{
		ID:    uuid.NewString(),
		Topic: topic,
		Key:   Key(keyPrefix, time.Now().UTC()),
		Value: val,
	}, nil
}

// Key derives the human-readable fact key from a prefix and a timestamp.
func Key(prefix string, at time.Time) string {
	return prefix + "-" + at.Format(time.RFC3339Nano)
}

// Publisher sends facts to the bus. Publish returning nil means the fact is
// durably handed to the transport; the outbox dispatcher only marks a fact
// published on nil.
type Publisher interface {
	Publish(ctx context.Context, f Fact) error
}

// Handler applies one fact to a consumer's local state. Returning an error
// prevents the delivery from being committed: the fact will be redelivered,
// never silently dropped. Handlers must therefore be idempotent.
type Handler func(ctx context.Context, f Fact) error
