// Package persist stores finished session snapshots in a NATS JetStream
// key-value bucket, keyed by session id.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/council/internal/logging"
	"github.com/fyrsmithlabs/council/internal/orchestrator"
)

// DefaultBucket is the bucket used when none is configured.
const DefaultBucket = "council_sessions"

// ErrNotFound is returned for ids that were never persisted, or were
// deleted. It matches orchestrator.ErrSessionNotFound.
var ErrNotFound = fmt.Errorf("persisted %w", orchestrator.ErrSessionNotFound)

// KVSink persists session snapshots as JSON.
type KVSink struct {
	kv     jetstream.KeyValue
	logger *logging.Logger
}

// NewKVSink binds to bucket, creating it if missing.
func NewKVSink(ctx context.Context, nc *nats.Conn, bucket string, logger *logging.Logger) (*KVSink, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Finished council sessions",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucket, err)
	}

	logger.Info(ctx, "session store ready", zap.String("bucket", bucket))
	return &KVSink{kv: kv, logger: logger}, nil
}

// Persist implements orchestrator.Persister. A later write for the same
// id replaces the earlier one.
func (s *KVSink) Persist(ctx context.Context, snap orchestrator.Session) error {
	if snap.ID == "" {
		return errors.New("session without id")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", snap.ID, err)
	}
	rev, err := s.kv.Put(ctx, snap.ID, data)
	if err != nil {
		return fmt.Errorf("failed to store session %s: %w", snap.ID, err)
	}
	s.logger.Debug(ctx, "session stored", zap.Uint64("revision", rev), zap.Int("bytes", len(data)))
	return nil
}

// Load returns the stored snapshot for id.
func (s *KVSink) Load(ctx context.Context, id string) (orchestrator.Session, error) {
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrInvalidKey) {
			return orchestrator.Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return orchestrator.Session{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var snap orchestrator.Session
	if err := json.Unmarshal(entry.Value(), &snap); err != nil {
		return orchestrator.Session{}, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return snap, nil
}

// IDs returns every stored session id, sorted.
func (s *KVSink) IDs(ctx context.Context) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer lister.Stop()

	var ids []string
	for key := range lister.Keys() {
		ids = append(ids, key)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a stored session.
func (s *KVSink) Delete(ctx context.Context, id string) error {
	if _, err := s.kv.Get(ctx, id); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrInvalidKey) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to look up session %s: %w", id, err)
	}
	if err := s.kv.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	s.logger.Debug(ctx, "session deleted", zap.String("session_id", id))
	return nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Persist(context.Context, orchestrator.Session) error { return nil }
