package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound indicates the session does not exist or has expired.
var ErrNotFound = errors.New("session: not found")

const defaultTTL = time.Hour

// indexKey tracks known session ids so the sweeper can prune entries
// whose payload keys have expired.
const indexKey = "sessions:index"

// Store persists sessions in Redis with an idle-expiry TTL. Expiry is
// advisory cleanup: an expired session simply starts a fresh booking.
type Store struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewStore creates a Redis-backed session store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		redis:  client,
		tracer: otel.Tracer("docadesk.internal.session"),
		ttl:    ttl,
	}
}

// Create allocates a new empty session at the greeting stage.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Stage:     StageGreeting,
		Fields:    make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load returns the session with the given id, or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.load")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load %s: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode %s: %w", id, err)
	}
	return &sess, nil
}

// Save persists the session and refreshes its idle TTL.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	sess.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal %s: %w", sess.ID, err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist %s: %w", sess.ID, err)
	}
	if err := s.redis.SAdd(ctx, indexKey, sess.ID).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to index %s: %w", sess.ID, err)
	}
	return nil
}

// Expire removes a session immediately.
func (s *Store) Expire(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "session.expire")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(id)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to expire %s: %w", id, err)
	}
	if err := s.redis.SRem(ctx, indexKey, id).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to deindex %s: %w", id, err)
	}
	return nil
}

// Sweep prunes index entries whose session keys have expired. Returns
// the number of ids removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "session.sweep")
	defer span.End()

	ids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("session: failed to list index: %w", err)
	}

	removed := 0
	for _, id := range ids {
		exists, err := s.redis.Exists(ctx, sessionKey(id)).Result()
		if err != nil {
			span.RecordError(err)
			return removed, fmt.Errorf("session: failed to check %s: %w", id, err)
		}
		if exists == 0 {
			if err := s.redis.SRem(ctx, indexKey, id).Err(); err != nil {
				return removed, fmt.Errorf("session: failed to deindex %s: %w", id, err)
			}
			removed++
		}
	}
	return removed, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
