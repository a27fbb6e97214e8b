// Package redis provides a Redis-backed session.Store. Sessions are stored
// as JSON under a key prefix and expire through Redis key TTLs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/appgate/pkg/debug"
	"github.com/rhuss/appgate/pkg/session"
	"github.com/rhuss/appgate/pkg/storage"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "appgate:session:"

// Config holds Redis connection settings.
type Config struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// client is the subset of the go-redis API the store uses.
type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Store is a Redis-backed session store.
type Store struct {
	rdb    client
	prefix string
	now    func() time.Time
}

// Ensure Store implements session.Store at compile time.
var _ session.Store = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return newStore(rdb, cfg.KeyPrefix), nil
}

func newStore(rdb client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *Store) key(token string) string {
	return s.prefix + token
}

// Lookup returns the session for token, or storage.ErrNotFound.
func (s *Store) Lookup(ctx context.Context, token string) (*session.Record, error) {
	data, err := s.rdb.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var rec session.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	// Key TTLs have second granularity; check the exact expiry as well.
	if rec.Expired(s.now()) {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

// Save creates or replaces a session. The key expires with the session;
// a session that is already expired is not written.
func (s *Store) Save(ctx context.Context, rec session.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	var ttl time.Duration
	if !rec.ExpiresAt.IsZero() {
		ttl = rec.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			debug.Log("storage", "skipping expired session", "app_id", rec.AppID, "expires_at", rec.ExpiresAt)
			return nil
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(rec.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, token string) error {
	n, err := s.rdb.Del(ctx, s.key(token)).Result()
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck pings Redis.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
