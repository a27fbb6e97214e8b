package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/appgate/pkg/session"
	"github.com/rhuss/appgate/pkg/storage"
)

// fakeClient is an in-process stand-in for a Redis server.
type fakeClient struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failErr error
	closed  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return goredis.NewStringResult("", f.failErr)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return goredis.NewStatusResult("", f.failErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return goredis.NewIntResult(0, f.failErr)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			delete(f.ttls, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func (f *fakeClient) Ping(_ context.Context) *goredis.StatusCmd {
	if f.failErr != nil {
		return goredis.NewStatusResult("", f.failErr)
	}
	return goredis.NewStatusResult("PONG", nil)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func fixedNow(s *Store) time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return now
}

func TestSaveAndLookup(t *testing.T) {
	fake := newFakeClient()
	s := newStore(fake, "")
	now := fixedNow(s)
	ctx := context.Background()

	rec := session.Record{
		Token:     "r:abc",
		AppID:     "app1",
		UserID:    "u1",
		Username:  "alice",
		ExpiresAt: now.Add(time.Hour),
	}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	key := DefaultKeyPrefix + "r:abc"
	if fake.ttls[key] != time.Hour {
		t.Errorf("ttl = %v, want 1h", fake.ttls[key])
	}
	var stored session.Record
	if err := json.Unmarshal([]byte(fake.data[key]), &stored); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}

	got, err := s.Lookup(ctx, "r:abc")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.UserID != "u1" || got.Username != "alice" || !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Errorf("record = %+v", got)
	}
}

func TestSaveWithoutExpiryHasNoTTL(t *testing.T) {
	fake := newFakeClient()
	s := newStore(fake, "custom:")

	if err := s.Save(context.Background(), session.Record{Token: "t", AppID: "a", UserID: "u"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ttl, ok := fake.ttls["custom:t"]; !ok || ttl != 0 {
		t.Errorf("ttl = %v (present %v), want 0 under custom prefix", ttl, ok)
	}
}

func TestSaveExpiredIsSkipped(t *testing.T) {
	fake := newFakeClient()
	s := newStore(fake, "")
	now := fixedNow(s)

	err := s.Save(context.Background(), session.Record{Token: "t", AppID: "a", UserID: "u", ExpiresAt: now.Add(-time.Second)})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(fake.data) != 0 {
		t.Errorf("expired session was written: %v", fake.data)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	s := newStore(newFakeClient(), "")
	if err := s.Save(context.Background(), session.Record{Token: "t"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestLookupNotFound(t *testing.T) {
	s := newStore(newFakeClient(), "")

	_, err := s.Lookup(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupExpiredRecord(t *testing.T) {
	fake := newFakeClient()
	s := newStore(fake, "")
	now := fixedNow(s)

	data, _ := json.Marshal(session.Record{Token: "t", AppID: "a", UserID: "u", ExpiresAt: now.Add(-time.Millisecond)})
	fake.data[DefaultKeyPrefix+"t"] = string(data)

	if _, err := s.Lookup(context.Background(), "t"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired record, got %v", err)
	}
}

func TestLookupCorruptValue(t *testing.T) {
	fake := newFakeClient()
	fake.data[DefaultKeyPrefix+"t"] = "not json"
	s := newStore(fake, "")

	_, err := s.Lookup(context.Background(), "t")
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestBackendFailureIsNotNotFound(t *testing.T) {
	fake := newFakeClient()
	fake.failErr = errors.New("connection refused")
	s := newStore(fake, "")
	ctx := context.Background()

	if _, err := s.Lookup(ctx, "t"); err == nil || errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Lookup: expected backend error, got %v", err)
	}
	if err := s.Save(ctx, session.Record{Token: "t", AppID: "a", UserID: "u"}); err == nil {
		t.Error("Save: expected backend error")
	}
	if err := s.Delete(ctx, "t"); err == nil || errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete: expected backend error, got %v", err)
	}
	if err := s.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck: expected error")
	}
}

func TestDelete(t *testing.T) {
	fake := newFakeClient()
	s := newStore(fake, "")
	ctx := context.Background()

	s.Save(ctx, session.Record{Token: "t", AppID: "a", UserID: "u"})
	if err := s.Delete(ctx, "t"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "t"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete: expected ErrNotFound, got %v", err)
	}
}

func TestResolverOverRedis(t *testing.T) {
	s := newStore(newFakeClient(), "")
	ctx := context.Background()
	s.Save(ctx, session.Record{Token: "t", AppID: "a", UserID: "u"})

	if err := session.NewResolver(s).Revoke(ctx, "t"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := s.Lookup(ctx, "t"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("session survived Revoke: %v", err)
	}
}

func TestClose(t *testing.T) {
	fake := newFakeClient()
	s := newStore(fake, "")
	if err := s.Close(); err != nil || !fake.closed {
		t.Errorf("Close() = %v, closed = %v", err, fake.closed)
	}
}
