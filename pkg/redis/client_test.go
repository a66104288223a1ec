package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestInvalidateGalleryCache(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	mock.data["sc:gallery:photo:SC-1042"] = "available"
	mock.data["sc:gallery:listing:brindle"] = "[...]"

	if err := client.InvalidateGalleryCache(ctx, "brindle", "SC-1042"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, ok := mock.data["sc:gallery:photo:SC-1042"]; ok {
		t.Fatal("expected photo status key to be dropped")
	}
	if _, ok := mock.data["sc:gallery:listing:brindle"]; ok {
		t.Fatal("expected listing key to be dropped")
	}
}

func TestInvalidateGalleryCacheWithoutCategory(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	mock.data["sc:gallery:photo:SC-7"] = "reserved"
	if err := client.InvalidateGalleryCache(ctx, "", "SC-7"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, ok := mock.data["sc:gallery:photo:SC-7"]; ok {
		t.Fatal("expected photo status key to be dropped")
	}
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if _, err := client.IncrWithTTL(ctx, "sc:counter:sweeps", time.Minute); err != nil {
		t.Fatalf("incr failed: %v", err)
	}
	if _, err := client.IncrWithTTL(ctx, "sc:counter:sweeps", time.Minute); err != nil {
		t.Fatalf("incr failed: %v", err)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expected a single expire call, got %d", len(mock.expireCalls))
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.GalleryListingKey("brindle"); got != "sc:gallery:listing:brindle" {
		t.Fatalf("unexpected gallery listing key %s", got)
	}
	if got := client.PhotoStatusKey("SC-1042"); got != "sc:gallery:photo:SC-1042" {
		t.Fatalf("unexpected photo status key %s", got)
	}
	if got := client.LockKey("reconcile-worker"); got != "sc:lock:reconcile-worker" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.CounterKey("hits"); got != "sc:counter:hits" {
		t.Fatalf("unexpected counter key %s", got)
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
