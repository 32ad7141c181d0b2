package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeLockClient implements SETNX and the release script against a map.
type fakeLockClient struct {
	redis.Scripter
	data   map[string]string
	setErr error
}

func newFakeLockClient() *fakeLockClient {
	return &fakeLockClient{data: make(map[string]string)}
}

func (f *fakeLockClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLockClient) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("NOSCRIPT No matching script"))
}

func (f *fakeLockClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if f.data[keys[0]] == args[0].(string) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestLockerExcludesSecondHolder(t *testing.T) {
	client := newFakeLockClient()
	locker := newLocker(client, time.Minute)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "run:collector")
	if err != nil || !ok || token == "" {
		t.Fatalf("expected first lock to succeed, got %q %v %v", token, ok, err)
	}
	if _, ok, _ := locker.TryLock(ctx, "run:collector"); ok {
		t.Fatal("second lock should fail while held")
	}

	if err := locker.Release(ctx, "run:collector", token); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if _, ok, _ := locker.TryLock(ctx, "run:collector"); !ok {
		t.Fatal("lock should be free after release")
	}
}

func TestLockerReleaseIgnoresForeignToken(t *testing.T) {
	client := newFakeLockClient()
	locker := newLocker(client, time.Minute)
	ctx := context.Background()

	if _, ok, _ := locker.TryLock(ctx, "run:collector"); !ok {
		t.Fatal("expected lock")
	}
	if err := locker.Release(ctx, "run:collector", "someone-else"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, held := client.data["run:collector"]; !held {
		t.Fatal("foreign token must not release the lock")
	}
}

func TestLockerValidation(t *testing.T) {
	var nilLocker *Locker
	if _, _, err := nilLocker.TryLock(context.Background(), "k"); err == nil {
		t.Fatal("expected error for nil locker")
	}
	if err := nilLocker.Release(context.Background(), "k", "t"); err != nil {
		t.Fatalf("nil release should be a no-op, got %v", err)
	}
	if NewLocker(nil, time.Minute) != nil {
		t.Fatal("expected nil locker without a client")
	}

	locker := newLocker(newFakeLockClient(), 0)
	if _, _, err := locker.TryLock(context.Background(), "k"); err == nil {
		t.Fatal("expected ttl error")
	}
	if _, _, err := newLocker(newFakeLockClient(), time.Second).TryLock(context.Background(), ""); err == nil {
		t.Fatal("expected empty key error")
	}
}

func TestLockerPropagatesRedisError(t *testing.T) {
	client := newFakeLockClient()
	client.setErr = errors.New("READONLY")
	if _, _, err := newLocker(client, time.Second).TryLock(context.Background(), "k"); err == nil {
		t.Fatal("expected redis error")
	}
}
