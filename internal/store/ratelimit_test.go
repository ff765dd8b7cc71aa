package store

import (
	"testing"
	"time"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *time.Time) {
	t.Helper()
	r, err := NewRateLimiter(t.TempDir())
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}

	now := time.Now()
	r.now = func() time.Time { return now }

	return r, &now
}

func TestAcquireFirstWins(t *testing.T) {
	r, _ := newTestLimiter(t)

	if !r.Acquire("telegram:1", time.Minute) {
		t.Fatal("first acquire should win")
	}
	if r.Acquire("telegram:1", time.Minute) {
		t.Error("second acquire within TTL should lose")
	}
}

func TestAcquireAfterExpiry(t *testing.T) {
	r, now := newTestLimiter(t)

	if !r.Acquire("telegram:1", time.Minute) {
		t.Fatal("first acquire should win")
	}

	*now = now.Add(2 * time.Minute)

	if !r.Acquire("telegram:1", time.Minute) {
		t.Error("acquire after TTL expiry should win")
	}
}

func TestAcquireKeysIndependent(t *testing.T) {
	r, _ := newTestLimiter(t)

	if !r.Acquire("telegram:1", time.Minute) {
		t.Fatal("first key should win")
	}
	if !r.Acquire("telegram:2", time.Minute) {
		t.Error("different key should not be blocked")
	}
}
