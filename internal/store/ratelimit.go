package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RateLimiter hands out per-conversation cooldown tokens. Acquire succeeds
// at most once per TTL window for a given key: the first caller wins, every
// other caller within the window is told to back off.
//
// Tokens are files created with O_EXCL so concurrent acquirers race on the
// filesystem and exactly one wins.
type RateLimiter struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

type rateToken struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewRateLimiter creates a RateLimiter rooted at the workspace directory.
func NewRateLimiter(workspace string) (*RateLimiter, error) {
	dir := filepath.Join(workspace, "ratelimit")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ratelimit dir: %w", err)
	}

	return &RateLimiter{dir: dir, now: time.Now}, nil
}

// Acquire attempts to take the cooldown token for key with the given TTL.
// It returns true when the token was taken (caller may proceed) and false
// when a live token already exists. Store errors fail open: the caller
// proceeds rather than silently dropping traffic.
func (r *RateLimiter) Acquire(key string, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.dir, safeFilename(key)+".lock")

	if r.createToken(path, ttl) {
		return true
	}

	// A token file exists; only an expired one may be stolen.
	data, err := os.ReadFile(path)
	if err != nil {
		return true // fail open
	}

	var tok rateToken
	if err := json.Unmarshal(data, &tok); err == nil && r.now().Before(tok.ExpiresAt) {
		return false
	}

	// Expired or unreadable: remove and retry the exclusive create so a
	// concurrent acquirer still yields a single winner.
	os.Remove(path)

	return r.createToken(path, ttl)
}

func (r *RateLimiter) createToken(path string, ttl time.Duration) bool {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return false
	}
	defer f.Close()

	data, _ := json.Marshal(rateToken{ExpiresAt: r.now().Add(ttl)})
	if _, err := f.Write(data); err != nil {
		os.Remove(path)
		return true // fail open
	}

	return true
}
