package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// AttemptKey identifies one stream of access attempts
type AttemptKey struct {
	TenantID     string
	UserID       string
	ResourceType string
	Action       string
}

// String renders the key for storage backends
func (k AttemptKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.TenantID, k.UserID, k.ResourceType, k.Action)
}

// AttemptCounter tracks access attempts per key within a sliding time
// window. Implementations must be safe for concurrent use; increments on
// the same key must never lose updates.
type AttemptCounter interface {
	// Increment records an attempt and returns the count within the window,
	// including this attempt
	Increment(ctx context.Context, key AttemptKey, window time.Duration) (int64, error)

	// Count returns the current count within the window without recording
	Count(ctx context.Context, key AttemptKey, window time.Duration) (int64, error)

	// Reset clears the counter for a key
	Reset(ctx context.Context, key AttemptKey) error
}

// memoryCounter is the in-process AttemptCounter: a bounded LRU of per-key
// sliding windows. Keys evicted by the LRU simply restart from zero, which
// only ever under-counts. That keeps memory bounded under key churn.
type memoryCounter struct {
	windows *lru.Cache[string, *slidingWindow]
}

// NewMemoryCounter creates an in-memory counter bounded to maxKeys tracked
// keys
func NewMemoryCounter(maxKeys int) (AttemptCounter, error) {
	if maxKeys <= 0 {
		maxKeys = 4096
	}
	windows, err := lru.New[string, *slidingWindow](maxKeys)
	if err != nil {
		return nil, err
	}
	return &memoryCounter{windows: windows}, nil
}

func (c *memoryCounter) Increment(_ context.Context, key AttemptKey, window time.Duration) (int64, error) {
	fresh := newSlidingWindow()
	w, ok, _ := c.windows.PeekOrAdd(key.String(), fresh)
	if !ok {
		// PeekOrAdd inserted fresh; use it directly, a concurrent insert may
		// already have evicted the cache entry
		w = fresh
	}
	return w.add(time.Now(), window), nil
}

func (c *memoryCounter) Count(_ context.Context, key AttemptKey, window time.Duration) (int64, error) {
	w, ok := c.windows.Get(key.String())
	if !ok {
		return 0, nil
	}
	return w.count(time.Now(), window), nil
}

func (c *memoryCounter) Reset(_ context.Context, key AttemptKey) error {
	c.windows.Remove(key.String())
	return nil
}

type slidingWindow struct {
	mu       sync.Mutex
	attempts []time.Time
}

func newSlidingWindow() *slidingWindow {
	return &slidingWindow{}
}

func (w *slidingWindow) add(now time.Time, window time.Duration) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now, window)
	w.attempts = append(w.attempts, now)
	return int64(len(w.attempts))
}

func (w *slidingWindow) count(now time.Time, window time.Duration) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now, window)
	return int64(len(w.attempts))
}

// prune drops attempts that fell out of the window. Caller holds the lock.
func (w *slidingWindow) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	kept := w.attempts[:0]
	for _, t := range w.attempts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.attempts = kept
}
