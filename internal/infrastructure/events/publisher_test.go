package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/audit"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

type capturingRepo struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func (r *capturingRepo) Store(_ context.Context, entry *audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *capturingRepo) Query(context.Context, audit.Filter) ([]*audit.Entry, error) {
	return nil, nil
}

func (r *capturingRepo) StoreSecurityEvent(context.Context, *isolation.SecurityEvent) error {
	return nil
}

func (r *capturingRepo) Ping(context.Context) error { return nil }

func (r *capturingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// blockingRepo parks every Store call until released
type blockingRepo struct {
	capturingRepo
	started chan struct{}
	release chan struct{}
}

func (r *blockingRepo) Store(ctx context.Context, entry *audit.Entry) error {
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return r.capturingRepo.Store(ctx, entry)
}

func testEntry(t *testing.T) *audit.Entry {
	t.Helper()
	ic, err := isolation.NewContext("tenant-1", "org-1", "", "")
	require.NoError(t, err)
	entry, err := audit.NewAccessEntry(ic, isolation.Resource{Type: "document", ID: "doc-1"}, "read", true)
	require.NoError(t, err)
	return entry
}

func TestAuditEntryPublisher_PersistsEntries(t *testing.T) {
	repo := &capturingRepo{}
	pub, err := NewAuditEntryPublisher(context.Background(), zap.NewNop(), repo, PublisherConfig{
		QueueSize:   10,
		WorkerCount: 2,
	})
	require.NoError(t, err)
	defer pub.Close()

	for i := 0; i < 5; i++ {
		assert.True(t, pub.TryPublish(testEntry(t)))
	}

	require.Eventually(t, func() bool {
		return repo.count() == 5
	}, time.Second, 10*time.Millisecond)
}

func TestAuditEntryPublisher_DropsWhenQueueFull(t *testing.T) {
	repo := &blockingRepo{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	pub, err := NewAuditEntryPublisher(context.Background(), zap.NewNop(), repo, PublisherConfig{
		QueueSize:   1,
		WorkerCount: 1,
	})
	require.NoError(t, err)
	defer pub.Close()

	// First entry is taken by the worker, which parks in Store
	require.True(t, pub.TryPublish(testEntry(t)))
	<-repo.started

	// Second entry fills the queue, third has nowhere to go
	require.True(t, pub.TryPublish(testEntry(t)))
	assert.False(t, pub.TryPublish(testEntry(t)))

	stats := pub.Stats()
	assert.EqualValues(t, 1, stats["dropped"])

	close(repo.release)
}

func TestAuditEntryPublisher_NilEntry(t *testing.T) {
	pub, err := NewAuditEntryPublisher(context.Background(), zap.NewNop(), &capturingRepo{}, DefaultPublisherConfig())
	require.NoError(t, err)
	defer pub.Close()

	assert.False(t, pub.TryPublish(nil))
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Hour)

	assert.True(t, b.Allow())

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.False(t, b.Allow())
	assert.Equal(t, "open", b.StateName())
}

func TestCircuitBreaker_ProbesAfterReset(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond)

	b.RecordFailure()
	require.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)

	// Reset timeout elapsed, one probe goes through half-open
	assert.True(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, "closed", b.StateName())
	assert.True(t, b.Allow())
}
