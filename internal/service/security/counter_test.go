package security

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounter_IncrementAndCount(t *testing.T) {
	c, err := NewMemoryCounter(16)
	require.NoError(t, err)

	ctx := context.Background()
	key := AttemptKey{TenantID: "t1", UserID: "u1", ResourceType: "document", Action: "read"}
	window := time.Minute

	for i := int64(1); i <= 5; i++ {
		count, err := c.Increment(ctx, key, window)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	count, err := c.Count(ctx, key, window)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestMemoryCounter_KeysAreIndependent(t *testing.T) {
	c, err := NewMemoryCounter(16)
	require.NoError(t, err)

	ctx := context.Background()
	a := AttemptKey{TenantID: "t1", Action: "read"}
	b := AttemptKey{TenantID: "t1", Action: "write"}

	_, err = c.Increment(ctx, a, time.Minute)
	require.NoError(t, err)

	count, err := c.Count(ctx, b, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMemoryCounter_WindowExpiry(t *testing.T) {
	c, err := NewMemoryCounter(16)
	require.NoError(t, err)

	ctx := context.Background()
	key := AttemptKey{TenantID: "t1", Action: "read"}

	_, err = c.Increment(ctx, key, 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	count, err := c.Count(ctx, key, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMemoryCounter_Reset(t *testing.T) {
	c, err := NewMemoryCounter(16)
	require.NoError(t, err)

	ctx := context.Background()
	key := AttemptKey{TenantID: "t1", Action: "read"}

	_, err = c.Increment(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Reset(ctx, key))

	count, err := c.Count(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMemoryCounter_LRUBound(t *testing.T) {
	c, err := NewMemoryCounter(2)
	require.NoError(t, err)

	ctx := context.Background()
	first := AttemptKey{TenantID: "t1"}
	second := AttemptKey{TenantID: "t2"}
	third := AttemptKey{TenantID: "t3"}

	_, err = c.Increment(ctx, first, time.Minute)
	require.NoError(t, err)
	_, err = c.Increment(ctx, second, time.Minute)
	require.NoError(t, err)
	_, err = c.Increment(ctx, third, time.Minute)
	require.NoError(t, err)

	// Oldest key was evicted and restarts from zero
	count, err := c.Count(ctx, first, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMemoryCounter_ConcurrentChurn(t *testing.T) {
	// Capacity 1 forces an eviction on nearly every insert
	c, err := NewMemoryCounter(1)
	require.NoError(t, err)

	ctx := context.Background()
	keys := []AttemptKey{{TenantID: "t1"}, {TenantID: "t2"}, {TenantID: "t3"}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 2000; j++ {
				count, err := c.Increment(ctx, keys[(n+j)%len(keys)], time.Minute)
				assert.NoError(t, err)
				assert.GreaterOrEqual(t, count, int64(1))
			}
		}(i)
	}
	wg.Wait()
}

func TestAttemptKey_String(t *testing.T) {
	key := AttemptKey{TenantID: "t1", UserID: "u1", ResourceType: "document", Action: "read"}
	assert.Equal(t, "t1|u1|document|read", key.String())
}
