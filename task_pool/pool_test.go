package task_pool

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pickme-go/log/v2"
	"github.com/pickme-go/metrics/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(workers int, order ExecutionOrder) *Pool {
	return NewPool(`test`, log.NewNoopLogger(), metrics.NoopReporter(), &PoolConfig{
		NumOfWorkers:     workers,
		WorkerBufferSize: 10,
		Order:            order,
	})
}

func TestPool_KeyAffinity(t *testing.T) {
	p := newTestPool(8, OrderByKey)
	defer p.Stop()

	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprint(i))
		assert.Equal(t, p.WorkerOf(key), p.WorkerOf(key))
	}
}

func TestPool_PreservesOrderPerKey(t *testing.T) {
	p := newTestPool(4, OrderByKey)

	mu := new(sync.Mutex)
	seen := make(map[string][]int)

	for i := 0; i < 1000; i++ {
		key := fmt.Sprint(i % 10)
		seq := i
		ok := p.Run(context.Background(), []byte(key), func(ctx context.Context) {
			mu.Lock()
			seen[key] = append(seen[key], seq)
			mu.Unlock()
		})
		require.True(t, ok)
	}
	p.Stop()

	require.Len(t, seen, 10)
	for key, seqs := range seen {
		assert.Len(t, seqs, 100, key)
		for i := 1; i < len(seqs); i++ {
			assert.Less(t, seqs[i-1], seqs[i], key)
		}
	}
}

func TestPool_OrderPreservedUsesOneWorker(t *testing.T) {
	p := newTestPool(4, OrderPreserved)
	defer p.Stop()

	assert.Equal(t, 0, p.WorkerOf([]byte(`a`)))
	assert.Equal(t, 0, p.WorkerOf([]byte(`b`)))
}

func TestPool_RunAfterStop(t *testing.T) {
	p := newTestPool(2, OrderByKey)
	p.Stop()
	p.Stop()

	assert.False(t, p.Run(context.Background(), []byte(`k`), func(ctx context.Context) {}))
}

func TestPool_RunCancelledWhileBlocked(t *testing.T) {
	p := NewPool(`blocked`, log.NewNoopLogger(), metrics.NoopReporter(), &PoolConfig{
		NumOfWorkers:     1,
		WorkerBufferSize: 1,
	})

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.Run(context.Background(), []byte(`k`), func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started
	require.True(t, p.Run(context.Background(), []byte(`k`), func(ctx context.Context) {}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, p.Run(ctx, []byte(`k`), func(ctx context.Context) {}))

	close(release)
	p.Stop()
}
