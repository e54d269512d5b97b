package outqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New(4)

	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push([]byte(s)))
	}

	got, err := q.PopBatch(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, got)

	// 环绕写入
	require.NoError(t, q.Push([]byte("d")))
	require.NoError(t, q.Push([]byte("e")))
	require.NoError(t, q.Push([]byte("f")))

	got, err = q.PopBatch(context.Background(), got[:0], 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e", "f"}, toStrings(got))
}

// TestQueue_DropNewest 测试满队列丢弃新数据包
func TestQueue_DropNewest(t *testing.T) {
	q := New(2)
	require.NoError(t, q.Push([]byte("1")))
	require.NoError(t, q.Push([]byte("2")))

	assert.ErrorIs(t, q.Push([]byte("3")), ErrFull)

	got, err := q.PopBatch(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, toStrings(got))

	stats := q.Stats()
	assert.Equal(t, int64(2), stats.TotalEnqueued)
	assert.Equal(t, int64(2), stats.TotalDequeued)
	assert.Equal(t, int64(1), stats.TotalDropped)
	assert.Equal(t, 2, stats.Capacity)
}

func TestQueue_CloseDrainsRemaining(t *testing.T) {
	q := New(8)
	require.NoError(t, q.Push([]byte("x")))
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Push([]byte("y")), ErrClosed)
	assert.True(t, q.Closed())

	got, err := q.PopBatch(context.Background(), nil, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, toStrings(got))

	_, err = q.PopBatch(context.Background(), nil, 8)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueue_PopBatchBlocksUntilPush(t *testing.T) {
	q := New(8)

	done := make(chan []byte, 1)
	go func() {
		got, err := q.PopBatch(context.Background(), nil, 1)
		if err == nil && len(got) == 1 {
			done <- got[0]
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Push([]byte("late")))

	select {
	case p := <-done:
		assert.Equal(t, "late", string(p))
	case <-time.After(time.Second):
		t.Fatal("PopBatch 未被唤醒")
	}
}

func TestQueue_PopBatchContextCancel(t *testing.T) {
	q := New(8)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.PopBatch(ctx, nil, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_Discard(t *testing.T) {
	q := New(4)
	require.NoError(t, q.Push([]byte("a")))
	require.NoError(t, q.Push([]byte("b")))

	assert.Equal(t, 2, q.Discard())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, int64(2), q.Stats().TotalDropped)
}

// TestQueue_ConcurrentProducers 并发生产者下每个生产者的顺序保持不变
func TestQueue_ConcurrentProducers(t *testing.T) {
	const producers, perProducer = 4, 200
	q := New(producers * perProducer)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Push([]byte{byte(p), byte(i)}))
			}
		}(p)
	}
	wg.Wait()
	q.Close()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	var total int
	for {
		batch, err := q.PopBatch(context.Background(), nil, 64)
		if err != nil {
			assert.ErrorIs(t, err, ErrClosed)
			break
		}
		for _, b := range batch {
			p, i := int(b[0]), int(b[1])
			assert.Greater(t, i, last[p])
			last[p] = i
			total++
		}
	}
	assert.Equal(t, producers*perProducer, total)
}

func toStrings(in [][]byte) []string {
	out := make([]string, len(in))
	for i, b := range in {
		out[i] = string(b)
	}
	return out
}
