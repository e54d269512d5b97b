// Package outqueue 提供每连接出站数据包队列
//
// 队列是定长环形缓冲区：
//   - 满时丢弃新数据包（drop-newest），不会重排或扩容
//   - 单一消费者（egress 任务）按入队顺序批量取出
//   - 关闭后拒绝新数据包，已入队的数据包仍可取出
package outqueue

import (
	"context"
	"sync"
)

// DefaultCapacity 默认队列容量
const DefaultCapacity = 1024

// QueueStats 队列统计
type QueueStats struct {
	// Size 当前长度
	Size int

	// Capacity 容量
	Capacity int

	// TotalEnqueued 累计入队数
	TotalEnqueued int64

	// TotalDequeued 累计出队数
	TotalDequeued int64

	// TotalDropped 累计丢弃数（队列满）
	TotalDropped int64
}

// Queue 有界 FIFO 出站队列
//
// Push 可被多个分发者并发调用，PopBatch 只应有一个调用者。
type Queue struct {
	mu   sync.Mutex
	buf  [][]byte
	head int
	size int

	closed bool
	// ready 在队列从空变为非空或关闭时发出信号（容量 1，合并通知）
	ready chan struct{}

	totalEnqueued int64
	totalDequeued int64
	totalDropped  int64
}

// New 创建容量为 capacity 的队列，capacity <= 0 时使用 DefaultCapacity
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		buf:   make([][]byte, capacity),
		ready: make(chan struct{}, 1),
	}
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Push 追加一个数据包
//
// 队列满返回 ErrFull，已关闭返回 ErrClosed。调用方此后不得修改 p。
func (q *Queue) Push(p []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if q.size == len(q.buf) {
		q.totalDropped++
		q.mu.Unlock()
		return ErrFull
	}
	q.buf[(q.head+q.size)%len(q.buf)] = p
	q.size++
	q.totalEnqueued++
	wasEmpty := q.size == 1
	q.mu.Unlock()

	if wasEmpty {
		q.signal()
	}
	return nil
}

// PopBatch 取出最多 max 个数据包并追加到 dst
//
// 队列为空时阻塞直到有数据、队列关闭或 ctx 取消。
// 关闭后仍返回剩余数据包，全部取完后返回 ErrClosed。
func (q *Queue) PopBatch(ctx context.Context, dst [][]byte, max int) ([][]byte, error) {
	if max <= 0 {
		max = 1
	}
	for {
		q.mu.Lock()
		if q.size > 0 {
			n := q.size
			if n > max {
				n = max
			}
			for i := 0; i < n; i++ {
				idx := (q.head + i) % len(q.buf)
				dst = append(dst, q.buf[idx])
				q.buf[idx] = nil
			}
			q.head = (q.head + n) % len(q.buf)
			q.size -= n
			q.totalDequeued += int64(n)
			q.mu.Unlock()
			return dst, nil
		}
		if q.closed {
			q.mu.Unlock()
			return dst, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return dst, ctx.Err()
		}
	}
}

// Close 关闭队列，之后 Push 返回 ErrClosed
//
// 重复调用无副作用。
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Discard 丢弃所有已入队数据包，返回丢弃数量
func (q *Queue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.size
	for i := 0; i < n; i++ {
		q.buf[(q.head+i)%len(q.buf)] = nil
	}
	q.head, q.size = 0, 0
	q.totalDropped += int64(n)
	return n
}

// Closed 返回队列是否已关闭
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len 返回当前长度
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap 返回容量
func (q *Queue) Cap() int {
	return len(q.buf)
}

// Stats 返回队列统计
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Size:          q.size,
		Capacity:      len(q.buf),
		TotalEnqueued: q.totalEnqueued,
		TotalDequeued: q.totalDequeued,
		TotalDropped:  q.totalDropped,
	}
}
