package outqueue

import "errors"

var (
	// ErrFull 队列已满，新数据包被丢弃
	ErrFull = errors.New("outqueue: queue full")

	// ErrClosed 队列已关闭
	ErrClosed = errors.New("outqueue: queue closed")
)
