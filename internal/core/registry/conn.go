package registry

import (
	"sync/atomic"
	"time"

	"github.com/dep2p/go-edgeproxy/internal/core/outqueue"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

// Conn 注册表中的一个玩家连接
//
// 状态、位置、广播开关和丢弃计数都是原子字段，可在不持锁的情况下读取。
// 订阅集合只在注册表写锁内修改。
type Conn struct {
	id        types.ConnID
	remote    string
	createdAt time.Time
	queue     *outqueue.Queue

	state      atomic.Int32
	pos        atomic.Pointer[types.Point]
	broadcasts atomic.Bool
	drops      atomic.Int64
	reason     atomic.Pointer[string]

	// channels 受 Registry.mu 保护
	channels map[types.ChannelID]struct{}

	done chan struct{}
}

func newConn(id types.ConnID, remote string, q *outqueue.Queue, broadcasts bool) *Conn {
	c := &Conn{
		id:        id,
		remote:    remote,
		createdAt: time.Now(),
		queue:     q,
		channels:  make(map[types.ChannelID]struct{}),
		done:      make(chan struct{}),
	}
	c.state.Store(int32(types.StateConnecting))
	c.broadcasts.Store(broadcasts)
	return c
}

// ID 返回连接标识
func (c *Conn) ID() types.ConnID { return c.id }

// RemoteAddr 返回玩家地址
func (c *Conn) RemoteAddr() string { return c.remote }

// CreatedAt 返回注册时间
func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// State 返回当前状态
func (c *Conn) State() types.ConnState {
	return types.ConnState(c.state.Load())
}

// Position 返回最近一次位置，尚未收到位置时 ok 为 false
func (c *Conn) Position() (types.Point, bool) {
	p := c.pos.Load()
	if p == nil {
		return types.Point{}, false
	}
	return *p, true
}

// ReceivesBroadcasts 返回连接是否接收 Global / Regional 广播
func (c *Conn) ReceivesBroadcasts() bool {
	return c.broadcasts.Load()
}

// Queue 返回出站队列
func (c *Conn) Queue() *outqueue.Queue { return c.queue }

// Enqueue 将数据包追加到出站队列
//
// 成功时清零连续丢弃计数；队列满时计数加一并返回 outqueue.ErrFull；
// 连接已移除或正在排空时返回 outqueue.ErrClosed。
func (c *Conn) Enqueue(payload []byte) error {
	err := c.queue.Push(payload)
	switch err {
	case nil:
		if c.drops.Load() != 0 {
			c.drops.Store(0)
		}
	case outqueue.ErrFull:
		c.drops.Add(1)
	}
	return err
}

// ConsecutiveDrops 返回连续丢弃次数
func (c *Conn) ConsecutiveDrops() int64 {
	return c.drops.Load()
}

// Degraded 返回连接是否处于降级状态（最近一次入队被丢弃）
func (c *Conn) Degraded() bool {
	return c.drops.Load() > 0
}

// Done 在连接被移除后关闭
func (c *Conn) Done() <-chan struct{} { return c.done }

// RemoveReason 返回移除原因，未移除时为空
func (c *Conn) RemoveReason() string {
	if r := c.reason.Load(); r != nil {
		return *r
	}
	return ""
}
