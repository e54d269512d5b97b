package registry

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-edgeproxy/internal/core/outqueue"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

var logger = log.Logger("core/registry")

// PositionEntry 位置快照条目
type PositionEntry struct {
	ID    types.ConnID
	Point types.Point
}

// RemoveHook 连接移除回调
//
// 每个连接只触发一次，在释放注册表锁之后调用。
type RemoveHook func(c *Conn, reason string)

// Registry 连接注册表
type Registry struct {
	cfg Config

	nextID atomic.Uint64

	mu       sync.RWMutex
	closed   bool
	conns    map[types.ConnID]*Conn
	channels map[types.ChannelID]map[types.ConnID]*Conn
	leave    map[types.ChannelID][]byte // 频道的退订数据包，不随订阅者清空而删除

	hooksMu sync.RWMutex
	hooks   []RemoveHook
}

// New 创建注册表
func New(cfg Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		cfg:      cfg,
		conns:    make(map[types.ConnID]*Conn),
		channels: make(map[types.ChannelID]map[types.ConnID]*Conn),
		leave:    make(map[types.ChannelID][]byte),
	}, nil
}

// OnRemove 注册移除回调
func (r *Registry) OnRemove(h RemoveHook) {
	r.hooksMu.Lock()
	r.hooks = append(r.hooks, h)
	r.hooksMu.Unlock()
}

// Register 注册新连接，初始状态为 Connecting
func (r *Registry) Register(remote string, q *outqueue.Queue) (*Conn, error) {
	if q == nil {
		return nil, ErrNilQueue
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if r.cfg.MaxConnections > 0 && len(r.conns) >= r.cfg.MaxConnections {
		return nil, ErrRegistryFull
	}

	id := types.ConnID(r.nextID.Add(1))
	c := newConn(id, remote, q, !r.cfg.BroadcastOptIn)
	r.conns[id] = c

	logger.Debug("注册连接", "conn", id, "remote", remote, "total", len(r.conns))
	return c, nil
}

// Activate 将连接从 Connecting 切换为 Active
func (r *Registry) Activate(id types.ConnID) bool {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return c.state.CompareAndSwap(int32(types.StateConnecting), int32(types.StateActive))
}

// UpdatePosition 更新连接位置
//
// 只持有读锁，位置写入每连接的原子指针。
// 连接不存在或已不再 Active 时返回 false。
func (r *Registry) UpdatePosition(id types.ConnID, p types.Point) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok || c.State() != types.StateActive {
		return false
	}
	c.pos.Store(&p)
	return true
}

// SetBroadcasts 开启或关闭连接的 Global / Regional 广播接收
func (r *Registry) SetBroadcasts(id types.ConnID, enabled bool) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return false
	}
	c.broadcasts.Store(enabled)
	return true
}

// Subscribe 将连接加入频道
func (r *Registry) Subscribe(id types.ConnID, ch types.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok || c.State() == types.StateDraining || c.State() == types.StateClosed {
		return false
	}
	set := r.channels[ch]
	if set == nil {
		set = make(map[types.ConnID]*Conn)
		r.channels[ch] = set
	}
	set[id] = c
	c.channels[ch] = struct{}{}
	return true
}

// Unsubscribe 将连接移出频道
func (r *Registry) Unsubscribe(id types.ConnID, ch types.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.channels[ch]
	c, ok := set[id]
	if !ok {
		return false
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.channels, ch)
	}
	delete(c.channels, ch)
	return true
}

// AddChannel 登记频道的退订数据包，重复调用覆盖旧值，空数据包清除登记
func (r *Registry) AddChannel(ch types.ChannelID, leave []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(leave) == 0 {
		delete(r.leave, ch)
		return
	}
	r.leave[ch] = bytes.Clone(leave)
}

// LeavePacket 返回频道登记的退订数据包，调用方不得修改
func (r *Registry) LeavePacket(ch types.ChannelID) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.leave[ch]
}

// RemoveChannel 删除整个频道，返回仍处于 Active 的原订阅者和登记过的退订数据包
func (r *Registry) RemoveChannel(ch types.ChannelID) ([]*Conn, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.channels[ch]
	delete(r.channels, ch)
	leave := r.leave[ch]
	delete(r.leave, ch)

	out := make([]*Conn, 0, len(set))
	for _, c := range set {
		delete(c.channels, ch)
		if c.State() == types.StateActive {
			out = append(out, c)
		}
	}
	return out, leave
}

// detachLocked 从所有频道中移除连接，调用方需持有写锁
func (r *Registry) detachLocked(c *Conn) {
	for ch := range c.channels {
		if set := r.channels[ch]; set != nil {
			delete(set, c.id)
			if len(set) == 0 {
				delete(r.channels, ch)
			}
		}
	}
	c.channels = make(map[types.ChannelID]struct{})
}

// Remove 移除连接
//
// 在写锁内完成：从连接表和所有频道中删除、状态置为 Closed、关闭并清空出站队列。
// 重复调用返回 false，移除回调只触发一次。
func (r *Registry) Remove(id types.ConnID, reason string) bool {
	r.mu.Lock()
	c, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, id)
	r.detachLocked(c)
	c.state.Store(int32(types.StateClosed))
	c.reason.Store(&reason)
	c.queue.Close()
	c.queue.Discard()
	remaining := len(r.conns)
	r.mu.Unlock()

	close(c.done)
	logger.Debug("移除连接", "conn", id, "reason", reason, "remaining", remaining)

	r.hooksMu.RLock()
	hooks := r.hooks
	r.hooksMu.RUnlock()
	for _, h := range hooks {
		h(c, reason)
	}
	return true
}

// Drain 将连接切换为 Draining
//
// 连接退出所有分发集合，出站队列拒绝新数据包，已入队的数据包继续写出。
// 写出完成后由会话调用 Remove。
func (r *Registry) Drain(id types.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return false
	}
	st := c.State()
	if st != types.StateActive && st != types.StateConnecting {
		return false
	}
	c.state.Store(int32(types.StateDraining))
	r.detachLocked(c)
	c.queue.Close()

	logger.Debug("排空连接", "conn", id, "queued", c.queue.Len())
	return true
}

// Lookup 查找连接（任意状态）
func (r *Registry) Lookup(id types.ConnID) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// LookupActive 将 ids 中处于 Active 的连接追加到 dst
//
// 不存在或非 Active 的 id 被忽略。
func (r *Registry) LookupActive(ids []types.ConnID, dst []*Conn) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range ids {
		if c, ok := r.conns[id]; ok && c.State() == types.StateActive {
			dst = append(dst, c)
		}
	}
	return dst
}

// Subscribers 将频道中处于 Active 的订阅者追加到 dst
func (r *Registry) Subscribers(ch types.ChannelID, dst []*Conn) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.channels[ch] {
		if c.State() == types.StateActive {
			dst = append(dst, c)
		}
	}
	return dst
}

// Active 将所有处于 Active 的连接追加到 dst
func (r *Registry) Active(dst []*Conn) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.conns {
		if c.State() == types.StateActive {
			dst = append(dst, c)
		}
	}
	return dst
}

// All 将所有已注册连接（任意状态）追加到 dst
func (r *Registry) All(dst []*Conn) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.conns {
		dst = append(dst, c)
	}
	return dst
}

// SnapshotPositions 将所有已知位置的 Active 连接追加到 dst
func (r *Registry) SnapshotPositions(dst []PositionEntry) []PositionEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, c := range r.conns {
		if c.State() != types.StateActive {
			continue
		}
		if p := c.pos.Load(); p != nil {
			dst = append(dst, PositionEntry{ID: id, Point: *p})
		}
	}
	return dst
}

// Len 返回已注册连接数（含 Connecting / Draining）
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ChannelCount 返回频道数
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// CloseAll 移除所有连接并拒绝后续注册，返回移除数量
func (r *Registry) CloseAll(reason string) int {
	r.mu.Lock()
	r.closed = true
	ids := make([]types.ConnID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	n := 0
	for _, id := range ids {
		if r.Remove(id, reason) {
			n++
		}
	}
	if n > 0 {
		logger.Info("关闭所有连接", "reason", reason, "count", n)
	}
	return n
}
