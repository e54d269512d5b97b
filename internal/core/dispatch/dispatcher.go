// Package dispatch 实现广播分发
//
// Dispatcher 把一条广播命令解析为目标连接集合，并把 payload 追加到每个目标的出站队列。
// 分发从不触碰 socket，只在解析目标时短暂持有注册表读锁。
//
// 命令由控制链路读取任务逐条调用，因此同一连接上的入队顺序等于命令提交顺序。
package dispatch

import (
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/dep2p/go-edgeproxy/internal/core/codec"
	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/outqueue"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/internal/core/spatial"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

var logger = log.Logger("core/dispatch")

// Locator 提供当前空间快照
type Locator interface {
	Current() *spatial.Snapshot
}

// Result 一次分发的结果
type Result struct {
	Mode     types.Mode
	Targets  int // 解析出的目标数（已排除 exclude）
	Enqueued int // 成功入队数
	Dropped  int // 队列满丢弃数
	Evicted  int // 因持续丢弃被驱逐的连接数
}

type scratch struct {
	conns []*registry.Conn
	ids   []types.ConnID
}

// Dispatcher 广播分发器
type Dispatcher struct {
	cfg      Config
	reg      *registry.Registry
	locator  Locator
	reporter metrics.Reporter

	degradedLog rate.Sometimes
	pool        sync.Pool
}

// New 创建分发器
func New(cfg Config, reg *registry.Registry, locator Locator, reporter metrics.Reporter) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = metrics.Nop()
	}
	d := &Dispatcher{
		cfg:      cfg,
		reg:      reg,
		locator:  locator,
		reporter: reporter,
	}
	d.degradedLog.Interval = cfg.DegradedLogInterval
	if cfg.DegradedLogInterval == 0 {
		d.degradedLog.Every = 1
	}
	d.pool.New = func() any { return &scratch{} }
	return d, nil
}

// Dispatch 分发一条广播命令
func (d *Dispatcher) Dispatch(cmd *codec.BroadcastCommand) Result {
	s := d.pool.Get().(*scratch)
	defer d.release(s)

	targets := d.resolve(cmd, s)
	if targets != nil {
		s.conns = targets[:0]
	}
	return d.deliver(cmd.Mode, targets, cmd.Exclude, cmd.Payload)
}

// resolve 按寻址模式解析目标集合
func (d *Dispatcher) resolve(cmd *codec.BroadcastCommand, s *scratch) []*registry.Conn {
	switch cmd.Mode {
	case types.ModeUnicast:
		s.ids = append(s.ids[:0], cmd.Target)
		return d.reg.LookupActive(s.ids, s.conns[:0])

	case types.ModeChannel:
		return d.reg.Subscribers(cmd.Channel, s.conns[:0])

	case types.ModeGlobal:
		return filterBroadcast(d.reg.Active(s.conns[:0]))

	case types.ModeRegional:
		snap := d.locator.Current()
		s.ids = snap.QueryRadius(cmd.Center, cmd.Radius, s.ids[:0])
		return filterBroadcast(d.reg.LookupActive(s.ids, s.conns[:0]))

	default:
		// 解码阶段已拒绝未知模式
		logger.Warn("忽略未知寻址模式", "mode", cmd.Mode)
		return nil
	}
}

// filterBroadcast 原地过滤掉未开启广播接收的连接
func filterBroadcast(conns []*registry.Conn) []*registry.Conn {
	out := conns[:0]
	for _, c := range conns {
		if c.ReceivesBroadcasts() {
			out = append(out, c)
		}
	}
	return out
}

// Subscribe 将连接加入频道，initial 非空时只发给这个新订阅者
//
// 连接不存在或已在排空时返回 false，不发送任何数据。
func (d *Dispatcher) Subscribe(id types.ConnID, ch types.ChannelID, initial []byte) (Result, bool) {
	if !d.reg.Subscribe(id, ch) {
		return Result{Mode: types.ModeUnicast}, false
	}
	if len(initial) == 0 {
		return Result{Mode: types.ModeUnicast}, true
	}
	return d.sendTo(id, initial), true
}

// Unsubscribe 将连接移出频道，并把频道登记的退订数据包发给它
//
// 连接原本不在频道中时不发送。
func (d *Dispatcher) Unsubscribe(id types.ConnID, ch types.ChannelID) (Result, bool) {
	if !d.reg.Unsubscribe(id, ch) {
		return Result{Mode: types.ModeUnicast}, false
	}
	leave := d.reg.LeavePacket(ch)
	if len(leave) == 0 {
		return Result{Mode: types.ModeUnicast}, true
	}
	return d.sendTo(id, leave), true
}

// RemoveChannel 删除频道，把告别数据包发给全部原订阅者
//
// farewell 为空时使用频道登记的退订数据包，两者都为空则不发送。
func (d *Dispatcher) RemoveChannel(ch types.ChannelID, farewell []byte) Result {
	former, leave := d.reg.RemoveChannel(ch)
	if len(farewell) == 0 {
		farewell = leave
	}
	if len(farewell) == 0 {
		return Result{Mode: types.ModeChannel}
	}
	return d.deliver(types.ModeChannel, former, types.NoConn, farewell)
}

// sendTo 向单个连接投递，连接可以尚未激活
func (d *Dispatcher) sendTo(id types.ConnID, payload []byte) Result {
	var targets []*registry.Conn
	if c, ok := d.reg.Lookup(id); ok {
		targets = []*registry.Conn{c}
	}
	return d.deliver(types.ModeUnicast, targets, types.NoConn, payload)
}

func (d *Dispatcher) deliver(mode types.Mode, targets []*registry.Conn, exclude types.ConnID, payload []byte) Result {
	res := Result{Mode: mode}
	for _, c := range targets {
		if !exclude.IsZero() && c.ID() == exclude {
			continue
		}
		res.Targets++

		err := c.Enqueue(payload)
		switch {
		case err == nil:
			res.Enqueued++
		case errors.Is(err, outqueue.ErrFull):
			res.Dropped++
			if d.onDrop(c) {
				res.Evicted++
			}
		case errors.Is(err, outqueue.ErrClosed):
			// 解析之后连接已被移除或进入排空，视为解析未命中
		}
	}

	if res.Targets == 0 {
		d.reporter.ResolutionMiss(mode)
	}
	d.reporter.BroadcastDispatched(mode, res.Targets, res.Enqueued, res.Dropped, res.Evicted)
	return res
}

// onDrop 处理一次丢弃，返回是否驱逐了该连接
func (d *Dispatcher) onDrop(c *registry.Conn) bool {
	drops := c.ConsecutiveDrops()
	if drops >= int64(d.cfg.DropThreshold) {
		if d.reg.Remove(c.ID(), registry.ReasonSlowConsumer) {
			logger.Warn("驱逐慢消费者", "conn", c.ID(), "remote", c.RemoteAddr(), "drops", drops)
			return true
		}
		return false
	}
	if drops == 1 {
		d.degradedLog.Do(func() {
			logger.Warn("连接出站队列已满，进入降级", "conn", c.ID(), "capacity", c.Queue().Cap())
		})
	}
	return false
}

func (d *Dispatcher) release(s *scratch) {
	// 不持有连接引用
	clear(s.conns[:cap(s.conns)])
	s.conns = s.conns[:0]
	s.ids = s.ids[:0]
	d.pool.Put(s)
}
