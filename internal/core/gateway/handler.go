package gateway

import (
	"github.com/dep2p/go-edgeproxy/internal/core/codec"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

// HandleBroadcast 交给分发器
func (g *Gateway) HandleBroadcast(cmd *codec.BroadcastCommand) {
	res := g.disp.Dispatch(cmd)
	if logger.Enabled(log.LevelDebug) && res.Dropped > 0 {
		logger.Debug("广播存在丢弃",
			"mode", cmd.Mode.String(),
			"targets", res.Targets,
			"dropped", res.Dropped,
			"evicted", res.Evicted)
	}
}

// HandlePosition 更新连接位置，未知连接忽略
func (g *Gateway) HandlePosition(u *codec.PositionUpdate) {
	if !g.reg.UpdatePosition(u.Conn, u.Point) {
		logger.Debug("位置更新目标不存在", "conn", u.Conn)
	}
}

// HandleLifecycle 处理模拟进程发来的连接事件
func (g *Gateway) HandleLifecycle(ev *codec.ConnectionLifecycle) {
	var ok bool
	switch ev.Event {
	case types.EventShutdown:
		ok = g.reg.Drain(ev.Conn)
	case types.EventEnableBroadcasts:
		ok = g.reg.SetBroadcasts(ev.Conn, true)
	case types.EventDisableBroadcasts:
		ok = g.reg.SetBroadcasts(ev.Conn, false)
	case types.EventConnect, types.EventDisconnect:
		logger.Warn("忽略方向错误的生命周期事件", "conn", ev.Conn, "event", ev.Event.String())
		return
	default:
		logger.Warn("忽略未知生命周期事件", "conn", ev.Conn, "event", uint8(ev.Event))
		return
	}
	if !ok {
		logger.Debug("生命周期事件目标不存在", "conn", ev.Conn, "event", ev.Event.String())
	}
}

// HandleChannel 处理频道声明、订阅、退订与删除
func (g *Gateway) HandleChannel(cc *codec.ChannelControl) {
	switch cc.Op {
	case types.ChannelAdd:
		g.reg.AddChannel(cc.Channel, cc.Payload)
	case types.ChannelSubscribe:
		if _, ok := g.disp.Subscribe(cc.Conn, cc.Channel, cc.Payload); !ok {
			logger.Debug("订阅目标不存在", "conn", cc.Conn, "channel", string(cc.Channel))
		}
	case types.ChannelUnsubscribe:
		g.disp.Unsubscribe(cc.Conn, cc.Channel)
	case types.ChannelRemove:
		res := g.disp.RemoveChannel(cc.Channel, cc.Payload)
		logger.Debug("删除频道", "channel", string(cc.Channel), "notified", res.Enqueued)
	default:
		logger.Warn("忽略未知频道操作", "op", uint8(cc.Op))
	}
}
