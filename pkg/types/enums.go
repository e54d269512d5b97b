package types

// ============================================================================
//                              ConnState - 连接状态
// ============================================================================

// ConnState 连接状态
type ConnState int32

const (
	// StateConnecting 已注册，尚未通知上游
	StateConnecting ConnState = iota
	// StateActive 活跃，可接收投递
	StateActive
	// StateDraining 排空中：不再接收新投递，已排队数据继续写出
	StateDraining
	// StateClosed 已关闭
	StateClosed
)

// String 返回连接状态的字符串表示
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Mode - 寻址模式
// ============================================================================

// Mode 广播命令寻址模式（封闭枚举）
type Mode uint8

const (
	// ModeUnicast 单播到指定连接
	ModeUnicast Mode = iota + 1
	// ModeChannel 频道订阅者
	ModeChannel
	// ModeGlobal 所有活跃连接
	ModeGlobal
	// ModeRegional 球形区域内的连接
	ModeRegional
)

// Valid 是否为已知模式
func (m Mode) Valid() bool {
	return m >= ModeUnicast && m <= ModeRegional
}

// String 返回寻址模式的字符串表示
func (m Mode) String() string {
	switch m {
	case ModeUnicast:
		return "unicast"
	case ModeChannel:
		return "channel"
	case ModeGlobal:
		return "global"
	case ModeRegional:
		return "regional"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              LifecycleEvent - 生命周期事件
// ============================================================================

// LifecycleEvent 连接生命周期事件
type LifecycleEvent uint8

const (
	// EventConnect 代理 → 模拟：新连接
	EventConnect LifecycleEvent = iota + 1
	// EventDisconnect 代理 → 模拟：连接断开
	EventDisconnect
	// EventShutdown 模拟 → 代理：排空后关闭连接
	EventShutdown
	// EventEnableBroadcasts 模拟 → 代理：开始接收 Global/Regional 广播
	EventEnableBroadcasts
	// EventDisableBroadcasts 模拟 → 代理：停止接收 Global/Regional 广播
	EventDisableBroadcasts
)

// Valid 是否为已知事件
func (e LifecycleEvent) Valid() bool {
	return e >= EventConnect && e <= EventDisableBroadcasts
}

// String 返回事件的字符串表示
func (e LifecycleEvent) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventShutdown:
		return "shutdown"
	case EventEnableBroadcasts:
		return "enable-broadcasts"
	case EventDisableBroadcasts:
		return "disable-broadcasts"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              ChannelOp - 频道操作
// ============================================================================

// ChannelOp 频道控制操作
type ChannelOp uint8

const (
	// ChannelSubscribe 连接订阅频道
	ChannelSubscribe ChannelOp = iota + 1
	// ChannelUnsubscribe 连接退订频道
	ChannelUnsubscribe
	// ChannelRemove 删除频道，通知全部订阅者
	ChannelRemove
	// ChannelAdd 声明频道并登记退订数据包
	ChannelAdd
)

// Valid 是否为已知操作
func (op ChannelOp) Valid() bool {
	return op >= ChannelSubscribe && op <= ChannelAdd
}

// String 返回操作的字符串表示
func (op ChannelOp) String() string {
	switch op {
	case ChannelSubscribe:
		return "subscribe"
	case ChannelUnsubscribe:
		return "unsubscribe"
	case ChannelRemove:
		return "remove"
	case ChannelAdd:
		return "add"
	default:
		return "unknown"
	}
}
