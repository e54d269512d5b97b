package codec

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-edgeproxy/pkg/types"
)

// Kind 信封类型
type Kind uint8

const (
	KindPlayerPacket Kind = iota + 1
	KindBroadcast
	KindPosition
	KindLifecycle
	KindChannel
)

// String 返回类型名
func (k Kind) String() string {
	switch k {
	case KindPlayerPacket:
		return "player-packet"
	case KindBroadcast:
		return "broadcast"
	case KindPosition:
		return "position"
	case KindLifecycle:
		return "lifecycle"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Envelope 控制链路信封
type Envelope interface {
	// Kind 返回信封类型
	Kind() Kind

	appendFields(b []byte) []byte
	decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error)
	validate() error
}

// PlayerPacket 玩家数据包（代理 → 模拟）
type PlayerPacket struct {
	Conn    types.ConnID
	Payload []byte
}

// BroadcastCommand 广播命令（模拟 → 代理）
//
// Target 只用于 Unicast，Channel 只用于 Channel 模式，
// Center / Radius 只用于 Regional。Exclude 非零时该连接不接收。
type BroadcastCommand struct {
	Mode    types.Mode
	Target  types.ConnID
	Channel types.ChannelID
	Center  types.Point
	Radius  float64
	Exclude types.ConnID
	Payload []byte
}

// PositionUpdate 位置更新（模拟 → 代理）
type PositionUpdate struct {
	Conn  types.ConnID
	Point types.Point
}

// ConnectionLifecycle 连接生命周期事件（双向）
type ConnectionLifecycle struct {
	Conn  types.ConnID
	Event types.LifecycleEvent
}

// ChannelControl 频道控制（模拟 → 代理）
//
// Payload 按操作解释：
//   - Add: 频道的退订数据包，之后退订或删除频道时发给离开的连接，Conn 被忽略
//   - Subscribe: 订阅时数据包，只发给新订阅者
//   - Remove: 告别数据包，为空时改用 Add 登记的退订数据包，Conn 被忽略
//   - Unsubscribe: 忽略
type ChannelControl struct {
	Op      types.ChannelOp
	Conn    types.ConnID
	Channel types.ChannelID
	Payload []byte
}

func (*PlayerPacket) Kind() Kind        { return KindPlayerPacket }
func (*BroadcastCommand) Kind() Kind    { return KindBroadcast }
func (*PositionUpdate) Kind() Kind      { return KindPosition }
func (*ConnectionLifecycle) Kind() Kind { return KindLifecycle }
func (*ChannelControl) Kind() Kind      { return KindChannel }

// ============================================================================
//                              编码
// ============================================================================

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 && !math.Signbit(v) {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func (e *PlayerPacket) appendFields(b []byte) []byte {
	b = appendVarint(b, 1, uint64(e.Conn))
	return appendBytes(b, 2, e.Payload)
}

func (e *BroadcastCommand) appendFields(b []byte) []byte {
	b = appendVarint(b, 1, uint64(e.Mode))
	b = appendVarint(b, 2, uint64(e.Target))
	b = appendString(b, 3, string(e.Channel))
	b = appendDouble(b, 4, e.Center[0])
	b = appendDouble(b, 5, e.Center[1])
	b = appendDouble(b, 6, e.Center[2])
	b = appendDouble(b, 7, e.Radius)
	b = appendVarint(b, 8, uint64(e.Exclude))
	return appendBytes(b, 9, e.Payload)
}

func (e *PositionUpdate) appendFields(b []byte) []byte {
	b = appendVarint(b, 1, uint64(e.Conn))
	b = appendDouble(b, 2, e.Point[0])
	b = appendDouble(b, 3, e.Point[1])
	return appendDouble(b, 4, e.Point[2])
}

func (e *ConnectionLifecycle) appendFields(b []byte) []byte {
	b = appendVarint(b, 1, uint64(e.Conn))
	return appendVarint(b, 2, uint64(e.Event))
}

func (e *ChannelControl) appendFields(b []byte) []byte {
	b = appendVarint(b, 1, uint64(e.Op))
	b = appendVarint(b, 2, uint64(e.Conn))
	b = appendString(b, 3, string(e.Channel))
	return appendBytes(b, 4, e.Payload)
}

// AppendBody 将信封主体（kind + 字段）追加到 dst
func AppendBody(dst []byte, env Envelope) []byte {
	dst = append(dst, byte(env.Kind()))
	return env.appendFields(dst)
}

// ============================================================================
//                              解码
// ============================================================================

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, malformed("expected varint, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, malformed("%v", protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeDouble(typ protowire.Type, b []byte) (float64, int, error) {
	if typ != protowire.Fixed64Type {
		return 0, 0, malformed("expected fixed64, got wire type %d", typ)
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, 0, malformed("%v", protowire.ParseError(n))
	}
	return math.Float64frombits(v), n, nil
}

// consumeBytes 返回的切片引用 b，不复制
func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, malformed("expected bytes, got wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, malformed("%v", protowire.ParseError(n))
	}
	return v, n, nil
}

// skipField 跳过未知字段，便于协议向前兼容
func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, malformed("%v", protowire.ParseError(n))
	}
	return n, nil
}

func (e *PlayerPacket) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		v, n, err := consumeVarint(typ, b)
		e.Conn = types.ConnID(v)
		return n, err
	case 2:
		v, n, err := consumeBytes(typ, b)
		e.Payload = v
		return n, err
	}
	return skipField(num, typ, b)
}

func (e *BroadcastCommand) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		v, n, err := consumeVarint(typ, b)
		if v > math.MaxUint8 {
			return 0, malformed("mode %d out of range", v)
		}
		e.Mode = types.Mode(v)
		return n, err
	case 2:
		v, n, err := consumeVarint(typ, b)
		e.Target = types.ConnID(v)
		return n, err
	case 3:
		v, n, err := consumeBytes(typ, b)
		e.Channel = types.ChannelID(v)
		return n, err
	case 4, 5, 6:
		v, n, err := consumeDouble(typ, b)
		e.Center[num-4] = v
		return n, err
	case 7:
		v, n, err := consumeDouble(typ, b)
		e.Radius = v
		return n, err
	case 8:
		v, n, err := consumeVarint(typ, b)
		e.Exclude = types.ConnID(v)
		return n, err
	case 9:
		v, n, err := consumeBytes(typ, b)
		e.Payload = v
		return n, err
	}
	return skipField(num, typ, b)
}

func (e *PositionUpdate) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		v, n, err := consumeVarint(typ, b)
		e.Conn = types.ConnID(v)
		return n, err
	case 2, 3, 4:
		v, n, err := consumeDouble(typ, b)
		e.Point[num-2] = v
		return n, err
	}
	return skipField(num, typ, b)
}

func (e *ConnectionLifecycle) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		v, n, err := consumeVarint(typ, b)
		e.Conn = types.ConnID(v)
		return n, err
	case 2:
		v, n, err := consumeVarint(typ, b)
		if v > math.MaxUint8 {
			return 0, malformed("event %d out of range", v)
		}
		e.Event = types.LifecycleEvent(v)
		return n, err
	}
	return skipField(num, typ, b)
}

func (e *ChannelControl) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		v, n, err := consumeVarint(typ, b)
		if v > math.MaxUint8 {
			return 0, malformed("channel op %d out of range", v)
		}
		e.Op = types.ChannelOp(v)
		return n, err
	case 2:
		v, n, err := consumeVarint(typ, b)
		e.Conn = types.ConnID(v)
		return n, err
	case 3:
		v, n, err := consumeBytes(typ, b)
		e.Channel = types.ChannelID(v)
		return n, err
	case 4:
		v, n, err := consumeBytes(typ, b)
		e.Payload = v
		return n, err
	}
	return skipField(num, typ, b)
}

// ============================================================================
//                              校验
// ============================================================================

func (e *PlayerPacket) validate() error {
	if e.Conn.IsZero() {
		return malformed("player packet without connection")
	}
	return nil
}

func (e *BroadcastCommand) validate() error {
	if !e.Mode.Valid() {
		return malformed("invalid broadcast mode %d", e.Mode)
	}
	if e.Mode == types.ModeRegional {
		if math.IsNaN(e.Radius) || math.IsInf(e.Radius, 0) {
			return malformed("invalid regional radius")
		}
		for _, v := range e.Center {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return malformed("invalid regional center")
			}
		}
	}
	return nil
}

func (e *PositionUpdate) validate() error {
	if e.Conn.IsZero() {
		return malformed("position update without connection")
	}
	return nil
}

func (e *ConnectionLifecycle) validate() error {
	if e.Conn.IsZero() {
		return malformed("lifecycle event without connection")
	}
	if !e.Event.Valid() {
		return malformed("invalid lifecycle event %d", e.Event)
	}
	return nil
}

func (e *ChannelControl) validate() error {
	if !e.Op.Valid() {
		return malformed("invalid channel op %d", e.Op)
	}
	if e.Channel == "" {
		return malformed("channel control without channel")
	}
	if (e.Op == types.ChannelSubscribe || e.Op == types.ChannelUnsubscribe) && e.Conn.IsZero() {
		return malformed("channel %s without connection", e.Op)
	}
	return nil
}

// newEnvelope 按类型创建空信封，未知类型返回 nil
func newEnvelope(k Kind) Envelope {
	switch k {
	case KindPlayerPacket:
		return &PlayerPacket{}
	case KindBroadcast:
		return &BroadcastCommand{}
	case KindPosition:
		return &PositionUpdate{}
	case KindLifecycle:
		return &ConnectionLifecycle{}
	case KindChannel:
		return &ChannelControl{}
	}
	return nil
}

// DecodeBody 解码信封主体
//
// 返回的信封中的字节字段引用 body，调用方不得再修改 body。
func DecodeBody(body []byte) (Envelope, error) {
	if len(body) == 0 {
		return nil, malformed("empty body")
	}
	kind := Kind(body[0])
	env := newEnvelope(kind)
	if env == nil {
		return nil, &UnknownKindError{Kind: kind, Size: len(body)}
	}

	b := body[1:]
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, malformed("%s: %v", kind, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := env.decodeField(num, typ, b)
		if err != nil {
			return nil, err
		}
		b = b[m:]
	}

	if err := env.validate(); err != nil {
		return nil, err
	}
	return env, nil
}
