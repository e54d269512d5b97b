// Package codec 实现代理与模拟进程之间控制链路的信封编解码
//
// # 帧格式
//
//	uvarint(len(body)) || body
//	body = kind(1 byte) || protobuf wire 字段
//
// 信封类型：
//
//	1 PlayerPacket         代理 → 模拟   {conn, payload}
//	2 BroadcastCommand     模拟 → 代理   {mode, target, channel, center, radius, exclude, payload}
//	3 PositionUpdate       模拟 → 代理   {conn, point}
//	4 ConnectionLifecycle  双向          {conn, event}
//	5 ChannelControl       模拟 → 代理   {op, conn, channel, payload}
//
// # 零拷贝
//
// Reader 每帧分配一块缓冲区，解码出的 payload 和 channel 直接引用该缓冲区。
// 调用方可以把 payload 原样放入出站队列，不需要再复制。
//
// # 错误
//
// 未知 kind 返回 *UnknownKindError（errors.Is(err, ErrUnknownKind)），
// 整帧已被读取，流保持对齐，调用方可以继续读取下一帧。
// 已知 kind 的畸形内容返回 ErrMalformed，链路应视为不可用。
package codec
