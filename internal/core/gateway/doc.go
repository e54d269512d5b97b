// Package gateway 编排玩家会话与控制链路
//
// 每个玩家连接对应一个会话：
//
//	Register(Connecting) → EventConnect → Activate → ingress ‖ egress → Remove → EventDisconnect
//
// 同一连接的 EventConnect、全部 PlayerPacket 与 EventDisconnect 按此顺序发往上游。
//
// Gateway 同时实现 controllink.Handler，把模拟进程的命令交给分发器与注册表。
// 控制链路失败时断开全部玩家。
package gateway
