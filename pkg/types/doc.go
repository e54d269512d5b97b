// Package types 定义 edgeproxy 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 edgeproxy 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go      - ConnID, ChannelID
//   - enums.go    - ConnState, Mode, LifecycleEvent, ChannelOp
//   - geometry.go - Point 及距离计算
package types
