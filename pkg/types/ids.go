package types

import "strconv"

// ============================================================================
//                              ConnID - 连接标识
// ============================================================================

// ConnID 玩家连接标识
//
// 在代理进程生命周期内唯一，从 1 开始分配。
// 0 表示"无连接"，用于广播命令中的 exclude 字段。
type ConnID uint64

// NoConn 表示无连接
const NoConn ConnID = 0

// IsZero 是否为空 ID
func (id ConnID) IsZero() bool {
	return id == NoConn
}

// String 返回十进制字符串表示
func (id ConnID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ============================================================================
//                              ChannelID - 频道标识
// ============================================================================

// ChannelID 频道标识（按主题订阅的广播组）
type ChannelID string

// String 返回频道名
func (c ChannelID) String() string {
	return string(c)
}
