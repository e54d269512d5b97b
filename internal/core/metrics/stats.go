package metrics

// Stats 流量统计快照
//
// TotalIn / TotalOut 为玩家侧累计入站 / 出站字节数，
// RateIn / RateOut 为最近一分钟的平均速率（字节/秒）。
type Stats struct {
	TotalIn    int64   // 总入站字节
	TotalOut   int64   // 总出站字节
	RateIn     float64 // 入站速率（字节/秒）
	RateOut    float64 // 出站速率（字节/秒）
	PacketsIn  int64   // 入站包数
	PacketsOut int64   // 出站包数

	ActiveConnections int64 // 当前连接数
	Dropped           int64 // 因队列满丢弃的包数
	Evicted           int64 // 慢消费者驱逐数
	RebuildFailures   int64 // 空间索引重建失败数
}
