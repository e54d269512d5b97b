package metrics

import (
	"time"

	"github.com/dep2p/go-edgeproxy/pkg/types"
)

// Reporter 指标上报接口
//
// 所有方法必须并发安全且不阻塞，热路径上会频繁调用。
type Reporter interface {
	// ConnectionOpened 新玩家连接注册成功
	ConnectionOpened()

	// ConnectionClosed 玩家连接移除
	ConnectionClosed(reason string)

	// IngressPacket 读到一个玩家数据包
	IngressPacket(size int)

	// EgressBatch 向玩家写出一批数据包
	EgressBatch(packets, bytes int)

	// BroadcastDispatched 一条广播命令分发完成
	BroadcastDispatched(mode types.Mode, targets, enqueued, dropped, evicted int)

	// ResolutionMiss 广播目标解析为空（目标已断开等）
	ResolutionMiss(mode types.Mode)

	// SpatialRebuild 一次空间索引重建结束，err 非空表示沿用旧快照
	SpatialRebuild(d time.Duration, size int, err error)

	// UnknownEnvelope 收到未知类型的控制链路信封
	UnknownEnvelope(kind uint8)

	// LinkTraffic 控制链路流量
	LinkTraffic(sent, received int)
}

// nopReporter 空实现
type nopReporter struct{}

// Nop 返回丢弃所有指标的 Reporter
func Nop() Reporter { return nopReporter{} }

func (nopReporter) ConnectionOpened()                                  {}
func (nopReporter) ConnectionClosed(string)                            {}
func (nopReporter) IngressPacket(int)                                  {}
func (nopReporter) EgressBatch(int, int)                               {}
func (nopReporter) BroadcastDispatched(types.Mode, int, int, int, int) {}
func (nopReporter) ResolutionMiss(types.Mode)                          {}
func (nopReporter) SpatialRebuild(time.Duration, int, error)           {}
func (nopReporter) UnknownEnvelope(uint8)                              {}
func (nopReporter) LinkTraffic(int, int)                               {}

// 确保实现 Reporter 接口
var (
	_ Reporter = nopReporter{}
	_ Reporter = (*BandwidthCounter)(nil)
	_ Reporter = (*Prometheus)(nil)
)
