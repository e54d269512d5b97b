package metrics

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-edgeproxy/pkg/types"
)

// BandwidthCounter 带宽计数器
//
// 跟踪玩家侧的入站 / 出站字节和包数，使用原子操作实现并发安全。
type BandwidthCounter struct {
	totalIn    atomic.Int64
	totalOut   atomic.Int64
	packetsIn  atomic.Int64
	packetsOut atomic.Int64

	active          atomic.Int64
	dropped         atomic.Int64
	evicted         atomic.Int64
	rebuildFailures atomic.Int64

	linkSent atomic.Int64
	linkRecv atomic.Int64

	inRate  *RateMeter
	outRate *RateMeter
}

// NewBandwidthCounter 创建新的 BandwidthCounter
func NewBandwidthCounter() *BandwidthCounter {
	return NewBandwidthCounterWithClock(nil)
}

// NewBandwidthCounterWithClock 使用指定时钟创建 BandwidthCounter
func NewBandwidthCounterWithClock(clk clock.Clock) *BandwidthCounter {
	return &BandwidthCounter{
		inRate:  NewRateMeter(clk),
		outRate: NewRateMeter(clk),
	}
}

// ConnectionOpened 实现 Reporter
func (bwc *BandwidthCounter) ConnectionOpened() {
	bwc.active.Add(1)
}

// ConnectionClosed 实现 Reporter
func (bwc *BandwidthCounter) ConnectionClosed(string) {
	bwc.active.Add(-1)
}

// IngressPacket 实现 Reporter
func (bwc *BandwidthCounter) IngressPacket(size int) {
	bwc.packetsIn.Add(1)
	bwc.totalIn.Add(int64(size))
	bwc.inRate.Add(int64(size))
}

// EgressBatch 实现 Reporter
func (bwc *BandwidthCounter) EgressBatch(packets, bytes int) {
	bwc.packetsOut.Add(int64(packets))
	bwc.totalOut.Add(int64(bytes))
	bwc.outRate.Add(int64(bytes))
}

// BroadcastDispatched 实现 Reporter
func (bwc *BandwidthCounter) BroadcastDispatched(_ types.Mode, _, _, dropped, evicted int) {
	if dropped > 0 {
		bwc.dropped.Add(int64(dropped))
	}
	if evicted > 0 {
		bwc.evicted.Add(int64(evicted))
	}
}

// ResolutionMiss 实现 Reporter
func (bwc *BandwidthCounter) ResolutionMiss(types.Mode) {}

// SpatialRebuild 实现 Reporter
func (bwc *BandwidthCounter) SpatialRebuild(_ time.Duration, _ int, err error) {
	if err != nil {
		bwc.rebuildFailures.Add(1)
	}
}

// UnknownEnvelope 实现 Reporter
func (bwc *BandwidthCounter) UnknownEnvelope(uint8) {}

// LinkTraffic 实现 Reporter
func (bwc *BandwidthCounter) LinkTraffic(sent, received int) {
	bwc.linkSent.Add(int64(sent))
	bwc.linkRecv.Add(int64(received))
}

// Totals 返回统计快照
func (bwc *BandwidthCounter) Totals() Stats {
	return Stats{
		TotalIn:           bwc.totalIn.Load(),
		TotalOut:          bwc.totalOut.Load(),
		RateIn:            bwc.inRate.Rate(),
		RateOut:           bwc.outRate.Rate(),
		PacketsIn:         bwc.packetsIn.Load(),
		PacketsOut:        bwc.packetsOut.Load(),
		ActiveConnections: bwc.active.Load(),
		Dropped:           bwc.dropped.Load(),
		Evicted:           bwc.evicted.Load(),
		RebuildFailures:   bwc.rebuildFailures.Load(),
	}
}

// LinkTotals 返回控制链路累计发送 / 接收字节数
func (bwc *BandwidthCounter) LinkTotals() (sent, received int64) {
	return bwc.linkSent.Load(), bwc.linkRecv.Load()
}

// Reset 重置所有统计（连接数除外）
func (bwc *BandwidthCounter) Reset() {
	bwc.totalIn.Store(0)
	bwc.totalOut.Store(0)
	bwc.packetsIn.Store(0)
	bwc.packetsOut.Store(0)
	bwc.dropped.Store(0)
	bwc.evicted.Store(0)
	bwc.rebuildFailures.Store(0)
	bwc.linkSent.Store(0)
	bwc.linkRecv.Store(0)
	bwc.inRate.Reset()
	bwc.outRate.Reset()
}
