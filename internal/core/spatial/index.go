package spatial

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
)

var logger = log.Logger("core/spatial")

// PositionSource 位置来源（通常是连接注册表）
type PositionSource interface {
	SnapshotPositions(dst []registry.PositionEntry) []registry.PositionEntry
}

// Option 索引选项
type Option func(*Index)

// WithClock 指定时间源
func WithClock(clk clock.Clock) Option {
	return func(i *Index) { i.clock = clk }
}

// WithReporter 指定指标上报
func WithReporter(r metrics.Reporter) Option {
	return func(i *Index) { i.reporter = r }
}

// Index 空间索引
//
// 持有当前快照，周期性从 PositionSource 重建。
type Index struct {
	cfg      Config
	src      PositionSource
	clock    clock.Clock
	reporter metrics.Reporter

	current atomic.Pointer[Snapshot]

	// rebuildMu 串行化重建，scratch 只在持锁时使用
	rebuildMu sync.Mutex
	scratch   []registry.PositionEntry

	rebuilds atomic.Int64
	failures atomic.Int64
}

// NewIndex 创建空间索引，初始快照为空
func NewIndex(cfg Config, src PositionSource, opts ...Option) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	idx := &Index{
		cfg:      cfg,
		src:      src,
		clock:    clock.New(),
		reporter: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.current.Store(emptySnapshot())
	return idx, nil
}

// Current 返回当前快照，永不为 nil
func (i *Index) Current() *Snapshot {
	return i.current.Load()
}

// Rebuild 执行一次重建
//
// 成功时原子替换当前快照；失败或超时时保留上一个快照并返回错误。
func (i *Index) Rebuild(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.rebuildMu.Lock()
	defer i.rebuildMu.Unlock()

	start := i.clock.Now()
	i.scratch = i.src.SnapshotPositions(i.scratch[:0])

	snap, err := Build(i.scratch, BuildOptions{
		LeafSize:  i.cfg.LeafSize,
		CacheSize: i.cfg.QueryCacheSize,
		Deadline:  start.Add(i.cfg.RebuildBudget),
		Clock:     i.clock,
	})
	elapsed := i.clock.Since(start)
	i.reporter.SpatialRebuild(elapsed, len(i.scratch), err)

	if err != nil {
		i.failures.Add(1)
		logger.Warn("空间索引重建失败，沿用上一个快照",
			"error", err,
			"points", len(i.scratch),
			"elapsed", elapsed,
			"budget", i.cfg.RebuildBudget)
		return err
	}

	i.current.Store(snap)
	i.rebuilds.Add(1)
	if logger.Enabled(log.LevelDebug) {
		logger.Debug("空间索引已重建", "points", snap.Len(), "depth", snap.Depth(), "elapsed", elapsed)
	}
	return nil
}

// Run 按 RebuildInterval 周期重建，直到 ctx 取消
func (i *Index) Run(ctx context.Context) {
	_ = i.Rebuild(ctx)

	ticker := i.clock.Ticker(i.cfg.RebuildInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = i.Rebuild(ctx)
		}
	}
}

// Stats 返回成功与失败的重建次数
func (i *Index) Stats() (rebuilds, failures int64) {
	return i.rebuilds.Load(), i.failures.Load()
}
