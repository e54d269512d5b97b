package edgeproxy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-edgeproxy/config"
	"github.com/dep2p/go-edgeproxy/internal/core/controllink"
	"github.com/dep2p/go-edgeproxy/internal/core/gateway"
	"github.com/dep2p/go-edgeproxy/internal/core/lifecycle"
	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/internal/core/spatial"
	"github.com/dep2p/go-edgeproxy/internal/core/transport"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
)

var logger = log.Logger("edgeproxy")

const (
	// startTimeout 启动超时（拨号控制链路与打开监听器）
	startTimeout = 30 * time.Second

	// closeTimeout 关闭超时（排空会话与控制链路）
	closeTimeout = 30 * time.Second
)

// Proxy 代理实例
//
// 生命周期：New → Start → Close。Close 之后不可重新启动。
type Proxy struct {
	id   string
	opts *options
	app  *fx.App

	// 由 Fx 注入
	coord    *lifecycle.Coordinator
	registry *registry.Registry
	counter  *metrics.BandwidthCounter
	index    *spatial.Index
	link     *controllink.Link
	manager  *transport.Manager
	gateway  *gateway.Gateway

	mu      sync.Mutex
	started bool
	closed  bool

	doneOnce sync.Once
	done     chan struct{}
	errMu    sync.Mutex
	err      error
}

// New 创建代理但不启动
//
// 示例：
//
//	p, err := edgeproxy.New(
//	    edgeproxy.WithListenAddr(":25565"),
//	    edgeproxy.WithDropThreshold(32),
//	)
func New(opts ...Option) (*Proxy, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if err := o.cfg.Validate(); err != nil {
		// 只有注入的监听器时允许不配置监听地址
		if !(len(o.listeners) > 0 && errors.Is(err, config.ErrNoListenAddr)) {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	applyLogConfig(o.cfg.Log)

	p := &Proxy{
		id:   uuid.NewString(),
		opts: o,
		done: make(chan struct{}),
	}

	app, err := buildFxApp(o, p)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	p.app = app
	return p, nil
}

// Start 快捷启动函数，等价于 New + Start
func Start(ctx context.Context, opts ...Option) (*Proxy, error) {
	p, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := p.Start(ctx); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("start proxy: %w", err)
	}
	return p, nil
}

// applyLogConfig 应用日志配置；为空的字段保留环境变量设置
func applyLogConfig(c config.LogConfig) {
	if c.Level != "" {
		log.Configure(c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "json":
		log.SetOutput(os.Stderr, log.FormatJSON)
	case "text":
		log.SetOutput(os.Stderr, log.FormatText)
	}
}

// ID 返回实例 ID
func (p *Proxy) ID() string { return p.id }

// Start 拨号控制链路、打开监听器并开始接受玩家
func (p *Proxy) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	logger.Info("正在启动代理", "id", log.TruncateID(p.id, 8))
	if err := p.app.Start(startCtx); err != nil {
		logger.Error("代理启动失败", "error", err)
		return fmt.Errorf("start fx app: %w", err)
	}
	p.started = true

	go p.watchLink()

	logger.Info("代理已启动", "listen", p.ListenAddrs(), "phase", p.coord.Current().String())
	return nil
}

// watchLink 控制链路失败时记录错误并通知 Done
func (p *Proxy) watchLink() {
	select {
	case <-p.gateway.LinkDone():
		if err := p.gateway.LinkErr(); err != nil {
			p.fail(err)
		}
	case <-p.done:
	}
}

func (p *Proxy) fail(err error) {
	p.errMu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.errMu.Unlock()
	p.doneOnce.Do(func() { close(p.done) })
}

// Close 停止接受玩家，断开全部连接并关闭控制链路
//
// 重复调用返回 nil。
func (p *Proxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	logger.Info("正在关闭代理")

	var err error
	if p.started {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		err = multierr.Append(err, p.app.Stop(ctx))
	} else {
		// 未启动时注入的资源由这里释放
		if p.opts.linkConn != nil {
			err = multierr.Append(err, p.opts.linkConn.Close())
		}
		for _, l := range p.opts.listeners {
			err = multierr.Append(err, l.Close())
		}
	}

	p.doneOnce.Do(func() { close(p.done) })
	if err != nil {
		logger.Warn("关闭代理时出错", "error", err)
	} else {
		logger.Info("代理已关闭")
	}
	return err
}

// Done 在代理关闭或控制链路失败后关闭
func (p *Proxy) Done() <-chan struct{} { return p.done }

// Err 返回导致代理停止的错误；正常关闭为 nil
func (p *Proxy) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Phase 返回当前生命周期阶段
func (p *Proxy) Phase() lifecycle.Phase {
	return p.coord.Current()
}

// ListenAddrs 返回实际监听地址
func (p *Proxy) ListenAddrs() []string {
	ls := p.manager.Listeners()
	addrs := make([]string, 0, len(ls))
	for _, l := range ls {
		addrs = append(addrs, l.Addr().String())
	}
	return addrs
}

// Stats 代理运行统计
type Stats struct {
	metrics.Stats

	// Sessions 正在运行的玩家会话数
	Sessions int
	// Connections 注册表中的连接数
	Connections int
	// Channels 当前存在的频道数
	Channels int

	// SnapshotSize 当前空间快照中的连接数
	SnapshotSize int
	// Rebuilds 空间索引成功重建次数
	Rebuilds int64

	// LinkSent / LinkReceived 控制链路累计字节
	LinkSent     int64
	LinkReceived int64
	// LinkPending 控制链路发送队列中的信封数
	LinkPending int

	// Phase 生命周期阶段
	Phase string
}

// Stats 返回统计快照
func (p *Proxy) Stats() Stats {
	s := Stats{
		Stats:       p.counter.Totals(),
		Sessions:    p.gateway.Sessions(),
		Connections: p.registry.Len(),
		Channels:    p.registry.ChannelCount(),
		LinkPending: p.link.Pending(),
		Phase:       p.coord.Current().String(),
	}
	if snap := p.index.Current(); snap != nil {
		s.SnapshotSize = snap.Len()
	}
	s.Rebuilds, s.RebuildFailures = p.index.Stats()
	s.LinkSent, s.LinkReceived = p.counter.LinkTotals()
	return s
}
