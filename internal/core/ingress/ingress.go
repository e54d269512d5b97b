// Package ingress 实现玩家到模拟进程方向的转发路径
//
// 每个玩家连接一个读取任务：切分数据包、检查连接状态、
// 包装为 PlayerPacket 交给上游控制链路。单连接的错误只结束该连接。
package ingress

import (
	"context"
	"io"

	"golang.org/x/time/rate"

	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

var logger = log.Logger("core/ingress")

// Upstream 玩家数据包的上游（控制链路）
type Upstream interface {
	// SendPlayerPacket 按调用顺序发送，队列满时阻塞直到 ctx 取消
	SendPlayerPacket(ctx context.Context, id types.ConnID, payload []byte) error
}

// Ingress 入站路径
type Ingress struct {
	cfg      Config
	upstream Upstream
	reporter metrics.Reporter
}

// New 创建入站路径
func New(cfg Config, up Upstream, reporter metrics.Reporter) (*Ingress, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = metrics.Nop()
	}
	return &Ingress{cfg: cfg, upstream: up, reporter: reporter}, nil
}

// Run 持续读取玩家数据包并转发，直到出错、流结束或 ctx 取消
//
// 玩家正常断开（帧边界 EOF）返回 nil。连接进入 Draining 或 Closed 后停止转发并返回 nil。
func (in *Ingress) Run(ctx context.Context, c *registry.Conn, r io.Reader) error {
	fr := NewFrameReader(r, in.cfg.MaxFrameSize, in.cfg.ReadBufferSize)

	var limiter *rate.Limiter
	if in.cfg.PacketsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(in.cfg.PacketsPerSecond), in.cfg.Burst)
	}

	for {
		frame, err := fr.ReadFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		switch c.State() {
		case types.StateActive, types.StateConnecting:
		default:
			logger.Debug("连接不再活跃，停止转发", "conn", c.ID(), "state", c.State())
			return nil
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if err := in.upstream.SendPlayerPacket(ctx, c.ID(), frame); err != nil {
			return err
		}
		in.reporter.IngressPacket(len(frame))
	}
}
