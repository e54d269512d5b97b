// Package egress 实现每连接的出站写出任务
//
// 写出任务从出站队列批量取出数据包，用 net.Buffers 一次写出（TCP 上为 writev），
// 批内与批间都保持入队顺序。socket 写阻塞时任务暂停取队列，
// 队列随之填满，分发器开始丢弃并最终驱逐该连接。
package egress

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/dep2p/go-edgeproxy/config"
	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/outqueue"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
)

var logger = log.Logger("core/egress")

// ErrInvalidConfig 配置无效
var ErrInvalidConfig = errors.New("egress: invalid config")

// deadliner 支持写超时的连接
type deadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Config 出站配置
type Config struct {
	// WriteTimeout 单批写超时，0 表示不设置
	WriteTimeout time.Duration

	// MaxBatch 单批最大数据包数
	MaxBatch int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		MaxBatch:     64,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.WriteTimeout < 0 || c.MaxBatch <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ConfigFromUnified 从统一配置创建出站配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		WriteTimeout: cfg.Egress.WriteTimeout.Duration(),
		MaxBatch:     cfg.Queue.MaxBatch,
	}
}

// Egress 出站路径
type Egress struct {
	cfg      Config
	reporter metrics.Reporter
}

// New 创建出站路径
func New(cfg Config, reporter metrics.Reporter) (*Egress, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = metrics.Nop()
	}
	return &Egress{cfg: cfg, reporter: reporter}, nil
}

// Run 持续把连接的出站队列写入 w
//
// 队列关闭且已写空（连接排空或被移除）时返回 nil；写失败返回错误；ctx 取消返回 ctx.Err()。
func (e *Egress) Run(ctx context.Context, c *registry.Conn, w io.Writer) error {
	q := c.Queue()
	dl, _ := w.(deadliner)

	batch := make([][]byte, 0, e.cfg.MaxBatch)
	for {
		var err error
		batch, err = q.PopBatch(ctx, batch[:0], e.cfg.MaxBatch)
		if errors.Is(err, outqueue.ErrClosed) {
			logger.Debug("出站队列已关闭，写出结束", "conn", c.ID(), "state", c.State())
			return nil
		}
		if err != nil {
			return err
		}

		if dl != nil && e.cfg.WriteTimeout > 0 {
			if err := dl.SetWriteDeadline(time.Now().Add(e.cfg.WriteTimeout)); err != nil {
				logger.Debug("设置写超时失败", "conn", c.ID(), "error", err)
			}
		}

		size := 0
		for _, p := range batch {
			size += len(p)
		}

		// WriteTo 会消费 bufs，保留 batch 供下次复用
		bufs := net.Buffers(batch)
		if _, err := bufs.WriteTo(w); err != nil {
			return err
		}
		e.reporter.EgressBatch(len(batch), size)

		clear(batch)
	}
}
