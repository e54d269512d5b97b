package edgeproxy

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-edgeproxy/config"
	"github.com/dep2p/go-edgeproxy/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// cfg 统一配置，选项按顺序修改它
	cfg *config.Config

	// linkConn 外部提供的控制链路流，设置后不再拨号
	linkConn io.ReadWriteCloser

	// listeners 外部提供的玩家监听器
	listeners []interfaces.Listener

	// fxOptions 附加的 Fx 选项
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{cfg: config.NewConfig()}
}

// ============================================================================
//                              配置选项
// ============================================================================

// WithConfig 使用完整配置
//
// 之后的选项在该配置的副本上继续修改，因此 WithConfig 应放在最前。
//
// 示例:
//
//	cfg, _ := config.LoadFile("edgeproxy.json")
//	edgeproxy.New(edgeproxy.WithConfig(cfg), edgeproxy.WithListenAddr(":25565"))
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return ErrNilConfig
		}
		o.cfg = cfg.Clone()
		return nil
	}
}

// ============================================================================
//                              监听选项
// ============================================================================

// WithListenAddr 设置玩家 TCP 监听地址
//
// 空字符串关闭 TCP 监听。
func WithListenAddr(addr string) Option {
	return func(o *options) error {
		o.cfg.Listen.TCPAddr = addr
		return nil
	}
}

// WithWebSocket 开启 WebSocket 监听
func WithWebSocket(addr, path string) Option {
	return func(o *options) error {
		if addr == "" {
			return fmt.Errorf("edgeproxy: websocket address must not be empty")
		}
		o.cfg.Listen.WebSocketAddr = addr
		if path != "" {
			o.cfg.Listen.WebSocketPath = path
		}
		return nil
	}
}

// WithListener 追加外部监听器
//
// 与配置中的监听地址一同使用；只使用外部监听器时以 WithListenAddr("") 关闭 TCP。
func WithListener(l interfaces.Listener) Option {
	return func(o *options) error {
		if l == nil {
			return fmt.Errorf("edgeproxy: nil listener")
		}
		o.listeners = append(o.listeners, l)
		return nil
	}
}

// ============================================================================
//                              控制链路选项
// ============================================================================

// WithControlLink 设置控制链路网络（"tcp" 或 "quic"）与模拟进程地址
func WithControlLink(network, addr string) Option {
	return func(o *options) error {
		if network != config.LinkNetworkTCP && network != config.LinkNetworkQUIC {
			return fmt.Errorf("edgeproxy: unsupported control link network %q", network)
		}
		if addr == "" {
			return fmt.Errorf("edgeproxy: control link address must not be empty")
		}
		o.cfg.ControlLink.Network = network
		o.cfg.ControlLink.Addr = addr
		return nil
	}
}

// WithLinkConn 使用已建立的控制链路流
//
// 主要用于测试与嵌入：代理不再拨号，Close 时关闭该流。
func WithLinkConn(rw io.ReadWriteCloser) Option {
	return func(o *options) error {
		if rw == nil {
			return fmt.Errorf("edgeproxy: nil link conn")
		}
		o.linkConn = rw
		return nil
	}
}

// ============================================================================
//                              路由选项
// ============================================================================

// WithDropThreshold 设置慢消费者驱逐阈值（连续丢弃次数）
func WithDropThreshold(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("edgeproxy: drop threshold must be positive, got %d", n)
		}
		o.cfg.Dispatch.DropThreshold = n
		return nil
	}
}

// WithQueueCapacity 设置每连接出站队列容量
func WithQueueCapacity(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("edgeproxy: queue capacity must be positive, got %d", n)
		}
		o.cfg.Queue.Capacity = n
		return nil
	}
}

// WithRebuildInterval 设置空间索引重建周期
func WithRebuildInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("edgeproxy: rebuild interval must be positive, got %s", d)
		}
		o.cfg.Spatial.RebuildInterval = config.Duration(d)
		if o.cfg.Spatial.RebuildBudget.Duration() > d {
			o.cfg.Spatial.RebuildBudget = config.Duration(d)
		}
		return nil
	}
}

// WithMetricsAddr 设置 Prometheus 指标 HTTP 地址，空字符串不启动服务
func WithMetricsAddr(addr string) Option {
	return func(o *options) error {
		o.cfg.Metrics.ListenAddr = addr
		return nil
	}
}

// WithIntrospect 开启本地自省 HTTP 服务，addr 为空时使用默认地址
func WithIntrospect(addr string) Option {
	return func(o *options) error {
		o.cfg.Diagnostics.EnableIntrospect = true
		if addr != "" {
			o.cfg.Diagnostics.IntrospectAddr = addr
		}
		return nil
	}
}

// ============================================================================
//                              扩展选项
// ============================================================================

// WithFxOptions 附加 Fx 选项，例如 fx.Decorate 替换内部组件
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
