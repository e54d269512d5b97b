package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-edgeproxy/config"
)

// Config 指标配置
type Config struct {
	// Enabled 是否导出 Prometheus 指标
	Enabled bool

	// ListenAddr HTTP 监听地址，为空则不启动服务
	ListenAddr string

	// Path 指标路径
	Path string

	// Namespace 指标命名空间
	Namespace string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "edgeproxy",
	}
}

// ConfigFromUnified 从统一配置创建指标配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Enabled:    cfg.Metrics.Enabled,
		ListenAddr: cfg.Metrics.ListenAddr,
		Path:       cfg.Metrics.Path,
		Namespace:  cfg.Metrics.Namespace,
	}
}

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Result Metrics 提供的组件
type Result struct {
	fx.Out

	Config   Config
	Counter  *BandwidthCounter
	Reporter Reporter
	// Registry 未启用 Prometheus 时为 nil
	Registry *prometheus.Registry
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// NewFromParams 根据配置创建计数器和 Reporter
//
// 未启用 Prometheus 时 Reporter 为 BandwidthCounter 本身。
func NewFromParams(p Params) Result {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	counter := NewBandwidthCounter()

	res := Result{Config: cfg, Counter: counter, Reporter: counter}
	if cfg.Enabled {
		reg := prometheus.NewRegistry()
		res.Reporter = NewPrometheus(cfg.Namespace, reg, counter)
		res.Registry = reg
	}
	return res
}

type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	Config   Config
	Registry *prometheus.Registry
}

// registerLifecycle 按需启动 /metrics 服务
func registerLifecycle(input lifecycleInput) {
	if input.Registry == nil || input.Config.ListenAddr == "" {
		return
	}
	srv := NewServer(input.Registry, input.Config.Path)
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return srv.Start(input.Config.ListenAddr)
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}
