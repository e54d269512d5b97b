package introspect

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-edgeproxy/config"
	"github.com/dep2p/go-edgeproxy/internal/core/lifecycle"
	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/internal/core/spatial"
)

// Module 返回自省服务 Fx 模块
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// Params 自省服务依赖参数
type Params struct {
	fx.In

	UnifiedCfg  *config.Config            `optional:"true"`
	Registry    *registry.Registry        `optional:"true"`
	Index       *spatial.Index            `optional:"true"`
	Counter     *metrics.BandwidthCounter `optional:"true"`
	Coordinator *lifecycle.Coordinator    `optional:"true"`
}

// ConfigFromUnified 从统一配置创建自省服务配置，禁用时返回 nil
func ConfigFromUnified(cfg *config.Config) *Config {
	if cfg == nil || !cfg.Diagnostics.EnableIntrospect {
		return nil
	}
	addr := cfg.Diagnostics.IntrospectAddr
	if addr == "" {
		addr = DefaultAddr
	}
	return &Config{Addr: addr}
}

// NewFromParams 从参数创建自省服务，禁用时返回 nil
func NewFromParams(p Params) *Server {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if cfg == nil {
		return nil
	}
	cfg.Registry = p.Registry
	cfg.Index = p.Index
	cfg.Counter = p.Counter
	cfg.Coordinator = p.Coordinator
	return New(*cfg)
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, server *Server) {
	if server == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return server.Stop()
		},
	})
}
