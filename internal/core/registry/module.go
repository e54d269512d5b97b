package registry

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-edgeproxy/config"
)

// ConfigFromUnified 从统一配置创建注册表配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return DefaultConfig().
		WithMaxConnections(cfg.Registry.MaxConnections).
		WithBroadcastOptIn(cfg.Registry.BroadcastOptIn)
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("registry",
		fx.Provide(
			ConfigFromUnified,
			New,
		),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	Registry *Registry
}

// registerLifecycle 停止时断开所有玩家
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			input.Registry.CloseAll(ReasonShutdown)
			return nil
		},
	})
}
