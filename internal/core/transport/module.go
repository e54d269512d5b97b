package transport

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-edgeproxy/config"
	"github.com/dep2p/go-edgeproxy/pkg/interfaces"
)

// ConfigFromUnified 从统一配置创建传输层配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		def := config.DefaultListenConfig()
		return Config{TCPAddr: def.TCPAddr, WebSocketPath: def.WebSocketPath}
	}
	return Config{
		TCPAddr:       cfg.Listen.TCPAddr,
		WebSocketAddr: cfg.Listen.WebSocketAddr,
		WebSocketPath: cfg.Listen.WebSocketPath,
	}
}

// Params 管理器依赖参数
type Params struct {
	fx.In

	Config Config
	Extra  []interfaces.Listener `group:"listeners"`
}

// ProvideManager 创建监听器管理器
func ProvideManager(p Params) *Manager {
	return NewManager(p.Config, p.Extra...)
}

// Module 返回 Fx 模块
//
// 监听器由 gateway 在启动时打开，本模块负责停止时关闭。
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(
			ConfigFromUnified,
			ProvideManager,
		),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Manager *Manager
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Manager.Close()
		},
	})
}
