package dispatch

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/internal/core/spatial"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("dispatch",
		fx.Provide(
			ConfigFromUnified,
			ProvideDispatcher,
		),
	)
}

// Params 分发器依赖参数
type Params struct {
	fx.In

	Config   Config
	Registry *registry.Registry
	Index    *spatial.Index
	Reporter metrics.Reporter `optional:"true"`
}

// ProvideDispatcher 创建分发器
func ProvideDispatcher(p Params) (*Dispatcher, error) {
	return New(p.Config, p.Registry, p.Index, p.Reporter)
}
