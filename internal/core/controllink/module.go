package controllink

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
)

// Module 返回 Fx 模块
//
// 只提供链路实例；拨号与 Run 由 gateway 在启动时完成。
func Module() fx.Option {
	return fx.Module("controllink",
		fx.Provide(
			ConfigFromUnified,
			ProvideLink,
		),
	)
}

// Params 链路依赖参数
type Params struct {
	fx.In

	Config   Config
	Reporter metrics.Reporter `optional:"true"`
}

// ProvideLink 创建链路
func ProvideLink(p Params) (*Link, error) {
	return New(p.Config, p.Reporter)
}
