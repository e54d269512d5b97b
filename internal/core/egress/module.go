package egress

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("egress",
		fx.Provide(
			ConfigFromUnified,
			ProvideEgress,
		),
	)
}

// Params 出站路径依赖参数
type Params struct {
	fx.In

	Config   Config
	Reporter metrics.Reporter `optional:"true"`
}

// ProvideEgress 创建出站路径
func ProvideEgress(p Params) (*Egress, error) {
	return New(p.Config, p.Reporter)
}
