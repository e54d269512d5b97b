package ingress

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
)

// Module 返回 Fx 模块
//
// 依赖外部提供的 Upstream。
func Module() fx.Option {
	return fx.Module("ingress",
		fx.Provide(
			ConfigFromUnified,
			ProvideIngress,
		),
	)
}

// Params 入站路径依赖参数
type Params struct {
	fx.In

	Config   Config
	Upstream Upstream
	Reporter metrics.Reporter `optional:"true"`
}

// ProvideIngress 创建入站路径
func ProvideIngress(p Params) (*Ingress, error) {
	return New(p.Config, p.Upstream, p.Reporter)
}
