package gateway

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/fx"

	"github.com/dep2p/go-edgeproxy/internal/core/controllink"
	"github.com/dep2p/go-edgeproxy/internal/core/dispatch"
	"github.com/dep2p/go-edgeproxy/internal/core/egress"
	"github.com/dep2p/go-edgeproxy/internal/core/ingress"
	"github.com/dep2p/go-edgeproxy/internal/core/lifecycle"
	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/internal/core/transport"
)

// LinkStreamName 外部注入控制链路流的 Fx 名称
//
// 提供该值时跳过拨号。
const LinkStreamName = "link_stream"

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("gateway",
		fx.Provide(
			ConfigFromUnified,
			ProvideGateway,
			provideUpstream,
		),
		fx.Invoke(registerLifecycle),
	)
}

// provideUpstream 玩家数据包经控制链路发往模拟进程
func provideUpstream(l *controllink.Link) ingress.Upstream {
	return l
}

// Params 网关依赖参数
type Params struct {
	fx.In

	Config      Config
	Registry    *registry.Registry
	Dispatcher  *dispatch.Dispatcher
	Link        *controllink.Link
	Ingress     *ingress.Ingress
	Egress      *egress.Egress
	Coordinator *lifecycle.Coordinator
	Reporter    metrics.Reporter `optional:"true"`
}

// ProvideGateway 创建网关
func ProvideGateway(p Params) (*Gateway, error) {
	return New(p.Config, Deps{
		Registry:    p.Registry,
		Dispatcher:  p.Dispatcher,
		Link:        p.Link,
		Ingress:     p.Ingress,
		Egress:      p.Egress,
		Coordinator: p.Coordinator,
		Reporter:    p.Reporter,
	})
}

type lifecycleInput struct {
	fx.In

	LC         fx.Lifecycle
	Gateway    *Gateway
	Link       *controllink.Link
	LinkConfig controllink.Config
	Manager    *transport.Manager
	Stream     io.ReadWriteCloser `name:"link_stream" optional:"true"`
}

// registerLifecycle 启动时拨号控制链路并打开监听器，停止时排空会话
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			rw := input.Stream
			if rw == nil {
				var err error
				rw, err = controllink.Dial(ctx, input.LinkConfig)
				if err != nil {
					return fmt.Errorf("gateway: dial control link: %w", err)
				}
			}

			listeners, err := input.Manager.Listen(ctx)
			if err != nil {
				_ = rw.Close()
				return err
			}
			return input.Gateway.Start(rw, listeners)
		},
		OnStop: func(ctx context.Context) error {
			closeErr := input.Manager.Close()
			if err := input.Gateway.Stop(ctx); err != nil {
				return err
			}
			input.Gateway.WaitServing()
			return closeErr
		},
	})
}
