package spatial

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("spatial",
		fx.Provide(
			ConfigFromUnified,
			ProvideIndex,
		),
		fx.Invoke(registerLifecycle),
	)
}

// Params 索引依赖参数
type Params struct {
	fx.In

	Config   Config
	Registry *registry.Registry
	Reporter metrics.Reporter `optional:"true"`
}

// ProvideIndex 以注册表为位置来源创建索引
func ProvideIndex(p Params) (*Index, error) {
	opts := []Option{}
	if p.Reporter != nil {
		opts = append(opts, WithReporter(p.Reporter))
	}
	return NewIndex(p.Config, p.Registry, opts...)
}

type lifecycleInput struct {
	fx.In
	LC    fx.Lifecycle
	Index *Index
}

// registerLifecycle 启动与停止周期重建任务
func registerLifecycle(input lifecycleInput) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan struct{})
			go func() {
				defer close(done)
				input.Index.Run(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
