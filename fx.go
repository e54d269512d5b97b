package edgeproxy

import (
	"fmt"
	"io"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-edgeproxy/internal/core/controllink"
	"github.com/dep2p/go-edgeproxy/internal/core/dispatch"
	"github.com/dep2p/go-edgeproxy/internal/core/egress"
	"github.com/dep2p/go-edgeproxy/internal/core/gateway"
	"github.com/dep2p/go-edgeproxy/internal/core/ingress"
	"github.com/dep2p/go-edgeproxy/internal/core/lifecycle"
	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/internal/core/spatial"
	"github.com/dep2p/go-edgeproxy/internal/core/transport"
	"github.com/dep2p/go-edgeproxy/internal/debug/introspect"
	"github.com/dep2p/go-edgeproxy/pkg/interfaces"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
)

var fxLogger = log.Logger("edgeproxy/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. lifecycle → metrics → registry
//  2. spatial → dispatch
//  3. controllink → ingress / egress
//  4. transport → gateway
//  5. introspect（可选，依赖以上组件）
//
// OnStop 按相反顺序执行：gateway 先排空会话，registry 最后断开残留连接。
func buildFxApp(o *options, p *Proxy) (*fx.App, error) {
	modules := []fx.Option{
		fx.Supply(o.cfg),

		lifecycle.Module(),
		metrics.Module(),
		registry.Module(),

		spatial.Module(),
		dispatch.Module(),

		controllink.Module(),
		ingress.Module(),
		egress.Module(),

		transport.Module(),
		gateway.Module(),

		introspect.Module(),
	}

	if o.linkConn != nil {
		rw := o.linkConn
		modules = append(modules, fx.Provide(
			fx.Annotate(
				func() io.ReadWriteCloser { return rw },
				fx.ResultTags(fmt.Sprintf(`name:"%s"`, gateway.LinkStreamName)),
			),
		))
	}
	for _, l := range o.listeners {
		l := l
		modules = append(modules, fx.Provide(
			fx.Annotate(
				func() interfaces.Listener { return l },
				fx.ResultTags(`group:"listeners"`),
			),
		))
	}

	modules = append(modules, o.fxOptions...)

	modules = append(modules, fx.Populate(
		&p.coord,
		&p.registry,
		&p.counter,
		&p.index,
		&p.link,
		&p.manager,
		&p.gateway,
	))

	if o.cfg.Log.FxEvents {
		modules = append(modules, fx.WithLogger(newFxEventLogger))
	} else {
		modules = append(modules, fx.NopLogger)
	}

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// newFxEventLogger 以 zap 输出 Fx 事件
func newFxEventLogger() fxevent.Logger {
	zl, err := zap.NewDevelopment()
	if err != nil {
		fxLogger.Warn("创建 zap 日志失败，Fx 事件不再输出", "error", err)
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: zl.Named("fx")}
}
