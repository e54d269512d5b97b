package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-edgeproxy/internal/core/controllink"
	"github.com/dep2p/go-edgeproxy/internal/core/dispatch"
	"github.com/dep2p/go-edgeproxy/internal/core/egress"
	"github.com/dep2p/go-edgeproxy/internal/core/ingress"
	"github.com/dep2p/go-edgeproxy/internal/core/lifecycle"
	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/outqueue"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/pkg/interfaces"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

var logger = log.Logger("core/gateway")

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Gateway 玩家会话编排器
type Gateway struct {
	cfg      Config
	reg      *registry.Registry
	disp     *dispatch.Dispatcher
	link     *controllink.Link
	in       *ingress.Ingress
	out      *egress.Egress
	coord    *lifecycle.Coordinator
	reporter metrics.Reporter

	started atomic.Bool
	serveWG sync.WaitGroup
	session sync.WaitGroup
	active  atomic.Int64

	cancelMu    sync.Mutex
	cancelServe context.CancelFunc
	cancelLink  context.CancelFunc

	linkDone chan struct{}
	linkErr  error
}

// 确保实现接口
var _ controllink.Handler = (*Gateway)(nil)

// Deps 网关依赖的组件
type Deps struct {
	Registry    *registry.Registry
	Dispatcher  *dispatch.Dispatcher
	Link        *controllink.Link
	Ingress     *ingress.Ingress
	Egress      *egress.Egress
	Coordinator *lifecycle.Coordinator
	Reporter    metrics.Reporter
}

// New 创建网关
func New(cfg Config, deps Deps) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Registry == nil || deps.Dispatcher == nil || deps.Link == nil ||
		deps.Ingress == nil || deps.Egress == nil {
		return nil, ErrInvalidConfig
	}
	if deps.Coordinator == nil {
		deps.Coordinator = lifecycle.NewCoordinator()
	}
	if deps.Reporter == nil {
		deps.Reporter = metrics.Nop()
	}

	g := &Gateway{
		cfg:      cfg,
		reg:      deps.Registry,
		disp:     deps.Dispatcher,
		link:     deps.Link,
		in:       deps.Ingress,
		out:      deps.Egress,
		coord:    deps.Coordinator,
		reporter: deps.Reporter,
		linkDone: make(chan struct{}),
	}
	g.reg.OnRemove(func(_ *registry.Conn, reason string) {
		g.reporter.ConnectionClosed(reason)
	})
	return g, nil
}

// Start 在 rw 上运行控制链路并开始在 listeners 上接受玩家
//
// 返回后链路已进入运行，阶段推进到 Serving。
func (g *Gateway) Start(rw io.ReadWriteCloser, listeners []interfaces.Listener) error {
	if !g.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	linkCtx, cancelLink := context.WithCancel(context.Background())
	serveCtx, cancelServe := context.WithCancel(context.Background())
	g.cancelMu.Lock()
	g.cancelLink = cancelLink
	g.cancelServe = cancelServe
	g.cancelMu.Unlock()

	go func() {
		defer close(g.linkDone)
		if err := g.link.Run(linkCtx, rw, g); err != nil {
			g.linkErr = err
			g.onLinkFailure(err)
		}
	}()

	if err := g.coord.AdvanceTo(lifecycle.PhaseLinkReady); err != nil {
		return err
	}

	for _, l := range listeners {
		g.serveWG.Add(1)
		go func(l interfaces.Listener) {
			defer g.serveWG.Done()
			if err := g.Serve(serveCtx, l); err != nil {
				logger.Warn("监听器退出", "addr", l.Addr().String(), "error", err)
			}
		}(l)
	}
	return g.coord.AdvanceTo(lifecycle.PhaseServing)
}

// Stop 停止接受玩家，结束全部会话后关闭控制链路
//
// 调用方负责在 Stop 之前或之后关闭监听器。
func (g *Gateway) Stop(ctx context.Context) error {
	if err := g.coord.AdvanceTo(lifecycle.PhaseDraining); err != nil {
		logger.Debug("推进到 Draining 失败", "error", err)
	}

	g.cancelMu.Lock()
	cancelServe, cancelLink := g.cancelServe, g.cancelLink
	g.cancelMu.Unlock()
	if cancelServe == nil {
		return nil
	}

	cancelServe()
	if err := waitGroup(ctx, &g.session); err != nil {
		g.reg.CloseAll(registry.ReasonShutdown)
		return err
	}

	// 先写出已排队的 EventDisconnect 再关闭
	_ = g.link.Close()
	select {
	case <-g.linkDone:
	case <-ctx.Done():
		cancelLink()
		return ctx.Err()
	}
	cancelLink()
	return nil
}

// WaitServing 等待所有 Serve 循环退出
func (g *Gateway) WaitServing() {
	g.serveWG.Wait()
}

// LinkDone 在控制链路结束后关闭
func (g *Gateway) LinkDone() <-chan struct{} { return g.linkDone }

// LinkErr 返回控制链路失败原因，正常关闭为 nil
//
// 仅在 LinkDone 关闭后有意义。
func (g *Gateway) LinkErr() error {
	select {
	case <-g.linkDone:
		return g.linkErr
	default:
		return nil
	}
}

// Sessions 返回当前会话数
func (g *Gateway) Sessions() int {
	return int(g.active.Load())
}

// onLinkFailure 链路失败时断开全部玩家
func (g *Gateway) onLinkFailure(err error) {
	logger.Error("控制链路失败，断开全部玩家", "error", err)
	_ = g.coord.AdvanceTo(lifecycle.PhaseDraining)
	g.reg.CloseAll(registry.ReasonLinkFailure)

	g.cancelMu.Lock()
	cancelServe := g.cancelServe
	g.cancelMu.Unlock()
	if cancelServe != nil {
		cancelServe()
	}
}

// Serve 在 l 上接受玩家连接，直到 ctx 取消或监听器关闭
//
// 控制链路就绪之前不接受连接。
func (g *Gateway) Serve(ctx context.Context, l interfaces.Listener) error {
	if err := g.coord.Wait(ctx, lifecycle.PhaseLinkReady); err != nil {
		return nil
	}

	// 取消时关闭监听器以唤醒 Accept
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	backoff := time.Duration(0)
	for {
		sock, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			logger.Warn("接受连接失败，稍后重试", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		backoff = 0

		if g.coord.Reached(lifecycle.PhaseDraining) {
			_ = sock.Close()
			continue
		}

		g.session.Add(1)
		go func() {
			defer g.session.Done()
			g.serveConn(ctx, sock)
		}()
	}
}

// serveConn 运行单个玩家会话
func (g *Gateway) serveConn(ctx context.Context, sock interfaces.Conn) {
	remote := sock.RemoteAddr().String()

	c, err := g.reg.Register(remote, outqueue.New(g.cfg.QueueCapacity))
	if err != nil {
		logger.Warn("拒绝玩家连接", "remote", remote, "error", err)
		_ = sock.Close()
		return
	}
	g.reporter.ConnectionOpened()
	g.active.Add(1)
	defer g.active.Add(-1)

	id := c.ID()
	defer g.notifyDisconnect(id)

	if err := g.link.SendLifecycle(ctx, id, types.EventConnect); err != nil {
		g.reg.Remove(id, registry.ReasonLinkFailure)
		_ = sock.Close()
		return
	}
	if !g.activate(id) {
		_ = sock.Close()
		return
	}
	logger.Debug("玩家会话开始", "conn", id, "remote", remote)

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		err := g.in.Run(sctx, c, sock)
		if c.State() == types.StateDraining {
			// 排空中的连接由写出任务在写空队列后移除
			return err
		}
		reason := registry.ReasonClientClosed
		if err != nil {
			reason = registry.ReasonIngressError
		}
		// 移除会关闭出站队列，唤醒写出任务
		g.reg.Remove(id, reason)
		return err
	})
	eg.Go(func() error {
		err := g.out.Run(sctx, c, sock)
		reason := registry.ReasonDrained
		switch {
		case err != nil && ctx.Err() != nil:
			reason, err = registry.ReasonShutdown, nil
		case err != nil:
			reason = registry.ReasonEgressError
		}
		g.reg.Remove(id, reason)
		// 关闭套接字唤醒读取任务
		_ = sock.Close()
		cancel()
		return err
	})

	if err := eg.Wait(); err != nil {
		logger.Debug("玩家会话异常结束", "conn", id, "reason", c.RemoveReason(), "error", err)
	} else {
		logger.Debug("玩家会话结束", "conn", id, "reason", c.RemoveReason())
	}
}

// activate 将握手完成的连接切换为 Active
//
// 握手期间连接可能已被移除，或被模拟进程排空。排空的连接还没有写出任务，在此移除。
func (g *Gateway) activate(id types.ConnID) bool {
	if g.reg.Activate(id) {
		return true
	}
	g.reg.Remove(id, registry.ReasonDrained)
	return false
}

// notifyDisconnect 通知上游连接结束
//
// 在会话全部任务退出后调用，保证排在该连接的所有数据包之后。
func (g *Gateway) notifyDisconnect(id types.ConnID) {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.NotifyTimeout)
	defer cancel()
	if err := g.link.SendLifecycle(ctx, id, types.EventDisconnect); err != nil {
		logger.Debug("发送断开事件失败", "conn", id, "error", err)
	}
}

// waitGroup 等待 wg 或 ctx 结束
func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
