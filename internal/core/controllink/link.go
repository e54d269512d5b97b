package controllink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-edgeproxy/internal/core/codec"
	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

var logger = log.Logger("core/controllink")

// Handler 处理模拟进程发来的信封
//
// 所有方法在链路读取任务中按接收顺序逐个调用，不得阻塞。
type Handler interface {
	HandleBroadcast(cmd *codec.BroadcastCommand)
	HandlePosition(u *codec.PositionUpdate)
	HandleLifecycle(ev *codec.ConnectionLifecycle)
	HandleChannel(cc *codec.ChannelControl)
}

// Link 控制链路
//
// 创建后即可发送（信封进入发送队列），Run 开始后才真正写出。
type Link struct {
	cfg      Config
	reporter metrics.Reporter

	sendCh chan codec.Envelope

	running   atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}

	doneOnce sync.Once
	done     chan struct{}
	errMu    sync.Mutex
	err      error
}

// New 创建链路
func New(cfg Config, reporter metrics.Reporter) (*Link, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = metrics.Nop()
	}
	return &Link{
		cfg:      cfg,
		reporter: reporter,
		sendCh:   make(chan codec.Envelope, cfg.SendQueueSize),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// SendPlayerPacket 发送玩家数据包，发送队列满时阻塞
func (l *Link) SendPlayerPacket(ctx context.Context, id types.ConnID, payload []byte) error {
	return l.send(ctx, &codec.PlayerPacket{Conn: id, Payload: payload})
}

// SendLifecycle 发送连接生命周期事件
func (l *Link) SendLifecycle(ctx context.Context, id types.ConnID, ev types.LifecycleEvent) error {
	return l.send(ctx, &codec.ConnectionLifecycle{Conn: id, Event: ev})
}

func (l *Link) send(ctx context.Context, env codec.Envelope) error {
	select {
	case <-l.closed:
		return ErrLinkClosed
	default:
	}
	select {
	case l.sendCh <- env:
		return nil
	case <-l.closed:
		return ErrLinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending 返回发送队列中的信封数
func (l *Link) Pending() int {
	return len(l.sendCh)
}

// Close 关闭链路，之后的发送返回 ErrLinkClosed
func (l *Link) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

// Done 在 Run 结束后关闭
func (l *Link) Done() <-chan struct{} { return l.done }

// Err 返回 Run 结束的原因，正常关闭为 nil
func (l *Link) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

// Run 在 rw 上运行链路，直到出错、Close 或 ctx 取消
//
// ctx 取消或 Close 时先写出发送队列中剩余的信封再返回 nil。
// rw 在返回前关闭。
func (l *Link) Run(ctx context.Context, rw io.ReadWriteCloser, h Handler) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	err := l.run(ctx, rw, h)

	l.errMu.Lock()
	l.err = err
	l.errMu.Unlock()
	_ = l.Close()
	l.doneOnce.Do(func() { close(l.done) })
	return err
}

func (l *Link) run(ctx context.Context, rw io.ReadWriteCloser, h Handler) error {
	logger.Info("控制链路已建立", "network", l.cfg.Network, "addr", l.cfg.Addr)

	g, gctx := errgroup.WithContext(ctx)
	stopping := make(chan struct{})

	g.Go(func() error { return l.readLoop(rw, h) })
	g.Go(func() error { return l.writeLoop(gctx, rw, stopping) })
	g.Go(func() error {
		// 关闭底层流以唤醒阻塞中的读取
		select {
		case <-gctx.Done():
		case <-l.closed:
			close(stopping)
			<-gctx.Done()
		}
		return rw.Close()
	})

	err := g.Wait()
	if ctx.Err() != nil || isClosed(l.closed) {
		if err != nil && !errors.Is(err, ErrLinkClosed) && !errors.Is(err, context.Canceled) {
			logger.Debug("控制链路关闭时的错误", "error", err)
		}
		logger.Info("控制链路已关闭")
		return nil
	}
	logger.Error("控制链路失败", "error", err)
	return err
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// readLoop 读取并分发信封
func (l *Link) readLoop(r io.Reader, h Handler) error {
	reader := codec.NewReader(r, l.cfg.MaxEnvelopeSize)
	var last int64

	for {
		env, err := reader.ReadEnvelope()
		if n := reader.BytesRead(); n != last {
			l.reporter.LinkTraffic(0, int(n-last))
			last = n
		}

		if err != nil {
			var uk *codec.UnknownKindError
			if errors.As(err, &uk) {
				l.reporter.UnknownEnvelope(uint8(uk.Kind))
				logger.Warn("跳过未知信封类型", "kind", uk.Kind, "size", uk.Size)
				continue
			}
			if isClosed(l.closed) {
				return ErrLinkClosed
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("controllink: stream closed by peer: %w", err)
			}
			return fmt.Errorf("controllink: read: %w", err)
		}

		switch e := env.(type) {
		case *codec.BroadcastCommand:
			h.HandleBroadcast(e)
		case *codec.PositionUpdate:
			h.HandlePosition(e)
		case *codec.ConnectionLifecycle:
			h.HandleLifecycle(e)
		case *codec.ChannelControl:
			h.HandleChannel(e)
		default:
			return fmt.Errorf("%w: %s", ErrUnexpectedEnvelope, env.Kind())
		}
	}
}

// writeLoop 从发送队列取信封写出
//
// 队列暂时为空时 Flush，高负载下多个信封合并为一次写。
func (l *Link) writeLoop(ctx context.Context, w io.Writer, stopping <-chan struct{}) error {
	writer := codec.NewWriter(w, l.cfg.MaxEnvelopeSize)
	var last int64

	write := func(env codec.Envelope) error {
		if err := writer.WriteEnvelope(env); err != nil {
			if errors.Is(err, codec.ErrFrameTooLarge) {
				// 单个超大信封只丢弃，不影响链路
				logger.Warn("丢弃超大信封", "kind", env.Kind(), "error", err)
				return nil
			}
			return fmt.Errorf("controllink: write: %w", err)
		}
		return nil
	}
	flush := func() error {
		if err := writer.Flush(); err != nil {
			return fmt.Errorf("controllink: flush: %w", err)
		}
		if n := writer.BytesWritten(); n != last {
			l.reporter.LinkTraffic(int(n-last), 0)
			last = n
		}
		return nil
	}
	// drainPending 非阻塞写出当前队列中的全部信封
	drainPending := func() error {
		for {
			select {
			case env := <-l.sendCh:
				if err := write(env); err != nil {
					return err
				}
			default:
				return flush()
			}
		}
	}

	for {
		select {
		case env := <-l.sendCh:
			if err := write(env); err != nil {
				return err
			}
			if err := drainPending(); err != nil {
				return err
			}
		case <-stopping:
			if err := drainPending(); err != nil {
				return err
			}
			return ErrLinkClosed
		case <-ctx.Done():
			_ = drainPending()
			return ctx.Err()
		}
	}
}
