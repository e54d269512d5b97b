package edgeproxy

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-edgeproxy/config"
	"github.com/dep2p/go-edgeproxy/internal/core/codec"
	"github.com/dep2p/go-edgeproxy/internal/core/lifecycle"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

const testTimeout = 3 * time.Second

// simEnd 模拟进程一侧的控制链路
type simEnd struct {
	conn net.Conn
	envs chan codec.Envelope
	w    *codec.Writer
}

func newSimEnd(conn net.Conn) *simEnd {
	s := &simEnd{
		conn: conn,
		envs: make(chan codec.Envelope, 64),
		w:    codec.NewWriter(conn, codec.DefaultMaxFrameSize),
	}
	go func() {
		defer close(s.envs)
		r := codec.NewReader(conn, codec.DefaultMaxFrameSize)
		for {
			env, err := r.ReadEnvelope()
			if err != nil {
				return
			}
			s.envs <- env
		}
	}()
	return s
}

func (s *simEnd) next(t *testing.T) codec.Envelope {
	t.Helper()
	select {
	case env, ok := <-s.envs:
		require.True(t, ok, "link closed")
		return env
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for envelope")
		return nil
	}
}

func (s *simEnd) send(t *testing.T, env codec.Envelope) {
	t.Helper()
	require.NoError(t, s.w.WriteEnvelope(env))
	require.NoError(t, s.w.Flush())
}

func startProxy(t *testing.T, opts ...Option) (*Proxy, *simEnd) {
	t.Helper()
	proxySide, simSide := net.Pipe()
	t.Cleanup(func() { _ = simSide.Close() })

	base := []Option{
		WithListenAddr("127.0.0.1:0"),
		WithLinkConn(proxySide),
		WithMetricsAddr(""),
	}
	p, err := New(append(base, opts...)...)
	require.NoError(t, err)

	sim := newSimEnd(simSide)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() { _ = p.Close() })
	return p, sim
}

func TestProxy_EndToEnd(t *testing.T) {
	p, sim := startProxy(t)
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, lifecycle.PhaseServing, p.Phase())

	addrs := p.ListenAddrs()
	require.Len(t, addrs, 1)

	player, err := net.Dial("tcp", addrs[0])
	require.NoError(t, err)
	defer player.Close()

	env := sim.next(t)
	lc, ok := env.(*codec.ConnectionLifecycle)
	require.True(t, ok)
	assert.Equal(t, types.EventConnect, lc.Event)
	id := lc.Conn

	// 玩家 → 模拟
	_, err = player.Write(append(varint.ToUvarint(4), "ping"...))
	require.NoError(t, err)
	pp, ok := sim.next(t).(*codec.PlayerPacket)
	require.True(t, ok)
	assert.Equal(t, id, pp.Conn)
	assert.Equal(t, "ping", string(pp.Payload))

	// 模拟 → 玩家（Global）
	sim.send(t, &codec.BroadcastCommand{Mode: types.ModeGlobal, Payload: []byte("pong")})
	require.NoError(t, player.SetReadDeadline(time.Now().Add(testTimeout)))
	buf := make([]byte, 4)
	_, err = io.ReadFull(player, buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf))

	require.Eventually(t, func() bool {
		s := p.Stats()
		return s.Sessions == 1 && s.PacketsIn == 1 && s.TotalOut == 4
	}, testTimeout, 10*time.Millisecond)

	// 关闭代理：玩家被断开，模拟进程收到断开事件
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	lc, ok = sim.next(t).(*codec.ConnectionLifecycle)
	require.True(t, ok)
	assert.Equal(t, types.EventDisconnect, lc.Event)
	assert.Equal(t, id, lc.Conn)

	select {
	case <-p.Done():
	case <-time.After(testTimeout):
		t.Fatal("Done not closed")
	}
	assert.NoError(t, p.Err())
	assert.Equal(t, lifecycle.PhaseStopped, p.Phase())
	assert.ErrorIs(t, p.Start(context.Background()), ErrClosed)
}

func TestProxy_LinkFailure(t *testing.T) {
	p, sim := startProxy(t)

	player, err := net.Dial("tcp", p.ListenAddrs()[0])
	require.NoError(t, err)
	defer player.Close()
	_ = sim.next(t)

	require.NoError(t, sim.conn.Close())

	select {
	case <-p.Done():
	case <-time.After(testTimeout):
		t.Fatal("Done not closed after link failure")
	}
	assert.Error(t, p.Err())

	// 玩家被断开
	require.NoError(t, player.SetReadDeadline(time.Now().Add(testTimeout)))
	_, err = player.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestProxy_StartTwice(t *testing.T) {
	p, _ := startProxy(t)
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyStarted)
}

func TestNew_OptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"nil config", WithConfig(nil)},
		{"bad network", WithControlLink("udp", "127.0.0.1:1")},
		{"empty link addr", WithControlLink(config.LinkNetworkTCP, "")},
		{"zero threshold", WithDropThreshold(0)},
		{"zero capacity", WithQueueCapacity(0)},
		{"zero interval", WithRebuildInterval(0)},
		{"nil listener", WithListener(nil)},
		{"nil link conn", WithLinkConn(nil)},
		{"empty websocket", WithWebSocket("", "/play")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestNew_ConfigValidation(t *testing.T) {
	_, err := New(WithListenAddr(""))
	assert.ErrorIs(t, err, config.ErrNoListenAddr)
}

func TestNew_AppliesOptionsToConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Registry.MaxConnections = 5

	o := newOptions()
	for _, opt := range []Option{
		WithConfig(cfg),
		WithDropThreshold(8),
		WithQueueCapacity(16),
		WithRebuildInterval(10 * time.Millisecond),
		WithControlLink(config.LinkNetworkQUIC, "sim:1"),
		WithWebSocket("127.0.0.1:0", "/ws"),
		WithIntrospect("127.0.0.1:7070"),
	} {
		require.NoError(t, opt(o))
	}

	assert.Equal(t, 5, o.cfg.Registry.MaxConnections)
	assert.Equal(t, 8, o.cfg.Dispatch.DropThreshold)
	assert.Equal(t, 16, o.cfg.Queue.Capacity)
	assert.Equal(t, 10*time.Millisecond, o.cfg.Spatial.RebuildInterval.Duration())
	assert.LessOrEqual(t, o.cfg.Spatial.RebuildBudget.Duration(), 10*time.Millisecond)
	assert.Equal(t, config.LinkNetworkQUIC, o.cfg.ControlLink.Network)
	assert.Equal(t, "/ws", o.cfg.Listen.WebSocketPath)
	assert.True(t, o.cfg.Diagnostics.EnableIntrospect)
	assert.Equal(t, "127.0.0.1:7070", o.cfg.Diagnostics.IntrospectAddr)

	// WithConfig 复制配置，不修改调用方的实例
	assert.Equal(t, config.DefaultDispatchConfig().DropThreshold, cfg.Dispatch.DropThreshold)
}

func TestClose_NotStartedReleasesInjected(t *testing.T) {
	proxySide, simSide := net.Pipe()
	defer simSide.Close()

	p, err := New(WithLinkConn(proxySide), WithListenAddr("127.0.0.1:0"))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = proxySide.Write([]byte{0})
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
