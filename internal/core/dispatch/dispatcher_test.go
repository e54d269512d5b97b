package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-edgeproxy/internal/core/codec"
	"github.com/dep2p/go-edgeproxy/internal/core/outqueue"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/internal/core/spatial"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

type fixture struct {
	reg   *registry.Registry
	index *spatial.Index
	disp  *Dispatcher
	conns []*registry.Conn
}

func newFixture(t *testing.T, cfg Config, regCfg registry.Config, n, queueCap int) *fixture {
	t.Helper()
	reg, err := registry.New(regCfg)
	require.NoError(t, err)
	idx, err := spatial.NewIndex(spatial.DefaultConfig(), reg)
	require.NoError(t, err)
	disp, err := New(cfg, reg, idx, nil)
	require.NoError(t, err)

	f := &fixture{reg: reg, index: idx, disp: disp}
	for i := 0; i < n; i++ {
		c, err := reg.Register("player", outqueue.New(queueCap))
		require.NoError(t, err)
		require.True(t, reg.Activate(c.ID()))
		f.conns = append(f.conns, c)
	}
	return f
}

func drain(t *testing.T, c *registry.Conn) []string {
	t.Helper()
	var out []string
	for c.Queue().Len() > 0 {
		batch, err := c.Queue().PopBatch(context.Background(), nil, 64)
		require.NoError(t, err)
		for _, p := range batch {
			out = append(out, string(p))
		}
	}
	return out
}

// TestDispatch_ConcreteScenario 三个连接的区域、全局、频道、单播分发
func TestDispatch_ConcreteScenario(t *testing.T) {
	f := newFixture(t, DefaultConfig(), registry.DefaultConfig(), 3, 16)
	c1, c2, c3 := f.conns[0], f.conns[1], f.conns[2]

	require.True(t, f.reg.UpdatePosition(c1.ID(), types.Point{0, 0, 0}))
	require.True(t, f.reg.UpdatePosition(c2.ID(), types.Point{5, 0, 0}))
	require.True(t, f.reg.UpdatePosition(c3.ID(), types.Point{100, 0, 0}))
	require.NoError(t, f.index.Rebuild(context.Background()))

	// Regional：边界上的 c2 被包含
	res := f.disp.Dispatch(&codec.BroadcastCommand{
		Mode: types.ModeRegional, Center: types.Point{0, 0, 0}, Radius: 5, Payload: []byte("R"),
	})
	assert.Equal(t, 2, res.Targets)
	assert.Equal(t, []string{"R"}, drain(t, c1))
	assert.Equal(t, []string{"R"}, drain(t, c2))
	assert.Empty(t, drain(t, c3))

	// Global
	res = f.disp.Dispatch(&codec.BroadcastCommand{Mode: types.ModeGlobal, Payload: []byte("X")})
	assert.Equal(t, Result{Mode: types.ModeGlobal, Targets: 3, Enqueued: 3}, res)
	for _, c := range f.conns {
		assert.Equal(t, []string{"X"}, drain(t, c))
	}

	// Channel：只有 c2 订阅
	require.True(t, f.reg.Subscribe(c2.ID(), "red"))
	res = f.disp.Dispatch(&codec.BroadcastCommand{Mode: types.ModeChannel, Channel: "red", Payload: []byte("C")})
	assert.Equal(t, 1, res.Enqueued)
	assert.Empty(t, drain(t, c1))
	assert.Equal(t, []string{"C"}, drain(t, c2))
	assert.Empty(t, drain(t, c3))

	// 断开 c1 后单播 c1 为空操作
	require.True(t, f.reg.Remove(c1.ID(), registry.ReasonClientClosed))
	assert.NotPanics(t, func() {
		res = f.disp.Dispatch(&codec.BroadcastCommand{Mode: types.ModeUnicast, Target: c1.ID(), Payload: []byte("U")})
	})
	assert.Equal(t, Result{Mode: types.ModeUnicast}, res)
	assert.Empty(t, drain(t, c2))
	assert.Empty(t, drain(t, c3))
}

// TestDispatch_NoCrossTalk 单播只投递给目标
func TestDispatch_NoCrossTalk(t *testing.T) {
	f := newFixture(t, DefaultConfig(), registry.DefaultConfig(), 5, 16)
	target := f.conns[2]

	res := f.disp.Dispatch(&codec.BroadcastCommand{Mode: types.ModeUnicast, Target: target.ID(), Payload: []byte("only")})
	assert.Equal(t, 1, res.Enqueued)

	for _, c := range f.conns {
		if c == target {
			assert.Equal(t, []string{"only"}, drain(t, c))
		} else {
			assert.Empty(t, drain(t, c))
		}
	}
}

func TestDispatch_Exclude(t *testing.T) {
	f := newFixture(t, DefaultConfig(), registry.DefaultConfig(), 3, 16)

	res := f.disp.Dispatch(&codec.BroadcastCommand{
		Mode: types.ModeGlobal, Exclude: f.conns[0].ID(), Payload: []byte("E"),
	})
	assert.Equal(t, 2, res.Targets)
	assert.Empty(t, drain(t, f.conns[0]))
	assert.Equal(t, []string{"E"}, drain(t, f.conns[1]))
}

func TestDispatch_BroadcastOptIn(t *testing.T) {
	f := newFixture(t, DefaultConfig(), registry.DefaultConfig().WithBroadcastOptIn(true), 2, 16)
	require.True(t, f.reg.SetBroadcasts(f.conns[1].ID(), true))

	res := f.disp.Dispatch(&codec.BroadcastCommand{Mode: types.ModeGlobal, Payload: []byte("G")})
	assert.Equal(t, 1, res.Targets)
	assert.Equal(t, []string{"G"}, drain(t, f.conns[1]))

	// 单播不受广播开关影响
	res = f.disp.Dispatch(&codec.BroadcastCommand{Mode: types.ModeUnicast, Target: f.conns[0].ID(), Payload: []byte("U")})
	assert.Equal(t, 1, res.Enqueued)
}

// TestDispatch_Backpressure 容量 K 的队列提交 K+1 个数据包，保留 K 个并报告丢弃
func TestDispatch_Backpressure(t *testing.T) {
	const k = 4
	f := newFixture(t, DefaultConfig(), registry.DefaultConfig(), 1, k)
	c := f.conns[0]

	var dropped int
	for i := 0; i < k+1; i++ {
		res := f.disp.Dispatch(&codec.BroadcastCommand{Mode: types.ModeUnicast, Target: c.ID(), Payload: []byte{byte('a' + i)}})
		dropped += res.Dropped
	}

	assert.Equal(t, 1, dropped)
	assert.True(t, c.Degraded())
	assert.Equal(t, []string{"a", "b", "c", "d"}, drain(t, c))
}

// TestDispatch_SlowConsumerEviction 连续丢弃达到阈值后驱逐
func TestDispatch_SlowConsumerEviction(t *testing.T) {
	f := newFixture(t, DefaultConfig().WithDropThreshold(3), registry.DefaultConfig(), 2, 1)
	slow, ok := f.conns[0], f.conns[1]

	var evicted int
	for i := 0; i < 5; i++ {
		res := f.disp.Dispatch(&codec.BroadcastCommand{Mode: types.ModeGlobal, Payload: []byte("x")})
		evicted += res.Evicted
		drain(t, ok)
	}

	assert.Equal(t, 1, evicted)
	assert.Equal(t, types.StateClosed, slow.State())
	assert.Equal(t, registry.ReasonSlowConsumer, slow.RemoveReason())
	assert.Equal(t, types.StateActive, ok.State())
}

func TestDispatch_RemoveChannelFarewell(t *testing.T) {
	f := newFixture(t, DefaultConfig(), registry.DefaultConfig(), 3, 16)
	require.True(t, f.reg.Subscribe(f.conns[0].ID(), "raid"))
	require.True(t, f.reg.Subscribe(f.conns[1].ID(), "raid"))

	res := f.disp.RemoveChannel("raid", []byte("bye"))
	assert.Equal(t, 2, res.Enqueued)
	assert.Equal(t, []string{"bye"}, drain(t, f.conns[0]))
	assert.Empty(t, drain(t, f.conns[2]))

	res = f.disp.Dispatch(&codec.BroadcastCommand{Mode: types.ModeChannel, Channel: "raid", Payload: []byte("late")})
	assert.Equal(t, 0, res.Targets)
}

// TestDispatch_ChannelJoinLeavePackets 订阅时数据包只发给新订阅者，退订时收到频道的退订数据包
func TestDispatch_ChannelJoinLeavePackets(t *testing.T) {
	f := newFixture(t, DefaultConfig(), registry.DefaultConfig(), 2, 16)
	a, b := f.conns[0], f.conns[1]
	f.reg.AddChannel("npc/7", []byte("despawn"))

	res, ok := f.disp.Subscribe(a.ID(), "npc/7", []byte("spawn"))
	require.True(t, ok)
	assert.Equal(t, 1, res.Enqueued)
	_, ok = f.disp.Subscribe(b.ID(), "npc/7", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"spawn"}, drain(t, a))
	assert.Empty(t, drain(t, b))

	_, ok = f.disp.Subscribe(99, "npc/7", []byte("spawn"))
	assert.False(t, ok)

	res, ok = f.disp.Unsubscribe(a.ID(), "npc/7")
	require.True(t, ok)
	assert.Equal(t, 1, res.Enqueued)
	assert.Equal(t, []string{"despawn"}, drain(t, a))

	// 不在频道中的连接不会收到退订数据包
	_, ok = f.disp.Unsubscribe(a.ID(), "npc/7")
	assert.False(t, ok)
	assert.Empty(t, drain(t, a))

	// 删除频道时没有告别数据包则使用退订数据包
	res = f.disp.RemoveChannel("npc/7", nil)
	assert.Equal(t, 1, res.Enqueued)
	assert.Equal(t, []string{"despawn"}, drain(t, b))
	assert.Nil(t, f.reg.LeavePacket("npc/7"))
}

// TestDispatch_RemovalSafety 移除之后的任何分发都不会入队
func TestDispatch_RemovalSafety(t *testing.T) {
	f := newFixture(t, DefaultConfig(), registry.DefaultConfig(), 2, 64)
	gone := f.conns[0]
	require.True(t, f.reg.Subscribe(gone.ID(), "c"))
	require.True(t, f.reg.UpdatePosition(gone.ID(), types.Point{}))
	require.NoError(t, f.index.Rebuild(context.Background()))

	require.True(t, f.reg.Remove(gone.ID(), registry.ReasonClientClosed))

	// 快照仍包含已移除连接的位置
	for _, cmd := range []*codec.BroadcastCommand{
		{Mode: types.ModeUnicast, Target: gone.ID(), Payload: []byte("u")},
		{Mode: types.ModeChannel, Channel: "c", Payload: []byte("c")},
		{Mode: types.ModeGlobal, Payload: []byte("g")},
		{Mode: types.ModeRegional, Radius: 10, Payload: []byte("r")},
	} {
		f.disp.Dispatch(cmd)
	}
	assert.Equal(t, 0, gone.Queue().Len())
	assert.Equal(t, int64(0), gone.Queue().Stats().TotalEnqueued)
}

// TestDispatch_OrderingUnderConcurrency 并发分发下每个连接的顺序与单一提交者一致
func TestDispatch_OrderingUnderConcurrency(t *testing.T) {
	const commands = 500
	f := newFixture(t, DefaultConfig(), registry.DefaultConfig(), 4, commands)

	// 其他分发者对不同连接并发单播，不影响目标连接的顺序
	var wg sync.WaitGroup
	for w := 1; w < len(f.conns); w++ {
		wg.Add(1)
		go func(c *registry.Conn) {
			defer wg.Done()
			for i := 0; i < commands/2; i++ {
				f.disp.Dispatch(&codec.BroadcastCommand{Mode: types.ModeUnicast, Target: c.ID(), Payload: []byte("noise")})
			}
		}(f.conns[w])
	}

	target := f.conns[0]
	for i := 0; i < commands; i++ {
		f.disp.Dispatch(&codec.BroadcastCommand{Mode: types.ModeUnicast, Target: target.ID(), Payload: []byte{byte(i >> 8), byte(i)}})
	}
	wg.Wait()

	got, err := target.Queue().PopBatch(context.Background(), nil, commands)
	require.NoError(t, err)
	require.Len(t, got, commands)
	for i, p := range got {
		assert.Equal(t, i, int(p[0])<<8|int(p[1]))
	}
}
