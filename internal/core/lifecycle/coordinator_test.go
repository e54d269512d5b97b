package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestCoordinator_Advance(t *testing.T) {
	c := NewCoordinator()
	assert.Equal(t, PhaseCreated, c.Current())
	assert.True(t, c.Reached(PhaseCreated))

	require.NoError(t, c.AdvanceTo(PhaseLinkReady))
	require.NoError(t, c.AdvanceTo(PhaseLinkReady))
	assert.Equal(t, PhaseLinkReady, c.Current())

	err := c.AdvanceTo(PhaseCreated)
	assert.Error(t, err)
	assert.Equal(t, PhaseLinkReady, c.Current())

	assert.Error(t, c.AdvanceTo(Phase(99)))
}

func TestCoordinator_SkipCompletesIntermediate(t *testing.T) {
	c := NewCoordinator()
	require.NoError(t, c.AdvanceTo(PhaseDraining))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.Wait(ctx, PhaseLinkReady))
	assert.NoError(t, c.Wait(ctx, PhaseServing))
	assert.False(t, c.Reached(PhaseStopped))
}

func TestCoordinator_WaitBlocks(t *testing.T) {
	c := NewCoordinator()

	done := make(chan error, 1)
	go func() {
		done <- c.Wait(context.Background(), PhaseServing)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before phase reached")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, c.AdvanceTo(PhaseServing))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return")
	}
}

func TestCoordinator_WaitContextCancel(t *testing.T) {
	c := NewCoordinator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Wait(ctx, PhaseStopped), context.Canceled)
}

func TestCoordinator_OnPhaseChange(t *testing.T) {
	c := NewCoordinator()
	var got [][2]Phase
	c.OnPhaseChange(func(old, new Phase) {
		got = append(got, [2]Phase{old, new})
	})

	require.NoError(t, c.AdvanceTo(PhaseLinkReady))
	require.NoError(t, c.AdvanceTo(PhaseStopped))
	assert.Equal(t, [][2]Phase{
		{PhaseCreated, PhaseLinkReady},
		{PhaseLinkReady, PhaseStopped},
	}, got)
}

// TestCoordinator_OnPhaseChangeFromCallback 回调内注册新回调不死锁，且新回调从下一次推进开始生效
func TestCoordinator_OnPhaseChangeFromCallback(t *testing.T) {
	c := NewCoordinator()
	var late []Phase
	var register PhaseChangeFunc = func(_, _ Phase) {
		c.OnPhaseChange(func(_, new Phase) { late = append(late, new) })
	}
	c.OnPhaseChange(register)

	require.NoError(t, c.AdvanceTo(PhaseLinkReady))
	assert.Empty(t, late)

	require.NoError(t, c.AdvanceTo(PhaseServing))
	assert.Equal(t, []Phase{PhaseServing}, late)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "serving", PhaseServing.String())
	assert.Equal(t, "unknown(42)", Phase(42).String())
}

func TestModule_StopsCoordinator(t *testing.T) {
	var c *Coordinator
	app := fx.New(
		fx.NopLogger,
		Module(),
		fx.Populate(&c),
	)
	require.NoError(t, app.Err())

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	require.NoError(t, app.Stop(ctx))
	assert.Equal(t, PhaseStopped, c.Current())
}
