// Package lifecycle 提供代理生命周期协调器
//
// 阶段按序推进：
//
//	Created → LinkReady → Serving → Draining → Stopped
//
// 等待某一阶段的调用者在该阶段或任何更晚阶段到达时返回。
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
)

var logger = log.Logger("core/lifecycle")

// Phase 生命周期阶段
type Phase int

const (
	// PhaseCreated 已创建，未启动
	PhaseCreated Phase = iota

	// PhaseLinkReady 控制链路已建立
	PhaseLinkReady

	// PhaseServing 玩家监听器已打开
	PhaseServing

	// PhaseDraining 停止接受新玩家，断开现有玩家
	PhaseDraining

	// PhaseStopped 已停止
	PhaseStopped
)

// String 返回阶段字符串表示
func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseLinkReady:
		return "link_ready"
	case PhaseServing:
		return "serving"
	case PhaseDraining:
		return "draining"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// PhaseChangeFunc 阶段变更回调
type PhaseChangeFunc func(old, new Phase)

// Coordinator 生命周期协调器
type Coordinator struct {
	mu      sync.RWMutex
	phase   Phase
	signals [PhaseStopped + 1]chan struct{}

	onPhaseChange []PhaseChangeFunc
}

// NewCoordinator 创建生命周期协调器
func NewCoordinator() *Coordinator {
	c := &Coordinator{phase: PhaseCreated}
	for i := range c.signals {
		c.signals[i] = make(chan struct{})
	}
	close(c.signals[PhaseCreated])
	return c
}

// Current 返回当前阶段
func (c *Coordinator) Current() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// AdvanceTo 推进到指定阶段
//
// 只能向前推进；跳过的中间阶段一并视为完成。
func (c *Coordinator) AdvanceTo(target Phase) error {
	if target < PhaseCreated || target > PhaseStopped {
		return fmt.Errorf("lifecycle: invalid phase %d", int(target))
	}

	c.mu.Lock()
	if target < c.phase {
		cur := c.phase
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: cannot advance backwards: current=%s target=%s", cur, target)
	}
	if target == c.phase {
		c.mu.Unlock()
		return nil
	}

	old := c.phase
	for p := old + 1; p <= target; p++ {
		close(c.signals[p])
	}
	c.phase = target
	callbacks := append([]PhaseChangeFunc(nil), c.onPhaseChange...)
	c.mu.Unlock()

	logger.Info("生命周期阶段推进", "from", old.String(), "to", target.String())

	for _, cb := range callbacks {
		cb(old, target)
	}
	return nil
}

// Wait 阻塞直到到达 phase 或 ctx 结束
func (c *Coordinator) Wait(ctx context.Context, phase Phase) error {
	if phase < PhaseCreated || phase > PhaseStopped {
		return fmt.Errorf("lifecycle: invalid phase %d", int(phase))
	}

	c.mu.RLock()
	ch := c.signals[phase]
	c.mu.RUnlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reached 检查是否已到达 phase
func (c *Coordinator) Reached(phase Phase) bool {
	return c.Current() >= phase
}

// OnPhaseChange 注册阶段变更回调
//
// 回调在推进者的 goroutine 中同步执行，不应阻塞。
func (c *Coordinator) OnPhaseChange(cb PhaseChangeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPhaseChange = append(c.onPhaseChange, cb)
}
