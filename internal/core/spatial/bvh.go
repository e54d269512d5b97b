package spatial

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

// DefaultLeafSize 默认叶子大小
const DefaultLeafSize = 8

// deadlineCheckEvery 每构建多少个节点检查一次截止时间
const deadlineCheckEvery = 64

// BuildOptions 构建参数
type BuildOptions struct {
	// LeafSize 叶子最大点数，<= 0 时使用 DefaultLeafSize
	LeafSize int

	// CacheSize 查询缓存条目数，0 表示禁用
	CacheSize int

	// Deadline 构建截止时间，零值表示不限制
	Deadline time.Time

	// Clock 时间源，nil 时使用系统时钟
	Clock clock.Clock
}

type item struct {
	id types.ConnID
	p  types.Point
}

// node BVH 节点
//
// count > 0 为叶子，覆盖 items[start:start+count]；否则 left / right 为子节点下标。
type node struct {
	min, max    types.Point
	left, right int32
	start       int32
	count       int32
}

type queryKey struct {
	center types.Point
	radius float64
}

// Snapshot 不可变的空间索引快照
type Snapshot struct {
	nodes   []node
	items   []item
	builtAt time.Time
	cache   *lru.Cache[queryKey, []types.ConnID]
}

// emptySnapshot 返回不含任何点的快照
func emptySnapshot() *Snapshot {
	return &Snapshot{}
}

// Len 返回快照中的点数
func (s *Snapshot) Len() int { return len(s.items) }

// BuiltAt 返回构建时间
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

type builder struct {
	items    []item
	nodes    []node
	leafSize int
	deadline time.Time
	clock    clock.Clock
	built    int
}

// Build 基于位置条目构建快照
//
// 坐标含 NaN 或 Inf 的条目被忽略。超过 opts.Deadline 返回 ErrBuildTimeout。
func Build(entries []registry.PositionEntry, opts BuildOptions) (*Snapshot, error) {
	if opts.LeafSize <= 0 {
		opts.LeafSize = DefaultLeafSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	items := make([]item, 0, len(entries))
	for _, e := range entries {
		if !finite(e.Point) {
			continue
		}
		items = append(items, item{id: e.ID, p: e.Point})
	}

	b := &builder{
		items:    items,
		leafSize: opts.LeafSize,
		deadline: opts.Deadline,
		clock:    opts.Clock,
	}
	if len(items) > 0 {
		// 预估节点数，不足时 append 扩容
		b.nodes = make([]node, 0, 2*len(items)/opts.LeafSize+2)
		if _, err := b.build(0, len(items)); err != nil {
			return nil, err
		}
	}

	s := &Snapshot{
		nodes:   b.nodes,
		items:   items,
		builtAt: opts.Clock.Now(),
	}
	if opts.CacheSize > 0 {
		// 仅在 size <= 0 时返回错误
		s.cache, _ = lru.New[queryKey, []types.ConnID](opts.CacheSize)
	}
	return s, nil
}

func finite(p types.Point) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (b *builder) build(lo, hi int) (int32, error) {
	b.built++
	if b.built%deadlineCheckEvery == 0 && !b.deadline.IsZero() && b.clock.Now().After(b.deadline) {
		return 0, ErrBuildTimeout
	}

	idx := int32(len(b.nodes))
	n := node{min: b.items[lo].p, max: b.items[lo].p}
	for _, it := range b.items[lo+1 : hi] {
		for a := 0; a < 3; a++ {
			n.min[a] = math.Min(n.min[a], it.p[a])
			n.max[a] = math.Max(n.max[a], it.p[a])
		}
	}
	b.nodes = append(b.nodes, n)

	if hi-lo <= b.leafSize {
		b.nodes[idx].start = int32(lo)
		b.nodes[idx].count = int32(hi - lo)
		return idx, nil
	}

	axis := 0
	ext := n.max.Sub(n.min)
	if ext[1] > ext[axis] {
		axis = 1
	}
	if ext[2] > ext[axis] {
		axis = 2
	}

	mid := lo + (hi-lo)/2
	selectNth(b.items[lo:hi], mid-lo, axis)

	left, err := b.build(lo, mid)
	if err != nil {
		return 0, err
	}
	right, err := b.build(mid, hi)
	if err != nil {
		return 0, err
	}
	b.nodes[idx].left = left
	b.nodes[idx].right = right
	return idx, nil
}

// selectNth 部分排序 items，使 items[k] 为按 axis 排序后的第 k 个元素，
// 其左侧不大于它、右侧不小于它
func selectNth(items []item, k, axis int) {
	lo, hi := 0, len(items)-1
	for lo < hi {
		mid := lo + (hi-lo)/2
		pivot := median3(items[lo].p[axis], items[mid].p[axis], items[hi].p[axis])

		i, j := lo, hi
		for i <= j {
			for items[i].p[axis] < pivot {
				i++
			}
			for items[j].p[axis] > pivot {
				j--
			}
			if i <= j {
				items[i], items[j] = items[j], items[i]
				i++
				j--
			}
		}

		switch {
		case k <= j:
			hi = j
		case k >= i:
			lo = i
		default:
			return
		}
	}
}

func median3(a, b, c float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		b = a
	}
	return b
}

// boxDistSq 返回点到包围盒的最短距离平方
func boxDistSq(n *node, p types.Point) float64 {
	var d float64
	for a := 0; a < 3; a++ {
		switch {
		case p[a] < n.min[a]:
			v := n.min[a] - p[a]
			d += v * v
		case p[a] > n.max[a]:
			v := p[a] - n.max[a]
			d += v * v
		}
	}
	return d
}

// QueryRadius 将与 center 距离不超过 radius 的连接追加到 dst
//
// 边界为闭区间。radius 为负或 NaN 时不追加任何结果；radius 为 0 时只匹配重合的点。
// 结果顺序未定义。
func (s *Snapshot) QueryRadius(center types.Point, radius float64, dst []types.ConnID) []types.ConnID {
	if !(radius >= 0) || len(s.nodes) == 0 || !finite(center) {
		return dst
	}

	key := queryKey{center: center, radius: radius}
	if s.cache != nil {
		if hit, ok := s.cache.Get(key); ok {
			return append(dst, hit...)
		}
	}

	start := len(dst)
	r2 := radius * radius

	var stackBuf [64]int32
	stack := append(stackBuf[:0], 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &s.nodes[ni]
		if boxDistSq(n, center) > r2 {
			continue
		}
		if n.count > 0 {
			for _, it := range s.items[n.start : n.start+n.count] {
				if types.DistanceSq(it.p, center) <= r2 {
					dst = append(dst, it.id)
				}
			}
			continue
		}
		stack = append(stack, n.left, n.right)
	}

	if s.cache != nil {
		found := make([]types.ConnID, len(dst)-start)
		copy(found, dst[start:])
		s.cache.Add(key, found)
	}
	return dst
}

// Depth 返回树深度（根为 1，空树为 0）
func (s *Snapshot) Depth() int {
	if len(s.nodes) == 0 {
		return 0
	}
	var walk func(i int32) int
	walk = func(i int32) int {
		n := &s.nodes[i]
		if n.count > 0 {
			return 1
		}
		l, r := walk(n.left), walk(n.right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}
