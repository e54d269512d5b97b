package spatial

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

func randomEntries(rng *rand.Rand, n int, extent float64) []registry.PositionEntry {
	out := make([]registry.PositionEntry, n)
	for i := range out {
		out[i] = registry.PositionEntry{
			ID: types.ConnID(i + 1),
			Point: types.Point{
				rng.Float64()*extent - extent/2,
				rng.Float64() * 64,
				rng.Float64()*extent - extent/2,
			},
		}
	}
	return out
}

func bruteForce(entries []registry.PositionEntry, center types.Point, radius float64) []types.ConnID {
	var out []types.ConnID
	for _, e := range entries {
		if types.WithinRadius(e.Point, center, radius) {
			out = append(out, e.ID)
		}
	}
	return sorted(out)
}

func sorted(ids []types.ConnID) []types.ConnID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TestSnapshot_MatchesBruteForce 区域查询结果与暴力扫描一致
func TestSnapshot_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, n := range []int{0, 1, 7, 8, 9, 100, 2000} {
		entries := randomEntries(rng, n, 1000)
		snap, err := Build(entries, BuildOptions{})
		require.NoError(t, err)
		assert.Equal(t, n, snap.Len())

		for q := 0; q < 50; q++ {
			center := types.Point{rng.Float64()*1000 - 500, 32, rng.Float64()*1000 - 500}
			radius := rng.Float64() * 200
			got := sorted(snap.QueryRadius(center, radius, nil))
			assert.Equal(t, bruteForce(entries, center, radius), got, "n=%d q=%d", n, q)
		}
	}
}

// TestSnapshot_ClosedBoundary 边界上的点包含在结果中
func TestSnapshot_ClosedBoundary(t *testing.T) {
	entries := []registry.PositionEntry{
		{ID: 1, Point: types.Point{0, 0, 0}},
		{ID: 2, Point: types.Point{10, 0, 0}},
		{ID: 3, Point: types.Point{100, 0, 0}},
	}
	snap, err := Build(entries, BuildOptions{LeafSize: 1})
	require.NoError(t, err)

	assert.Equal(t, []types.ConnID{1, 2}, sorted(snap.QueryRadius(types.Point{0, 0, 0}, 10, nil)))
	assert.Equal(t, []types.ConnID{1}, snap.QueryRadius(types.Point{0, 0, 0}, 9.999, nil))

	// 半径为 0 只匹配重合点
	assert.Equal(t, []types.ConnID{3}, snap.QueryRadius(types.Point{100, 0, 0}, 0, nil))
	assert.Empty(t, snap.QueryRadius(types.Point{50, 0, 0}, 0, nil))

	// 负半径和 NaN 返回空
	assert.Empty(t, snap.QueryRadius(types.Point{0, 0, 0}, -1, nil))
	assert.Empty(t, snap.QueryRadius(types.Point{0, 0, 0}, math.NaN(), nil))
}

func TestSnapshot_DuplicatePoints(t *testing.T) {
	entries := make([]registry.PositionEntry, 40)
	for i := range entries {
		entries[i] = registry.PositionEntry{ID: types.ConnID(i + 1), Point: types.Point{5, 5, 5}}
	}
	snap, err := Build(entries, BuildOptions{LeafSize: 2})
	require.NoError(t, err)

	assert.Len(t, snap.QueryRadius(types.Point{5, 5, 5}, 0, nil), 40)
	assert.Empty(t, snap.QueryRadius(types.Point{6, 5, 5}, 0.5, nil))
}

func TestBuild_SkipsNonFinite(t *testing.T) {
	entries := []registry.PositionEntry{
		{ID: 1, Point: types.Point{math.NaN(), 0, 0}},
		{ID: 2, Point: types.Point{math.Inf(1), 0, 0}},
		{ID: 3, Point: types.Point{1, 1, 1}},
	}
	snap, err := Build(entries, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
}

func TestBuild_Balanced(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	snap, err := Build(randomEntries(rng, 4096, 1000), BuildOptions{LeafSize: 8})
	require.NoError(t, err)

	// 4096 / 8 = 512 个叶子，深度应为 log2(512)+1
	assert.Equal(t, 10, snap.Depth())
}

func TestBuild_Timeout(t *testing.T) {
	mock := clock.NewMock()
	rng := rand.New(rand.NewSource(3))

	_, err := Build(randomEntries(rng, 1000, 100), BuildOptions{
		LeafSize: 1,
		Clock:    mock,
		Deadline: mock.Now().Add(-time.Millisecond),
	})
	assert.ErrorIs(t, err, ErrBuildTimeout)
}

// TestSnapshot_QueryCache 缓存命中与未缓存查询结果一致
func TestSnapshot_QueryCache(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	entries := randomEntries(rng, 500, 200)

	cached, err := Build(entries, BuildOptions{CacheSize: 4})
	require.NoError(t, err)
	plain, err := Build(entries, BuildOptions{})
	require.NoError(t, err)

	center := types.Point{10, 32, -20}
	want := sorted(plain.QueryRadius(center, 40, nil))

	first := sorted(cached.QueryRadius(center, 40, nil))
	second := sorted(cached.QueryRadius(center, 40, []types.ConnID{9999}))

	assert.Equal(t, want, first)
	require.NotEmpty(t, second)
	assert.Equal(t, want, second[:len(second)-1])
	assert.Equal(t, types.ConnID(9999), second[len(second)-1])
	assert.Equal(t, 1, cached.cache.Len())
}

// ============================================================================
// Index 测试
// ============================================================================

type fakeSource struct {
	mu      sync.Mutex
	entries []registry.PositionEntry
	onPull  func()
}

func (f *fakeSource) set(entries []registry.PositionEntry) {
	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()
}

func (f *fakeSource) SnapshotPositions(dst []registry.PositionEntry) []registry.PositionEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onPull != nil {
		f.onPull()
	}
	return append(dst, f.entries...)
}

func TestIndex_Rebuild(t *testing.T) {
	src := &fakeSource{}
	idx, err := NewIndex(DefaultConfig(), src)
	require.NoError(t, err)

	require.NotNil(t, idx.Current())
	assert.Empty(t, idx.Current().QueryRadius(types.Point{}, 100, nil))

	src.set([]registry.PositionEntry{{ID: 1, Point: types.Point{1, 0, 0}}})
	require.NoError(t, idx.Rebuild(context.Background()))
	assert.Equal(t, []types.ConnID{1}, idx.Current().QueryRadius(types.Point{}, 1, nil))

	rebuilds, failures := idx.Stats()
	assert.Equal(t, int64(1), rebuilds)
	assert.Equal(t, int64(0), failures)
}

// TestIndex_TimeoutKeepsPrevious 超时时沿用上一个快照
func TestIndex_TimeoutKeepsPrevious(t *testing.T) {
	mock := clock.NewMock()
	src := &fakeSource{}
	cfg := DefaultConfig()
	cfg.LeafSize = 1

	idx, err := NewIndex(cfg, src, WithClock(mock))
	require.NoError(t, err)

	src.set([]registry.PositionEntry{{ID: 1, Point: types.Point{0, 0, 0}}})
	require.NoError(t, idx.Rebuild(context.Background()))
	prev := idx.Current()

	// 拉取位置时推进时钟，使构建超出预算
	src.set(randomEntries(rand.New(rand.NewSource(9)), 1000, 100))
	src.onPull = func() { mock.Add(cfg.RebuildBudget * 2) }

	err = idx.Rebuild(context.Background())
	assert.ErrorIs(t, err, ErrBuildTimeout)
	assert.Same(t, prev, idx.Current())

	_, failures := idx.Stats()
	assert.Equal(t, int64(1), failures)
}

func TestIndex_Run(t *testing.T) {
	mock := clock.NewMock()
	src := &fakeSource{}
	idx, err := NewIndex(DefaultConfig(), src, WithClock(mock))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		idx.Run(ctx)
	}()

	src.set([]registry.PositionEntry{{ID: 7, Point: types.Point{3, 3, 3}}})
	require.Eventually(t, func() bool {
		mock.Add(DefaultConfig().RebuildInterval)
		return idx.Current().Len() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestNewIndex_InvalidConfig(t *testing.T) {
	_, err := NewIndex(Config{}, &fakeSource{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
