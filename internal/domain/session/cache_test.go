package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesmith/backend/internal/genai"
	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/shared/types"
)

type fakeHandle struct {
	id int64
}

func (f *fakeHandle) Generate(ctx context.Context, prompt string, cb genai.Callbacks) {
	cb.OnComplete()
}

type fakeProvider struct {
	calls atomic.Int64
	delay time.Duration
}

func (f *fakeProvider) NewHandle(ctx context.Context, appID uint64, mode types.GenMode, history []genai.Message) (genai.Handle, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return &fakeHandle{id: n}, nil
}

func newTestCache(cfg Config, p genai.Provider, history HistoryFunc) *Cache {
	return NewCache(cfg, p, history, logging.Nop())
}

func TestGetConstructsOnceUnderConcurrency(t *testing.T) {
	p := &fakeProvider{delay: 10 * time.Millisecond}
	c := newTestCache(Config{}, p, nil)
	defer c.Close()

	const n = 50
	handles := make([]genai.Handle, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			h, err := c.Get(context.Background(), 7, types.ModeHTML)
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, p.calls.Load())
	for i := 1; i < n; i++ {
		assert.Same(t, handles[0], handles[i])
	}
}

func TestGetDistinctPairsGetDistinctHandles(t *testing.T) {
	p := &fakeProvider{}
	c := newTestCache(Config{}, p, nil)
	defer c.Close()

	h1, err := c.Get(context.Background(), 1, types.ModeHTML)
	require.NoError(t, err)
	h2, err := c.Get(context.Background(), 1, types.ModeVueProject)
	require.NoError(t, err)
	h3, err := c.Get(context.Background(), 2, types.ModeHTML)
	require.NoError(t, err)

	assert.NotSame(t, h1, h2)
	assert.NotSame(t, h1, h3)
	assert.EqualValues(t, 3, p.calls.Load())
}

func TestEvictThenGetReseedsFromHistory(t *testing.T) {
	p := &fakeProvider{}
	var historyCalls atomic.Int64
	history := func(appID uint64, max int) []genai.Message {
		historyCalls.Add(1)
		assert.EqualValues(t, 20, max)
		return []genai.Message{{Role: "user", Content: "make a site"}}
	}
	c := newTestCache(Config{}, p, history)
	defer c.Close()

	_, err := c.Get(context.Background(), 9, types.ModeMultiFile)
	require.NoError(t, err)
	require.True(t, c.Evict(9, types.ModeMultiFile))

	_, err = c.Get(context.Background(), 9, types.ModeMultiFile)
	require.NoError(t, err)

	assert.EqualValues(t, 2, p.calls.Load())
	assert.EqualValues(t, 2, historyCalls.Load())
}

func TestWriteTTLExpires(t *testing.T) {
	p := &fakeProvider{}
	c := newTestCache(Config{WriteTTL: 20 * time.Millisecond, IdleTTL: time.Hour}, p, nil)
	defer c.Close()

	_, err := c.Get(context.Background(), 3, types.ModeHTML)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	_, err = c.Get(context.Background(), 3, types.ModeHTML)
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.calls.Load())
	assert.EqualValues(t, 1, c.Stats().Evictions)
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	p := &fakeProvider{}
	c := newTestCache(Config{Capacity: 2}, p, nil)
	defer c.Close()

	ctx := context.Background()
	_, err := c.Get(ctx, 1, types.ModeHTML)
	require.NoError(t, err)
	_, err = c.Get(ctx, 2, types.ModeHTML)
	require.NoError(t, err)
	// Touch app 1 so app 2 is the LRU victim.
	_, err = c.Get(ctx, 1, types.ModeHTML)
	require.NoError(t, err)
	_, err = c.Get(ctx, 3, types.ModeHTML)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Stats().Size)

	// App 1 stays cached, app 2 was evicted and rebuilds.
	_, err = c.Get(ctx, 1, types.ModeHTML)
	require.NoError(t, err)
	_, err = c.Get(ctx, 2, types.ModeHTML)
	require.NoError(t, err)
	assert.EqualValues(t, 4, p.calls.Load())
}

func TestEvictAppDropsAllModes(t *testing.T) {
	p := &fakeProvider{}
	c := newTestCache(Config{}, p, nil)
	defer c.Close()

	ctx := context.Background()
	_, err := c.Get(ctx, 5, types.ModeHTML)
	require.NoError(t, err)
	_, err = c.Get(ctx, 5, types.ModeReactProject)
	require.NoError(t, err)
	_, err = c.Get(ctx, 6, types.ModeHTML)
	require.NoError(t, err)

	assert.Equal(t, 2, c.EvictApp(5))
	assert.Equal(t, 1, c.Stats().Size)
}

func TestWarmBuildsEveryMode(t *testing.T) {
	p := &fakeProvider{}
	c := newTestCache(Config{}, p, nil)
	defer c.Close()

	want := 2 * len(types.Modes())
	warmed := c.Warm(context.Background(), []uint64{1, 2})
	assert.Equal(t, want, warmed)
	assert.Equal(t, want, c.Stats().Size)

	// Every pair is a hit afterwards, no rebuild.
	_, err := c.Get(context.Background(), 1, types.ModeReactProject)
	require.NoError(t, err)
	assert.EqualValues(t, want, p.calls.Load())
}

func TestStatsCounters(t *testing.T) {
	p := &fakeProvider{}
	c := newTestCache(Config{}, p, nil)
	defer c.Close()

	ctx := context.Background()
	_, err := c.Get(ctx, 1, types.ModeHTML)
	require.NoError(t, err)
	_, err = c.Get(ctx, 1, types.ModeHTML)
	require.NoError(t, err)

	s := c.Stats()
	assert.EqualValues(t, 1, s.Hits)
	assert.EqualValues(t, 1, s.Misses)
	assert.EqualValues(t, 1, s.Loads)
	assert.InDelta(t, 0.5, s.HitRate, 0.001)
	assert.Equal(t, 1, s.Size)
	assert.Equal(t, 1000, s.Capacity)

	assert.Equal(t, 1, c.EvictAll())
	assert.Equal(t, 0, c.Stats().Size)
}
