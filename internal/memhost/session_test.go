package memhost

import (
	"testing"

	"github.com/joeycumines/vlist/internal/config"
	"github.com/joeycumines/vlist/internal/layout"
	"github.com/joeycumines/vlist/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_PrefetchInvalidates(t *testing.T) {
	q := &testutil.ManualQueue{}
	s, err := NewSession(data(func(dc *config.DataConfig) {
		dc.Count = 100
		dc.Text = "row %d"
	}), layout.Config{CachedCount: 2}, SessionOptions{Queue: q})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	var calls int
	s.OnInvalidate(func() { calls++ })

	res := s.Pass(10, 40)
	assert.Equal(t, 0, res.Start)
	assert.Equal(t, 9, res.End)
	require.NotNil(t, s.Scheduler)
	assert.Positive(t, q.Len())

	q.Drain(10)
	assert.Positive(t, s.Invalidations())
	assert.EqualValues(t, s.Invalidations(), calls)

	s.Pass(10, 40)
	start, end := s.List.CacheWindow()
	assert.Equal(t, 0, start)
	assert.Equal(t, 11, end)
}

func TestSession_InsertFollowsHost(t *testing.T) {
	s, err := NewSession(data(func(dc *config.DataConfig) {
		dc.Count = 100
		dc.SizeExpr = "1"
	}), layout.Config{}, SessionOptions{})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	assert.Nil(t, s.Scheduler)

	s.Pass(10, 40)
	require.NoError(t, s.Host.Insert(100, 10))
	s.List.ScrollToIndex(layout.LastItem, layout.AlignEnd, 0)
	s.Pass(10, 40)

	start, end := s.List.Window()
	assert.Equal(t, 100, start)
	assert.Equal(t, 109, end)
}

func TestSession_InsertKeepsDeclaredSizes(t *testing.T) {
	s, err := NewSession(data(func(dc *config.DataConfig) {
		dc.Count = 20
		dc.SizeExpr = "index % 2 + 1"
	}), layout.Config{}, SessionOptions{})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	s.Pass(10, 40)
	store := s.Host.DeclaredSizes()
	require.NoError(t, s.Host.Insert(0, 2))
	require.NoError(t, s.Host.Delete(10, 1))
	s.Pass(10, 40)

	assert.Same(t, store, s.Host.DeclaredSizes())
	assert.Equal(t, 21, s.Index.Count())
	total := 0.0
	for _, v := range store.Snapshot() {
		total += v
	}
	assert.Equal(t, total, s.Index.TotalHeight())
	for _, slot := range s.List.Slots() {
		assert.Equal(t, store.Get(slot.Index), slot.Extent(), "index %d", slot.Index)
	}
}
