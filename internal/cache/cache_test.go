package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntityCacheHitsAndMisses(t *testing.T) {
	c := NewEntityCache()

	_, ok := c.Get("TRT3:primeiro_grau:55")
	require.False(t, ok)

	c.Set("TRT3:primeiro_grau:55", 7)
	id, ok := c.Get("TRT3:primeiro_grau:55")
	require.True(t, ok)
	require.Equal(t, uint(7), id)

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, 1, stats.Size)

	c.Clear()
	require.Equal(t, 0, c.Stats().Size)
}

func TestRunCachesAreIndependent(t *testing.T) {
	a := NewRunCaches()
	b := NewRunCaches()

	a.CourtDivisions.Set("k", 1)
	_, ok := b.CourtDivisions.Get("k")
	require.False(t, ok)
	require.Equal(t, 1, a.Stats()["court_divisions"].Size)
}

func TestKey(t *testing.T) {
	require.Equal(t, "TRT3:primeiro_grau:10", Key("TRT3", "primeiro_grau", int64(10)))
	require.Equal(t, "4:Sala 1", Key(uint(4), "Sala 1"))
}
