package labeling

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnionFindBasics(t *testing.T) {
	uf := NewUnionFind(8)
	a := uf.MakeSet()
	b := uf.MakeSet()
	c := uf.MakeSet()
	require.Equal(t, int32(1), a)
	require.Equal(t, int32(2), b)
	require.Equal(t, int32(3), c)
	require.Equal(t, int32(3), uf.NumLabels())

	require.NotEqual(t, uf.Find(a), uf.Find(b))
	uf.Union(a, b)
	require.Equal(t, uf.Find(a), uf.Find(b))
	require.NotEqual(t, uf.Find(a), uf.Find(c))

	// Union is idempotent and transitive.
	uf.Union(a, b)
	uf.Union(b, c)
	require.Equal(t, uf.Find(a), uf.Find(c))
}

func TestUnionFindGrow(t *testing.T) {
	uf := NewUnionFind(0)
	uf.Grow(100)
	require.Equal(t, int32(100), uf.NumLabels())
	for i := int32(1); i <= 100; i++ {
		require.Equal(t, i, uf.Find(i), "fresh sets are singletons")
	}
	uf.Union(1, 100)
	require.Equal(t, uf.Find(1), uf.Find(100))
}

func TestUnionFindLongChain(t *testing.T) {
	// Path compression must keep deep chains usable without recursion.
	const n = 200000
	uf := NewUnionFind(n)
	uf.Grow(n)
	for i := int32(1); i < n; i++ {
		uf.Union(i, i+1)
	}
	root := uf.Find(1)
	require.Equal(t, root, uf.Find(n))
	require.Equal(t, root, uf.Find(n/2))
}
