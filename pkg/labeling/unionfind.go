package labeling

// UnionFind is a disjoint-set forest over positive int32 labels with
// union by rank and iterative path-halving find. It is transient
// scaffolding: drivers discard it once the final dense remap is applied.
//
// Label 0 is reserved for background and never belongs to a set.
type UnionFind struct {
	parent []int32
	rank   []uint8
}

// NewUnionFind returns an empty forest with room preallocated for
// capacity labels.
func NewUnionFind(capacity int) *UnionFind {
	return &UnionFind{
		parent: make([]int32, 1, capacity+1),
		rank:   make([]uint8, 1, capacity+1),
	}
}

// MakeSet creates a fresh singleton set and returns its label.
func (u *UnionFind) MakeSet() int32 {
	label := int32(len(u.parent))
	u.parent = append(u.parent, label)
	u.rank = append(u.rank, 0)
	return label
}

// Grow ensures singleton sets exist for every label up to and including n.
func (u *UnionFind) Grow(n int32) {
	for int32(len(u.parent)) <= n {
		u.parent = append(u.parent, int32(len(u.parent)))
		u.rank = append(u.rank, 0)
	}
}

// NumLabels returns the number of labels ever created, merged or not.
func (u *UnionFind) NumLabels() int32 {
	return int32(len(u.parent) - 1)
}

// Find returns the representative of x's set. Path halving keeps the
// forest shallow without recursion.
func (u *UnionFind) Find(x int32) int32 {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// Union merges the sets containing a and b.
func (u *UnionFind) Union(a, b int32) {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}
