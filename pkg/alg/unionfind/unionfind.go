// Package unionfind provides a disjoint-set structure over dense integer ids.
//
// Documents are identified by dense 0-based indices, so the whole structure
// is a single parent array: no nodes, no pointers. A cluster is the set of
// indices that reach the same root; the root is the unique index that is its
// own parent.
package unionfind

// UnionFind is a disjoint-set forest with path compression.
// It is not safe for concurrent use.
type UnionFind struct {
	parents []uint32
}

// New creates a disjoint-set of n singleton clusters, each index its own parent.
func New(n int) *UnionFind {
	parents := make([]uint32, n)
	for i := range parents {
		parents[i] = uint32(i)
	}

	return &UnionFind{parents: parents}
}

// FromParents wraps an existing parent array without copying it.
func FromParents(parents []uint32) *UnionFind {
	return &UnionFind{parents: parents}
}

// Len returns the number of elements.
func (uf *UnionFind) Len() int {
	return len(uf.parents)
}

// Parents exposes the underlying parent array. Callers must not grow it.
func (uf *UnionFind) Parents() []uint32 {
	return uf.parents
}

// Find returns the root of x. After walking to the root, the direct parent
// of x is re-pointed at the root, so a later Find on the same element is a
// single hop.
func (uf *UnionFind) Find(x int) int {
	p := x
	for int(uf.parents[p]) != p {
		p = int(uf.parents[p])
	}

	uf.parents[x] = uint32(p)

	return p
}

// Union merges the clusters of x and y by linking the root of y under the
// root of x. The asymmetry is deliberate: the root of x stays the root, so
// a driver that passes the lower id as x biases clusters towards a lowest-id
// representative; it is not a guarantee once clusters built from different
// roots are merged.
func (uf *UnionFind) Union(x, y int) {
	if x == y {
		return
	}

	parX := uf.Find(x)
	parY := uf.Find(y)
	uf.parents[parY] = uint32(parX)
}

// Flatten path-compresses every element so that each parent entry points
// directly at its root. Cluster-size counting by a single hop is only valid
// on a flattened array.
func (uf *UnionFind) Flatten() {
	for i := range uf.parents {
		uf.Find(i)
	}
}

// ClusterSizes returns, for every root index, the number of elements whose
// parent is that root. The array must be flattened first; entries for
// non-root indices are zero.
func (uf *UnionFind) ClusterSizes() []uint32 {
	sizes := make([]uint32, len(uf.parents))
	for _, p := range uf.parents {
		sizes[p]++
	}

	return sizes
}
