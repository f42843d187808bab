// Package labeling implements connected-component labeling of binary
// occupancy masks: a sequential two-pass union-find labeler, a data-parallel
// label-propagation labeler, and out-of-core tile and slab drivers that
// reconcile locally assigned labels into a single global partition.
//
// All entry points produce the same partition of foreground voxels for the
// same connectivity rule; only label numbering may differ before the final
// dense renumbering, which assigns consecutive IDs starting at 1 in
// first-seen scan order.
package labeling

import (
	"context"
	"errors"
)

// Sentinel errors for labeling operations.
var (
	// ErrBadConnectivity indicates a connectivity rule incompatible with the
	// region dimensionality.
	ErrBadConnectivity = errors.New("labeling: connectivity incompatible with region dimensions")
	// ErrBadRegion indicates non-positive dimensions or a short mask buffer.
	ErrBadRegion = errors.New("labeling: region dimensions must be positive and fit the mask")
	// ErrRegionTooLarge indicates a region with more voxels than a label can index.
	ErrRegionTooLarge = errors.New("labeling: region exceeds maximum addressable voxel count")
	// ErrIterationCap indicates the propagation kernel hit its iteration cap
	// before converging; callers should fall back to a sequential path.
	ErrIterationCap = errors.New("labeling: propagation kernel iteration cap exceeded")
)

// Connectivity is the adjacency rule deciding whether two foreground voxels
// belong to the same component.
type Connectivity int

const (
	// Conn4 uses 4-directional connectivity in 2D: left, right, up, down.
	Conn4 Connectivity = iota
	// Conn8 uses 8-directional connectivity in 2D, adding the diagonals.
	Conn8
	// Conn6 uses face connectivity in 3D: the six axis neighbors.
	Conn6
)

func (c Connectivity) String() string {
	switch c {
	case Conn4:
		return "4-connected"
	case Conn8:
		return "8-connected"
	case Conn6:
		return "6-connected"
	default:
		return "unknown connectivity"
	}
}

// Result is a finalized labeling: dense consecutive labels starting at 1,
// background 0, flattened z-major, y-next, x-fastest.
type Result struct {
	// Labels holds one label per voxel of the labeled region.
	Labels []int32

	// NumLabels is the number of distinct components.
	NumLabels int32
}

// MaskSource supplies binary occupancy masks for arbitrary subregions of a
// volume, so out-of-core drivers never need the whole mask resident at once.
// Fill writes the mask for the region at (x0, y0, z0) with extents
// (nx, ny, nz) into dst, flattened z-major, y-next, x-fastest; dst must hold
// at least nx*ny*nz bytes.
type MaskSource interface {
	Fill(dst []uint8, x0, y0, z0, nx, ny, nz int)
}

// DefaultTileSize is the cubic tile edge length used by the chunked driver
// when none is configured.
const DefaultTileSize = 128

// DefaultSlabDepth is the Z extent of slabs used by the slab driver when
// none is configured.
const DefaultSlabDepth = 64

// cancelStride is how many rows or slices of outer-loop work pass between
// cooperative cancellation checks.
const cancelStride = 10

// validateRegion checks dimensions, mask length and the connectivity rule.
func validateRegion(mask []uint8, w, h, d int, conn Connectivity) error {
	if w <= 0 || h <= 0 || d <= 0 || len(mask) < w*h*d {
		return ErrBadRegion
	}
	if d == 1 {
		if conn != Conn4 && conn != Conn8 {
			return ErrBadConnectivity
		}
	} else if conn != Conn6 {
		return ErrBadConnectivity
	}
	return nil
}

// remapDense replaces every non-zero entry of labels with the root of its
// equivalence class, renumbered to dense consecutive IDs assigned in
// first-seen scan order. rowLen*numRows must equal len(labels).
func remapDense(ctx context.Context, labels []int32, rowLen, numRows int, uf *UnionFind) (int32, error) {
	remap := make([]int32, uf.NumLabels()+1)
	var next int32
	for row := 0; row < numRows; row++ {
		if row%cancelStride == 0 && ctx.Err() != nil {
			return 0, ctx.Err()
		}
		base := row * rowLen
		for i := base; i < base+rowLen; i++ {
			if labels[i] == 0 {
				continue
			}
			root := uf.Find(labels[i])
			if remap[root] == 0 {
				next++
				remap[root] = next
			}
			labels[i] = remap[root]
		}
	}
	return next, nil
}
