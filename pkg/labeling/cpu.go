package labeling

import "context"

// LabelCPU runs the sequential two-pass union-find labeler over a binary
// mask. For 2D regions (d == 1) conn selects 4- or 8-connectivity; 3D
// regions use 6-connectivity.
//
// Pass 1 raster-scans the region inspecting only causal, already-visited
// neighbors, assigning fresh labels via MakeSet and merging touching label
// runs via Union. Pass 2 replaces every provisional label with its set
// representative, renumbered densely in first-seen scan order.
//
// Cancellation is polled at row/slice granularity; on cancellation the
// context error is returned and no partial result is surfaced.
func LabelCPU(ctx context.Context, mask []uint8, w, h, d int, conn Connectivity) (*Result, error) {
	if err := validateRegion(mask, w, h, d, conn); err != nil {
		return nil, err
	}
	labels := make([]int32, w*h*d)
	n, err := labelInto(ctx, mask, labels, w, h, d, conn)
	if err != nil {
		return nil, err
	}
	return &Result{Labels: labels, NumLabels: n}, nil
}

// labelInto is LabelCPU writing into a caller-supplied label buffer, so
// out-of-core drivers can reuse one tile-sized buffer across tiles. The
// buffer must hold at least w*h*d entries; only those entries are written.
func labelInto(ctx context.Context, mask []uint8, labels []int32, w, h, d int, conn Connectivity) (int32, error) {
	uf := NewUnionFind(64)
	var err error
	if d == 1 {
		err = firstPass2D(ctx, mask, labels, w, h, conn, uf)
	} else {
		err = firstPass3D(ctx, mask, labels, w, h, d, uf)
	}
	if err != nil {
		return 0, err
	}
	return remapDense(ctx, labels[:w*h*d], w, h*d, uf)
}

// firstPass2D assigns provisional labels over a single slice. Causal
// neighbors are left and up for Conn4, plus the two upper diagonals for
// Conn8.
func firstPass2D(ctx context.Context, mask []uint8, labels []int32, w, h int, conn Connectivity, uf *UnionFind) error {
	for y := 0; y < h; y++ {
		if y%cancelStride == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		row := y * w
		for x := 0; x < w; x++ {
			i := row + x
			if mask[i] == 0 {
				labels[i] = 0
				continue
			}
			var neighbors [4]int32
			nn := 0
			if x > 0 && mask[i-1] != 0 {
				neighbors[nn] = labels[i-1]
				nn++
			}
			if y > 0 && mask[i-w] != 0 {
				neighbors[nn] = labels[i-w]
				nn++
			}
			if conn == Conn8 && y > 0 {
				if x > 0 && mask[i-w-1] != 0 {
					neighbors[nn] = labels[i-w-1]
					nn++
				}
				if x < w-1 && mask[i-w+1] != 0 {
					neighbors[nn] = labels[i-w+1]
					nn++
				}
			}
			labels[i] = resolveNeighbors(neighbors[:nn], uf)
		}
	}
	return nil
}

// firstPass3D assigns provisional labels over a 3D region with
// 6-connectivity. Causal neighbors are -X, -Y and -Z.
func firstPass3D(ctx context.Context, mask []uint8, labels []int32, w, h, d int, uf *UnionFind) error {
	plane := w * h
	for z := 0; z < d; z++ {
		if z%cancelStride == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		for y := 0; y < h; y++ {
			row := z*plane + y*w
			for x := 0; x < w; x++ {
				i := row + x
				if mask[i] == 0 {
					labels[i] = 0
					continue
				}
				var neighbors [3]int32
				nn := 0
				if x > 0 && mask[i-1] != 0 {
					neighbors[nn] = labels[i-1]
					nn++
				}
				if y > 0 && mask[i-w] != 0 {
					neighbors[nn] = labels[i-w]
					nn++
				}
				if z > 0 && mask[i-plane] != 0 {
					neighbors[nn] = labels[i-plane]
					nn++
				}
				labels[i] = resolveNeighbors(neighbors[:nn], uf)
			}
		}
	}
	return nil
}

// resolveNeighbors assigns the label for a foreground voxel given its
// foreground causal neighbors: a fresh set when there are none, otherwise
// the minimum neighbor label with all distinct neighbor labels merged.
func resolveNeighbors(neighbors []int32, uf *UnionFind) int32 {
	if len(neighbors) == 0 {
		return uf.MakeSet()
	}
	min := neighbors[0]
	for _, l := range neighbors[1:] {
		if l < min {
			min = l
		}
	}
	for _, l := range neighbors {
		if l != min {
			uf.Union(min, l)
		}
	}
	return min
}
