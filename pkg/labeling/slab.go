package labeling

import "context"

// LabelSlabs labels a volume out-of-core in full-XY Z-slabs of depth
// slabDepth, a lighter variant of LabelChunked for intermediate sizes.
// Each slab is labeled monolithically from a mask pulled through src into
// one reused slab-sized buffer, re-keyed to globally unique labels, and
// written at its Z offset. Because slabs span the full X/Y extent, only
// inter-slab adjacency along Z needs reconciling: one union-find pass over
// the boundary plane between consecutive slabs, then the final dense remap.
func LabelSlabs(ctx context.Context, src MaskSource, w, h, d, slabDepth int) (*Result, error) {
	if w <= 0 || h <= 0 || d <= 0 {
		return nil, ErrBadRegion
	}
	if slabDepth < 1 {
		slabDepth = DefaultSlabDepth
	}
	if slabDepth > d {
		slabDepth = d
	}

	global := make([]int32, w*h*d)
	maskBuf := make([]uint8, w*h*slabDepth)
	labelBuf := make([]int32, w*h*slabDepth)

	plane := w * h
	var nextGlobal int32
	for z0 := 0; z0 < d; z0 += slabDepth {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		nz := minInt(slabDepth, d-z0)
		n := plane * nz
		src.Fill(maskBuf[:n], 0, 0, z0, w, h, nz)

		conn := Conn6
		if nz == 1 {
			conn = Conn4
		}
		local, err := labelInto(ctx, maskBuf[:n], labelBuf[:n], w, h, nz, conn)
		if err != nil {
			return nil, err
		}

		out := global[z0*plane : z0*plane+n]
		for i, l := range labelBuf[:n] {
			if l != 0 {
				out[i] = nextGlobal + l
			}
		}
		nextGlobal += local
	}

	// Merge only across the Z boundary between consecutive slabs.
	uf := NewUnionFind(int(nextGlobal))
	uf.Grow(nextGlobal)
	for z := slabDepth; z < d; z += slabDepth {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		below := (z - 1) * plane
		above := z * plane
		for i := 0; i < plane; i++ {
			a, b := global[below+i], global[above+i]
			if a != 0 && b != 0 && a != b {
				uf.Union(a, b)
			}
		}
	}

	numLabels, err := remapDense(ctx, global, w, h*d, uf)
	if err != nil {
		return nil, err
	}
	return &Result{Labels: global, NumLabels: numLabels}, nil
}
