package labeling

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// tile is one cubic region of the chunked partition.
type tile struct {
	x0, y0, z0 int
	nx, ny, nz int
}

// LabelChunked labels a volume out-of-core: it partitions the region into
// cubic tiles of edge tileSize, labels each tile independently from masks
// pulled on demand through src, re-keys tile-local labels to globally
// unique ones, then merges components across tile boundaries with a global
// union-find pass. Peak memory is bounded by one tile's mask and label
// buffers per worker plus the volume-sized global label array.
//
// The partition is identical to a monolithic pass with 6-connectivity
// (4-connectivity for single-slice regions). Tiles share no mutable state
// beyond the global label counter and the global output array, so they are
// labeled in parallel on up to workers goroutines; each worker reuses one
// tile-sized mask and label buffer across all tiles it processes.
func LabelChunked(ctx context.Context, src MaskSource, w, h, d, tileSize, workers int) (*Result, error) {
	if w <= 0 || h <= 0 || d <= 0 {
		return nil, ErrBadRegion
	}
	if tileSize < 1 {
		tileSize = DefaultTileSize
	}
	if workers < 1 {
		workers = 1
	}

	global := make([]int32, w*h*d)

	var tiles []tile
	for z0 := 0; z0 < d; z0 += tileSize {
		for y0 := 0; y0 < h; y0 += tileSize {
			for x0 := 0; x0 < w; x0 += tileSize {
				tiles = append(tiles, tile{
					x0: x0, y0: y0, z0: z0,
					nx: minInt(tileSize, w-x0),
					ny: minInt(tileSize, h-y0),
					nz: minInt(tileSize, d-z0),
				})
			}
		}
	}

	// Stage 1+2+3: label every tile locally, re-key to global labels under
	// the shared counter, and write the recolored result at the tile's
	// world offset. Tile output regions are disjoint, so only the counter
	// needs the mutex.
	var (
		mu         sync.Mutex
		nextGlobal int32
	)
	work := make(chan tile)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(work)
		for _, t := range tiles {
			select {
			case work <- t:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			maskBuf := make([]uint8, tileSize*tileSize*tileSize)
			labelBuf := make([]int32, tileSize*tileSize*tileSize)
			for t := range work {
				if err := labelTile(gctx, src, t, maskBuf, labelBuf, global, w, h, &mu, &nextGlobal); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stage 4: one raster scan unions every label with its -X, -Y and -Z
	// foreground neighbors. Causal checks suffice: Union is symmetric and
	// the scan visits every adjacent pair exactly once per axis.
	uf := NewUnionFind(int(nextGlobal))
	uf.Grow(nextGlobal)
	if err := mergeAdjacent(ctx, global, w, h, d, uf); err != nil {
		return nil, err
	}

	// Stage 5: final remap, identical in effect to the monolithic two-pass
	// renumbering.
	numLabels, err := remapDense(ctx, global, w, h*d, uf)
	if err != nil {
		return nil, err
	}
	return &Result{Labels: global, NumLabels: numLabels}, nil
}

// labelTile extracts one tile's mask, labels it locally, claims a block of
// global labels for it and recolors the result into the global array.
func labelTile(ctx context.Context, src MaskSource, t tile, maskBuf []uint8, labelBuf []int32, global []int32, w, h int, mu *sync.Mutex, nextGlobal *int32) error {
	n := t.nx * t.ny * t.nz
	src.Fill(maskBuf[:n], t.x0, t.y0, t.z0, t.nx, t.ny, t.nz)

	conn := Conn6
	if t.nz == 1 {
		conn = Conn4
	}
	local, err := labelInto(ctx, maskBuf[:n], labelBuf[:n], t.nx, t.ny, t.nz, conn)
	if err != nil {
		return err
	}

	mu.Lock()
	base := *nextGlobal
	*nextGlobal += local
	mu.Unlock()

	plane := w * h
	i := 0
	for z := t.z0; z < t.z0+t.nz; z++ {
		for y := t.y0; y < t.y0+t.ny; y++ {
			out := z*plane + y*w + t.x0
			for x := 0; x < t.nx; x++ {
				if labelBuf[i] != 0 {
					global[out+x] = base + labelBuf[i]
				}
				i++
			}
		}
	}
	return nil
}

// mergeAdjacent unions labels of adjacent foreground voxels across the
// whole region, checking the causal -X, -Y and -Z neighbors of every voxel.
func mergeAdjacent(ctx context.Context, labels []int32, w, h, d int, uf *UnionFind) error {
	plane := w * h
	for z := 0; z < d; z++ {
		if z%cancelStride == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		for y := 0; y < h; y++ {
			row := z*plane + y*w
			for x := 0; x < w; x++ {
				i := row + x
				l := labels[i]
				if l == 0 {
					continue
				}
				if x > 0 && labels[i-1] != 0 && labels[i-1] != l {
					uf.Union(l, labels[i-1])
				}
				if y > 0 && labels[i-w] != 0 && labels[i-w] != l {
					uf.Union(l, labels[i-w])
				}
				if z > 0 && labels[i-plane] != 0 && labels[i-plane] != l {
					uf.Union(l, labels[i-plane])
				}
			}
		}
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
