package labeling

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// LabelPropagation labels a binary mask by iterative label minimization,
// the relaxation scheme used on parallel accelerators where union-find
// recursion parallelizes poorly. Every foreground voxel is seeded with a
// unique positive label, then a synchronous kernel repeatedly replaces each
// foreground voxel's label with the minimum among itself and its
// same-connectivity neighbors until a full pass changes nothing. Iterated
// neighbor-minimum propagation converges to the minimum seed of each
// connectivity class, so the resulting partition is identical to the
// union-find labelers'.
//
// The iteration count is capped at the sum of the region dimensions, hard
// capped at 1000 passes. If the kernel is still changing when the cap is
// hit, ErrIterationCap is returned so callers can fall back to a
// sequential path instead of trusting an unconverged labeling.
//
// workers is the number of parallel kernel lanes; values below 1 run a
// single lane.
func LabelPropagation(ctx context.Context, mask []uint8, w, h, d int, conn Connectivity, workers int) (*Result, error) {
	if err := validateRegion(mask, w, h, d, conn); err != nil {
		return nil, err
	}
	n := w * h * d
	if n >= math.MaxInt32 {
		return nil, ErrRegionTooLarge
	}
	if workers < 1 {
		workers = 1
	}

	// Seed every foreground voxel with a unique positive label.
	cur := make([]int32, n)
	next := make([]int32, n)
	for i := 0; i < n; i++ {
		if mask[i] != 0 {
			cur[i] = int32(i + 1)
		}
	}

	maxIter := w + h + d
	if maxIter > 1000 {
		maxIter = 1000
	}

	rows := h * d
	rowsPerLane := (rows + workers - 1) / workers

	converged := false
	for iter := 0; iter < maxIter; iter++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		changed := make([]bool, workers)
		g := new(errgroup.Group)
		for lane := 0; lane < workers; lane++ {
			lane := lane
			r0 := lane * rowsPerLane
			r1 := r0 + rowsPerLane
			if r1 > rows {
				r1 = rows
			}
			if r0 >= r1 {
				continue
			}
			g.Go(func() error {
				changed[lane] = propagateRows(mask, cur, next, w, h, d, conn, r0, r1)
				return nil
			})
		}
		// Kernel launches are synchronous barriers: the host blocks until
		// every lane completes before reading results.
		if err := g.Wait(); err != nil {
			return nil, err
		}
		cur, next = next, cur

		converged = true
		for _, c := range changed {
			if c {
				converged = false
				break
			}
		}
		if converged {
			break
		}
	}
	if !converged {
		return nil, ErrIterationCap
	}

	numLabels, err := renumberSeeds(ctx, cur, w, rows)
	if err != nil {
		return nil, err
	}
	return &Result{Labels: cur, NumLabels: numLabels}, nil
}

// propagateRows runs one relaxation pass over rows [r0, r1), reading from
// cur and writing to next. Rows enumerate (z, y) pairs: z = row/h,
// y = row%h. Reports whether any voxel in the range changed.
func propagateRows(mask []uint8, cur, next []int32, w, h, d int, conn Connectivity, r0, r1 int) bool {
	plane := w * h
	changed := false
	for row := r0; row < r1; row++ {
		z := row / h
		y := row % h
		base := z*plane + y*w
		for x := 0; x < w; x++ {
			i := base + x
			if mask[i] == 0 {
				next[i] = 0
				continue
			}
			m := cur[i]
			if x > 0 && mask[i-1] != 0 && cur[i-1] < m {
				m = cur[i-1]
			}
			if x < w-1 && mask[i+1] != 0 && cur[i+1] < m {
				m = cur[i+1]
			}
			if y > 0 && mask[i-w] != 0 && cur[i-w] < m {
				m = cur[i-w]
			}
			if y < h-1 && mask[i+w] != 0 && cur[i+w] < m {
				m = cur[i+w]
			}
			if conn == Conn6 {
				if z > 0 && mask[i-plane] != 0 && cur[i-plane] < m {
					m = cur[i-plane]
				}
				if z < d-1 && mask[i+plane] != 0 && cur[i+plane] < m {
					m = cur[i+plane]
				}
			} else if conn == Conn8 {
				if y > 0 {
					if x > 0 && mask[i-w-1] != 0 && cur[i-w-1] < m {
						m = cur[i-w-1]
					}
					if x < w-1 && mask[i-w+1] != 0 && cur[i-w+1] < m {
						m = cur[i-w+1]
					}
				}
				if y < h-1 {
					if x > 0 && mask[i+w-1] != 0 && cur[i+w-1] < m {
						m = cur[i+w-1]
					}
					if x < w-1 && mask[i+w+1] != 0 && cur[i+w+1] < m {
						m = cur[i+w+1]
					}
				}
			}
			next[i] = m
			if m != cur[i] {
				changed = true
			}
		}
	}
	return changed
}

// renumberSeeds replaces converged seed labels with dense consecutive IDs
// assigned in first-seen scan order.
func renumberSeeds(ctx context.Context, labels []int32, rowLen, numRows int) (int32, error) {
	remap := make(map[int32]int32)
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
			dense, ok := remap[labels[i]]
			if !ok {
				next++
				dense = next
				remap[labels[i]] = dense
			}
			labels[i] = dense
		}
	}
	return next, nil
}
