package separation

import (
	"context"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"

	"ctparticles/pkg/accel"
	"ctparticles/pkg/labeling"
)

// labelBytesPerVoxel is the resident footprint of one voxel's label.
const labelBytesPerVoxel = 4

// maskBytesPerVoxel is the resident footprint of one voxel's mask entry.
const maskBytesPerVoxel = 1

// labelVolume picks a labeling strategy for the full 3D region and owns
// the fallback chain: monolithic (accelerator or CPU) first, then Z-slabs,
// then cubic tiles. Strategy never alters the resulting partition, only
// peak memory and speed.
func (s *Separator) labelVolume(ctx context.Context, w, h, d int) (*labeling.Result, error) {
	voxels := int64(w) * int64(h) * int64(d)

	if s.params.RequireAccelerator {
		return s.labelAccelerated(ctx, w, h, d)
	}

	// Very large volumes go straight to the chunked path, before any
	// attempt at a monolithic mask.
	if voxels > s.params.ChunkedThreshold {
		log.Printf("separation: %s voxels exceed chunked threshold %s, using %d-voxel tiles",
			humanize.Comma(voxels), humanize.Comma(s.params.ChunkedThreshold), s.params.TileSize)
		return s.labelChunked(ctx, w, h, d)
	}

	// Monolithic needs the full mask and label volume resident at once.
	if err := s.checkBudget(voxels*(maskBytesPerVoxel+labelBytesPerVoxel), "monolithic mask and labels"); err != nil {
		return s.labelOutOfCore(ctx, w, h, d, err)
	}

	mask, err := s.mask().ExtractVolumeMask()
	if err != nil {
		return nil, err
	}

	conn := labeling.Conn6
	if d == 1 {
		conn = labeling.Conn4
	}

	if s.device != nil && voxels <= s.device.Capacity() {
		res, err := s.device.Label(ctx, mask, w, h, d, conn)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			// Cancellation is never downgraded to a fallback.
			return nil, ctx.Err()
		}
		log.Printf("separation: accelerator labeling failed (%v), falling back to CPU", err)
	}

	return labeling.LabelCPU(ctx, mask, w, h, d, conn)
}

// labelOutOfCore is the fallback chain taken when monolithic buffers are
// over budget: slabs for intermediate sizes, tiles beyond that. cause is
// the budget error that triggered the fallback; it surfaces only if both
// out-of-core stages are over budget too.
func (s *Separator) labelOutOfCore(ctx context.Context, w, h, d int, cause error) (*labeling.Result, error) {
	voxels := int64(w) * int64(h) * int64(d)
	log.Printf("separation: %v, falling back to out-of-core processing", cause)

	slabVoxels := int64(w) * int64(h) * int64(s.params.SlabDepth)
	if err := s.checkBudget(voxels*labelBytesPerVoxel+slabVoxels*(maskBytesPerVoxel+labelBytesPerVoxel), "slab labeling"); err == nil {
		return labeling.LabelSlabs(ctx, s.mask(), w, h, d, s.params.SlabDepth)
	}

	tileVoxels := int64(s.params.TileSize) * int64(s.params.TileSize) * int64(s.params.TileSize)
	perWorker := tileVoxels * (maskBytesPerVoxel + labelBytesPerVoxel)
	if err := s.checkBudget(voxels*labelBytesPerVoxel+perWorker*int64(s.params.NumWorkers), "tile labeling"); err != nil {
		return nil, fmt.Errorf("out-of-core fallback also over budget: %w", err)
	}
	return s.labelChunked(ctx, w, h, d)
}

// labelChunked runs the tile driver after checking the one dense buffer it
// cannot avoid, the volume-sized global label array.
func (s *Separator) labelChunked(ctx context.Context, w, h, d int) (*labeling.Result, error) {
	voxels := int64(w) * int64(h) * int64(d)
	if err := s.checkBudget(voxels*labelBytesPerVoxel, "global label volume"); err != nil {
		return nil, err
	}
	return labeling.LabelChunked(ctx, s.mask(), w, h, d, s.params.TileSize, s.params.NumWorkers)
}

// labelAccelerated is the explicit accelerator-only path: no CPU or
// chunked fallback, failures surface as accelerator-unavailable errors.
func (s *Separator) labelAccelerated(ctx context.Context, w, h, d int) (*labeling.Result, error) {
	if s.device == nil {
		return nil, accel.ErrUnavailable
	}
	voxels := int64(w) * int64(h) * int64(d)
	if err := s.checkBudget(voxels*(maskBytesPerVoxel+labelBytesPerVoxel), "accelerator mask and labels"); err != nil {
		return nil, err
	}
	mask, err := s.mask().ExtractVolumeMask()
	if err != nil {
		return nil, err
	}
	conn := labeling.Conn6
	if d == 1 {
		conn = labeling.Conn4
	}
	return s.device.Label(ctx, mask, w, h, d, conn)
}

// labelSlice labels one Z slice: small enough to run monolithically, on
// the device when one is open.
func (s *Separator) labelSlice(ctx context.Context, w, h, z int) (*labeling.Result, error) {
	voxels := int64(w) * int64(h)
	if err := s.checkBudget(voxels*(maskBytesPerVoxel+labelBytesPerVoxel), "slice mask and labels"); err != nil {
		return nil, err
	}
	mask, err := s.mask().ExtractSliceMask(z)
	if err != nil {
		return nil, err
	}

	if s.params.RequireAccelerator {
		if s.device == nil {
			return nil, accel.ErrUnavailable
		}
		return s.device.Label(ctx, mask, w, h, 1, s.params.Connectivity2D)
	}

	if s.device != nil && voxels <= s.device.Capacity() {
		res, err := s.device.Label(ctx, mask, w, h, 1, s.params.Connectivity2D)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("separation: accelerator labeling failed (%v), falling back to CPU", err)
	}
	return labeling.LabelCPU(ctx, mask, w, h, 1, s.params.Connectivity2D)
}

// checkBudget verifies a dense allocation fits the configured memory
// budget. A zero budget disables the guard.
func (s *Separator) checkBudget(bytes int64, what string) error {
	if s.params.MemoryBudgetBytes > 0 && bytes > s.params.MemoryBudgetBytes {
		return fmt.Errorf("%w: %s needs %s, budget is %s", ErrAllocTooLarge, what,
			humanize.IBytes(uint64(bytes)), humanize.IBytes(uint64(s.params.MemoryBudgetBytes)))
	}
	return nil
}
