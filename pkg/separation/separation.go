// Package separation orchestrates particle extraction: it selects a
// labeling strategy (monolithic CPU, accelerator propagation, or
// out-of-core slab/tile processing) for the requested region, runs the
// mask-extract/label/aggregate pipeline under cooperative cancellation,
// and hands back a SeparationResult.
package separation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"ctparticles/internal/models"
	"ctparticles/pkg/accel"
	"ctparticles/pkg/labeling"
	"ctparticles/pkg/particles"
	"ctparticles/pkg/volume"
)

// Sentinel errors for separation runs.
var (
	// ErrBusy indicates another separation is already running against the
	// same source; callers must cancel and restart, not dispatch
	// concurrently.
	ErrBusy = errors.New("separation: separation already in progress for this source")
	// ErrAllocTooLarge indicates a buffer allocation over the memory
	// budget; it surfaces to callers only when every fallback stage is
	// also over budget.
	ErrAllocTooLarge = errors.New("separation: allocation exceeds memory budget")
	// ErrBadSlice indicates a slice index outside the source volume.
	ErrBadSlice = errors.New("separation: slice index out of range")
)

// Default tuning parameters. These are configuration, not semantics: any
// values yield the same partition.
const (
	// DefaultChunkedThreshold is the 3D voxel count above which the
	// chunked path is forced unconditionally.
	DefaultChunkedThreshold = 250_000_000

	// DefaultMinVoxels2D and DefaultMinVoxels3D are the conservative
	// small-particle filter thresholds.
	DefaultMinVoxels2D = 10
	DefaultMinVoxels3D = 20
)

// Params configures a Separator.
type Params struct {
	// MaterialID selects the foreground material. Which material is
	// foreground is an upstream decision; it arrives here as a value.
	MaterialID uint8

	// Connectivity2D selects 4- or 8-connectivity for single-slice
	// separations. Full-volume separations always use 6-connectivity.
	Connectivity2D labeling.Connectivity

	// TileSize is the cubic tile edge for the chunked path; zero selects
	// the default.
	TileSize int

	// SlabDepth is the Z extent of slabs for the slab path; zero selects
	// the default.
	SlabDepth int

	// ChunkedThreshold is the 3D voxel count forcing the chunked path;
	// zero selects the default.
	ChunkedThreshold int64

	// FilterEnabled applies the conservative small-particle filter after
	// aggregation.
	FilterEnabled bool

	// MinVoxels2D and MinVoxels3D are the filter thresholds; zero selects
	// the defaults.
	MinVoxels2D int64
	MinVoxels3D int64

	// NumWorkers bounds tile and kernel parallelism; zero selects one
	// worker per CPU.
	NumWorkers int

	// MemoryBudgetBytes caps dense buffer allocations; allocations over
	// budget trigger fallback to out-of-core processing. Zero disables
	// the guard.
	MemoryBudgetBytes int64

	// RequireAccelerator forbids fallback: labeling runs on the device or
	// fails with an accelerator-unavailable error.
	RequireAccelerator bool

	// Progress, when non-nil, receives advisory monotonically
	// non-decreasing completion fractions per stage. Absence does not
	// change behavior.
	Progress func(stage string, fraction float64)
}

// Separator runs particle separations against one source volume. A
// Separator rejects concurrent runs; callers serialize requests by
// cancelling and restarting.
type Separator struct {
	source  volume.Reader
	device  *accel.Device
	params  Params
	running atomic.Bool
}

// NewSeparator builds a Separator over source. device may be nil, which
// degrades the separator to a CPU-only capability set.
func NewSeparator(source volume.Reader, device *accel.Device, params Params) *Separator {
	if params.TileSize <= 0 {
		params.TileSize = labeling.DefaultTileSize
	}
	if params.SlabDepth <= 0 {
		params.SlabDepth = labeling.DefaultSlabDepth
	}
	if params.ChunkedThreshold <= 0 {
		params.ChunkedThreshold = DefaultChunkedThreshold
	}
	if params.MinVoxels2D <= 0 {
		params.MinVoxels2D = DefaultMinVoxels2D
	}
	if params.MinVoxels3D <= 0 {
		params.MinVoxels3D = DefaultMinVoxels3D
	}
	if params.NumWorkers <= 0 {
		params.NumWorkers = runtime.NumCPU()
	}
	return &Separator{source: source, device: device, params: params}
}

// SeparateVolume labels the whole volume with 6-connectivity and extracts
// its particles. On cancellation the context error is returned and no
// partial result is surfaced.
func (s *Separator) SeparateVolume(ctx context.Context) (*models.SeparationResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.running.Store(false)

	w, h, d := s.source.Dims()
	s.report("separate", 0)

	res, err := s.labelVolume(ctx, w, h, d)
	if err != nil {
		return nil, err
	}
	s.report("separate", 0.8)

	vol := &models.LabelVolume{Labels: res.Labels, Width: w, Height: h, Depth: d}
	return s.finish(ctx, vol, res.NumLabels, true, 0, s.params.MinVoxels3D)
}

// SeparateSlice labels the single Z slice at index z with the configured
// 2D connectivity and extracts its particles.
func (s *Separator) SeparateSlice(ctx context.Context, z int) (*models.SeparationResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.running.Store(false)

	w, h, d := s.source.Dims()
	if z < 0 || z >= d {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadSlice, z, d)
	}
	s.report("separate", 0)

	res, err := s.labelSlice(ctx, w, h, z)
	if err != nil {
		return nil, err
	}
	s.report("separate", 0.8)

	vol := &models.LabelVolume{Labels: res.Labels, Width: w, Height: h, Depth: 1}
	return s.finish(ctx, vol, res.NumLabels, false, z, s.params.MinVoxels2D)
}

// finish aggregates particles over a finalized label volume and applies
// the optional size filter.
func (s *Separator) finish(ctx context.Context, vol *models.LabelVolume, numLabels int32, is3D bool, currentSlice int, minVoxels int64) (*models.SeparationResult, error) {
	parts, err := particles.Aggregate(ctx, vol, numLabels, s.source.PixelSize())
	if err != nil {
		return nil, err
	}
	s.report("separate", 0.95)
	if s.params.FilterEnabled {
		parts = particles.FilterSmall(parts, minVoxels)
	}
	s.report("separate", 1)
	return &models.SeparationResult{
		LabelVolume:  vol,
		Particles:    parts,
		Is3D:         is3D,
		CurrentSlice: currentSlice,
		PixelSize:    s.source.PixelSize(),
	}, nil
}

// IsCancelled reports whether err is the distinguished cancellation
// outcome. Cancellation propagates through every nested pass without being
// downgraded into a generic failure.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// report forwards advisory progress to the configured sink, if any.
func (s *Separator) report(stage string, fraction float64) {
	if s.params.Progress != nil {
		s.params.Progress(stage, fraction)
	}
}

// mask returns the mask extractor bound to the configured material.
func (s *Separator) mask() volume.MaterialMask {
	return volume.MaterialMask{R: s.source, Material: s.params.MaterialID}
}
