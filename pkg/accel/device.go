// Package accel models a parallel compute device for label propagation as
// an explicitly owned resource handle: acquired with Open, released with
// Close, and passed to the labeling call that uses it. Absence of a handle
// degrades the caller to a CPU-only capability set; there is no ambient or
// global device state.
package accel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"ctparticles/pkg/labeling"
)

// ErrUnavailable indicates no usable device: acquisition failed, the handle
// was closed, or the workload exceeds the device's safe capacity and the
// caller forbade fallback.
var ErrUnavailable = errors.New("accel: accelerator unavailable")

// maxCapacityVoxels hard-caps the safe workload regardless of how much
// memory the device reports.
const maxCapacityVoxels = int64(1)<<31 - 1

// bytesPerVoxel is the device-side footprint of one voxel during
// propagation labeling: 1 mask byte plus 4 label bytes.
const bytesPerVoxel = 5

// Config describes the device to acquire.
type Config struct {
	// MemoryBytes is the device memory available for kernels.
	MemoryBytes int64

	// Workers is the number of parallel kernel lanes. Zero selects one
	// lane per CPU.
	Workers int
}

// Device is an acquired accelerator handle.
type Device struct {
	memoryBytes int64
	workers     int
	closed      atomic.Bool
}

// Open acquires a device handle. It fails with ErrUnavailable when the
// configuration describes an unusable device.
func Open(cfg Config) (*Device, error) {
	if cfg.MemoryBytes <= 0 {
		return nil, fmt.Errorf("%w: no device memory", ErrUnavailable)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Device{memoryBytes: cfg.MemoryBytes, workers: workers}, nil
}

// Close releases the handle. Further labeling calls fail with
// ErrUnavailable.
func (d *Device) Close() error {
	d.closed.Store(true)
	return nil
}

// Capacity returns the safe workload in voxels: 60% of device memory at 5
// bytes per voxel, hard-capped regardless of reported memory.
func (d *Device) Capacity() int64 {
	// Divide before multiplying so huge memory sizes cannot overflow.
	c := d.memoryBytes / 10 * 6 / bytesPerVoxel
	if c > maxCapacityVoxels {
		c = maxCapacityVoxels
	}
	return c
}

// Label runs the propagation kernel over a binary mask on the device.
// Workloads over Capacity are refused with ErrUnavailable so the caller
// can fall back to a CPU or chunked path.
func (d *Device) Label(ctx context.Context, mask []uint8, w, h, depth int, conn labeling.Connectivity) (*labeling.Result, error) {
	if d == nil || d.closed.Load() {
		return nil, ErrUnavailable
	}
	if int64(w)*int64(h)*int64(depth) > d.Capacity() {
		return nil, fmt.Errorf("%w: workload exceeds device capacity of %d voxels", ErrUnavailable, d.Capacity())
	}
	return labeling.LabelPropagation(ctx, mask, w, h, depth, conn, d.workers)
}
