// Package volume provides random access to multi-label voxel volumes and
// extraction of binary occupancy masks for a selected material.
package volume

import (
	"errors"
	"fmt"
)

// Sentinel errors for volume operations.
var (
	// ErrBadDimensions indicates non-positive or mismatched volume dimensions.
	ErrBadDimensions = errors.New("volume: dimensions must be positive and match the data length")
	// ErrOutOfRange indicates a region that does not lie inside the volume.
	ErrOutOfRange = errors.New("volume: region out of range")
)

// Reader is an opaque random-access view of a labeled voxel volume.
// Implementations may be in-memory, memory-mapped or chunked on disk;
// callers only get per-voxel material IDs and the dimensions.
type Reader interface {
	// MaterialAt returns the material ID at voxel (x, y, z).
	MaterialAt(x, y, z int) uint8

	// Dims returns the volume dimensions in voxels.
	Dims() (width, height, depth int)

	// PixelSize returns the physical voxel edge length in meters.
	PixelSize() float64
}

// Dense is an in-memory Reader over a flat material array, flattened
// z-major, y-next, x-fastest.
type Dense struct {
	data      []uint8
	width     int
	height    int
	depth     int
	pixelSize float64
}

// NewDense wraps a flat material array as a Reader. The data length must
// equal width*height*depth.
func NewDense(data []uint8, width, height, depth int, pixelSize float64) (*Dense, error) {
	if width <= 0 || height <= 0 || depth <= 0 || len(data) != width*height*depth {
		return nil, fmt.Errorf("%w: %dx%dx%d with %d voxels", ErrBadDimensions, width, height, depth, len(data))
	}
	return &Dense{
		data:      data,
		width:     width,
		height:    height,
		depth:     depth,
		pixelSize: pixelSize,
	}, nil
}

// MaterialAt returns the material ID at voxel (x, y, z).
func (d *Dense) MaterialAt(x, y, z int) uint8 {
	return d.data[z*d.width*d.height+y*d.width+x]
}

// Dims returns the volume dimensions in voxels.
func (d *Dense) Dims() (int, int, int) {
	return d.width, d.height, d.depth
}

// PixelSize returns the physical voxel edge length in meters.
func (d *Dense) PixelSize() float64 {
	return d.pixelSize
}
