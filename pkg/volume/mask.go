package volume

import "fmt"

// MaterialMask derives binary occupancy masks from a Reader by comparing
// each voxel's material ID to the selected one. Masks are ephemeral: they
// are written into caller-supplied buffers so that out-of-core drivers can
// reuse a single tile-sized allocation across many regions.
type MaterialMask struct {
	// R is the source volume.
	R Reader

	// Material is the selected foreground material ID.
	Material uint8
}

// Fill writes the occupancy mask for the region starting at (x0, y0, z0)
// with extents (nx, ny, nz) into dst, flattened z-major, y-next, x-fastest.
// dst must hold at least nx*ny*nz bytes; only the first nx*ny*nz entries
// are written. Foreground voxels are 1, background 0.
func (m MaterialMask) Fill(dst []uint8, x0, y0, z0, nx, ny, nz int) {
	i := 0
	for z := z0; z < z0+nz; z++ {
		for y := y0; y < y0+ny; y++ {
			for x := x0; x < x0+nx; x++ {
				if m.R.MaterialAt(x, y, z) == m.Material {
					dst[i] = 1
				} else {
					dst[i] = 0
				}
				i++
			}
		}
	}
}

// ExtractMask allocates and fills the occupancy mask for a whole region.
// The region must lie inside the volume.
func (m MaterialMask) ExtractMask(x0, y0, z0, nx, ny, nz int) ([]uint8, error) {
	w, h, d := m.R.Dims()
	if x0 < 0 || y0 < 0 || z0 < 0 || nx <= 0 || ny <= 0 || nz <= 0 ||
		x0+nx > w || y0+ny > h || z0+nz > d {
		return nil, fmt.Errorf("%w: (%d,%d,%d)+(%d,%d,%d) in %dx%dx%d",
			ErrOutOfRange, x0, y0, z0, nx, ny, nz, w, h, d)
	}
	dst := make([]uint8, nx*ny*nz)
	m.Fill(dst, x0, y0, z0, nx, ny, nz)
	return dst, nil
}

// ExtractSliceMask fills the occupancy mask of the single Z slice at index z.
func (m MaterialMask) ExtractSliceMask(z int) ([]uint8, error) {
	w, h, _ := m.R.Dims()
	return m.ExtractMask(0, 0, z, w, h, 1)
}

// ExtractVolumeMask fills the occupancy mask of the whole volume.
func (m MaterialMask) ExtractVolumeMask() ([]uint8, error) {
	w, h, d := m.R.Dims()
	return m.ExtractMask(0, 0, 0, w, h, d)
}
