package models

// LabelVolume is a dense connected-component labeling of a voxel region.
// Labels[i] == 0 marks background; positive values identify components.
// After finalization labels are consecutive starting at 1 in first-seen
// scan order.
type LabelVolume struct {
	// Labels holds one label per voxel, flattened z-major, y-next,
	// x-fastest: index = z*Width*Height + y*Width + x.
	Labels []int32

	// Width, Height and Depth are the region dimensions in voxels.
	Width, Height, Depth int
}

// NewLabelVolume allocates an all-background label volume of the given
// dimensions.
func NewLabelVolume(width, height, depth int) *LabelVolume {
	return &LabelVolume{
		Labels: make([]int32, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// Index returns the flat index of voxel (x, y, z).
func (v *LabelVolume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the label of voxel (x, y, z).
func (v *LabelVolume) At(x, y, z int) int32 {
	return v.Labels[z*v.Width*v.Height+y*v.Width+x]
}

// NumVoxels returns the total number of voxels in the region.
func (v *LabelVolume) NumVoxels() int {
	return v.Width * v.Height * v.Depth
}

// SeparationResult is the unit handed to callers after particle separation:
// the labeled region plus the aggregated particle list.
type SeparationResult struct {
	// LabelVolume is the final dense labeling of the separated region.
	LabelVolume *LabelVolume

	// Particles holds one record per surviving component, ordered by ID.
	Particles []Particle

	// Is3D reports whether the separation ran over the full volume (true)
	// or a single 2D slice (false).
	Is3D bool

	// CurrentSlice is the source Z index of the separated slice when
	// Is3D is false; 0 otherwise.
	CurrentSlice int

	// PixelSize is the physical voxel edge length in meters.
	PixelSize float64
}
