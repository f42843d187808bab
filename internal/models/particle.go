package models

// Point3i is an integer voxel coordinate.
type Point3i struct {
	X, Y, Z int32
}

// Box3i is an axis-aligned, inclusive bounding box in voxel coordinates.
type Box3i struct {
	Min Point3i
	Max Point3i
}

// Width returns the box extent along X in voxels.
func (b Box3i) Width() int32 {
	return b.Max.X - b.Min.X + 1
}

// Height returns the box extent along Y in voxels.
func (b Box3i) Height() int32 {
	return b.Max.Y - b.Min.Y + 1
}

// Depth returns the box extent along Z in voxels.
func (b Box3i) Depth() int32 {
	return b.Max.Z - b.Min.Z + 1
}

// Particle is a maximal connected cluster of foreground voxels of one
// selected material. It is created once during aggregation and immutable
// afterwards.
type Particle struct {
	// ID is the particle's label in the label volume. It is stable: size
	// filtering may remove other particles but never renumbers survivors.
	ID int32

	// VoxelCount is the number of label-volume entries equal to ID.
	VoxelCount int64

	// VolumeMicrometers is the physical volume in cubic micrometers.
	VolumeMicrometers float64

	// VolumeMillimeters is the physical volume in cubic millimeters.
	VolumeMillimeters float64

	// Center is the centroid of the particle's voxels, truncated to
	// voxel coordinates.
	Center Point3i

	// Bounds is the inclusive bounding box of the particle's voxels.
	Bounds Box3i
}
