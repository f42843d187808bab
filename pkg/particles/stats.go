package particles

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"ctparticles/internal/models"
)

// Summary describes the size distribution of an extracted particle set.
// Volumes are in cubic millimeters.
type Summary struct {
	// Count is the number of particles.
	Count int

	// TotalVoxels is the summed voxel count over all particles.
	TotalVoxels int64

	// TotalVolume is the summed physical volume.
	TotalVolume float64

	// MeanVolume and StdDevVolume describe the volume distribution.
	MeanVolume   float64
	StdDevVolume float64

	// MedianVolume, P10Volume and P90Volume are empirical quantiles of the
	// volume distribution.
	MedianVolume float64
	P10Volume    float64
	P90Volume    float64

	// LargestID is the ID of the particle with the most voxels.
	LargestID int32
}

// Summarize computes distribution statistics over a particle list. An empty
// list yields a zero Summary.
func Summarize(particles []models.Particle) Summary {
	var s Summary
	if len(particles) == 0 {
		return s
	}

	volumes := make([]float64, len(particles))
	var largest int64 = -1
	for i, p := range particles {
		volumes[i] = p.VolumeMillimeters
		s.TotalVoxels += p.VoxelCount
		s.TotalVolume += p.VolumeMillimeters
		if p.VoxelCount > largest {
			largest = p.VoxelCount
			s.LargestID = p.ID
		}
	}
	sort.Float64s(volumes)

	s.Count = len(particles)
	s.MeanVolume = stat.Mean(volumes, nil)
	if len(volumes) > 1 {
		s.StdDevVolume = stat.StdDev(volumes, nil)
	}
	s.MedianVolume = stat.Quantile(0.5, stat.Empirical, volumes, nil)
	s.P10Volume = stat.Quantile(0.1, stat.Empirical, volumes, nil)
	s.P90Volume = stat.Quantile(0.9, stat.Empirical, volumes, nil)
	return s
}
