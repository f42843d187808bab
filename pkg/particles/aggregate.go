// Package particles turns finalized label volumes into particle records:
// per-component voxel counts, physical volumes, centroids and bounding
// boxes, with optional conservative small-particle filtering and summary
// statistics over the resulting size distribution.
package particles

import (
	"context"

	"ctparticles/internal/models"
)

// cubicMetersToMicrometers converts m^3 to µm^3.
const cubicMetersToMicrometers = 1e18

// cubicMetersToMillimeters converts m^3 to mm^3.
const cubicMetersToMillimeters = 1e9

// Aggregate builds one particle record per label in a single pass over the
// label volume, accumulating voxel counts, running coordinate sums for the
// centroid and running min/max per axis for the bounding box. Labels must
// be dense consecutive IDs starting at 1, as produced by the labeling
// package; accumulators are dense parallel arrays indexed by label.
//
// pixelSize is the physical voxel edge length in meters. The returned
// slice is ordered by ID. An all-background volume yields no particles.
func Aggregate(ctx context.Context, vol *models.LabelVolume, numLabels int32, pixelSize float64) ([]models.Particle, error) {
	n := int(numLabels)
	counts := make([]int64, n+1)
	sumX := make([]int64, n+1)
	sumY := make([]int64, n+1)
	sumZ := make([]int64, n+1)
	bounds := make([]models.Box3i, n+1)

	for z := 0; z < vol.Depth; z++ {
		if z%10 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for y := 0; y < vol.Height; y++ {
			row := vol.Index(0, y, z)
			for x := 0; x < vol.Width; x++ {
				l := vol.Labels[row+x]
				if l == 0 {
					continue
				}
				xi, yi, zi := int32(x), int32(y), int32(z)
				if counts[l] == 0 {
					bounds[l] = models.Box3i{
						Min: models.Point3i{X: xi, Y: yi, Z: zi},
						Max: models.Point3i{X: xi, Y: yi, Z: zi},
					}
				} else {
					b := &bounds[l]
					if xi < b.Min.X {
						b.Min.X = xi
					}
					if xi > b.Max.X {
						b.Max.X = xi
					}
					if yi < b.Min.Y {
						b.Min.Y = yi
					}
					if yi > b.Max.Y {
						b.Max.Y = yi
					}
					if zi < b.Min.Z {
						b.Min.Z = zi
					}
					if zi > b.Max.Z {
						b.Max.Z = zi
					}
				}
				counts[l]++
				sumX[l] += int64(x)
				sumY[l] += int64(y)
				sumZ[l] += int64(z)
			}
		}
	}

	voxelVolume := pixelSize * pixelSize * pixelSize
	out := make([]models.Particle, 0, n)
	for l := 1; l <= n; l++ {
		if counts[l] == 0 {
			continue
		}
		cubicMeters := float64(counts[l]) * voxelVolume
		out = append(out, models.Particle{
			ID:                int32(l),
			VoxelCount:        counts[l],
			VolumeMicrometers: cubicMeters * cubicMetersToMicrometers,
			VolumeMillimeters: cubicMeters * cubicMetersToMillimeters,
			Center: models.Point3i{
				X: int32(sumX[l] / counts[l]),
				Y: int32(sumY[l] / counts[l]),
				Z: int32(sumZ[l] / counts[l]),
			},
			Bounds: bounds[l],
		})
	}
	return out, nil
}

// FilterSmall discards particles with fewer than minVoxels voxels. It runs
// after aggregation and never renumbers survivors: a particle's ID remains
// its label-volume value regardless of which other particles were removed.
func FilterSmall(particles []models.Particle, minVoxels int64) []models.Particle {
	if minVoxels <= 0 {
		return particles
	}
	out := make([]models.Particle, 0, len(particles))
	for _, p := range particles {
		if p.VoxelCount >= minVoxels {
			out = append(out, p)
		}
	}
	return out
}
