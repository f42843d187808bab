package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctparticles/internal/models"
)

func sampleParticles() []models.Particle {
	return []models.Particle{
		{
			ID:                1,
			VoxelCount:        9,
			VolumeMicrometers: 9,
			VolumeMillimeters: 9e-9,
			Center:            models.Point3i{X: 3, Y: 3, Z: 0},
			Bounds: models.Box3i{
				Min: models.Point3i{X: 2, Y: 2, Z: 0},
				Max: models.Point3i{X: 4, Y: 4, Z: 0},
			},
		},
		{
			ID:                2,
			VoxelCount:        40,
			VolumeMicrometers: 40,
			VolumeMillimeters: 4e-8,
			Center:            models.Point3i{X: 10, Y: 7, Z: 5},
			Bounds: models.Box3i{
				Min: models.Point3i{X: 8, Y: 6, Z: 5},
				Max: models.Point3i{X: 12, Y: 9, Z: 6},
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleParticles()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"ID,VoxelCount,VolumeMicrometers,VolumeMillimeters,"+
			"CenterX,CenterY,CenterZ,MinX,MinY,MinZ,MaxX,MaxY,MaxZ,"+
			"Width,Height,Depth",
		lines[0])
	assert.Equal(t, "1,9,9,9e-09,3,3,0,2,2,0,4,4,0,3,3,1", lines[1])
	assert.Equal(t, "2,40,40,4e-08,10,7,5,8,6,5,12,9,6,5,4,2", lines[2])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1, "header only")
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "particles.csv")
	require.NoError(t, WriteCSVFile(path, sampleParticles()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleParticles()))
	assert.Equal(t, buf.String(), string(data))
}
