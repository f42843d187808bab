package serialization

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctparticles/internal/models"
)

func sampleResult() *models.SeparationResult {
	vol := models.NewLabelVolume(6, 5, 4)
	// Two components plus a long background stretch to exercise runs.
	for x := 1; x <= 3; x++ {
		vol.Labels[vol.Index(x, 1, 0)] = 1
		vol.Labels[vol.Index(x, 2, 0)] = 1
	}
	vol.Labels[vol.Index(5, 4, 3)] = 2

	return &models.SeparationResult{
		LabelVolume: vol,
		Particles: []models.Particle{
			{
				ID:                1,
				VoxelCount:        6,
				VolumeMicrometers: 6e-0,
				VolumeMillimeters: 6e-9,
				Center:            models.Point3i{X: 2, Y: 1, Z: 0},
				Bounds: models.Box3i{
					Min: models.Point3i{X: 1, Y: 1, Z: 0},
					Max: models.Point3i{X: 3, Y: 2, Z: 0},
				},
			},
			{
				ID:                2,
				VoxelCount:        1,
				VolumeMicrometers: 1,
				VolumeMillimeters: 1e-9,
				Center:            models.Point3i{X: 5, Y: 4, Z: 3},
				Bounds: models.Box3i{
					Min: models.Point3i{X: 5, Y: 4, Z: 3},
					Max: models.Point3i{X: 5, Y: 4, Z: 3},
				},
			},
		},
		Is3D:         true,
		CurrentSlice: 0,
		PixelSize:    1e-6,
	}
}

func TestRoundTrip(t *testing.T) {
	for _, compression := range []Compression{Uncompressed, Snappy} {
		name := "uncompressed"
		if compression == Snappy {
			name = "snappy"
		}
		t.Run(name, func(t *testing.T) {
			want := sampleResult()
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, want, compression))

			got, err := Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, want.LabelVolume.Labels, got.LabelVolume.Labels)
			assert.Equal(t, want.LabelVolume.Width, got.LabelVolume.Width)
			assert.Equal(t, want.LabelVolume.Height, got.LabelVolume.Height)
			assert.Equal(t, want.LabelVolume.Depth, got.LabelVolume.Depth)
			assert.Equal(t, want.Is3D, got.Is3D)
			assert.Equal(t, want.CurrentSlice, got.CurrentSlice)
			assert.Equal(t, want.PixelSize, got.PixelSize)
			if diff := cmp.Diff(want.Particles, got.Particles); diff != "" {
				t.Errorf("particle list mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRoundTripFile(t *testing.T) {
	want := sampleResult()
	path := filepath.Join(t.TempDir(), "result.ctps")
	require.NoError(t, EncodeFile(path, want, Snappy))

	got, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, want.LabelVolume.Labels, got.LabelVolume.Labels)
	assert.Len(t, got.Particles, len(want.Particles))
}

func TestRoundTrip2DResult(t *testing.T) {
	vol := models.NewLabelVolume(8, 8, 1)
	vol.Labels[vol.Index(4, 4, 0)] = 1
	want := &models.SeparationResult{
		LabelVolume:  vol,
		Particles:    []models.Particle{{ID: 1, VoxelCount: 1}},
		Is3D:         false,
		CurrentSlice: 37,
		PixelSize:    2.5e-6,
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, want, Uncompressed))
	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.False(t, got.Is3D)
	assert.Equal(t, 37, got.CurrentSlice)
}

func TestDecodeBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleResult(), Uncompressed))
	data := buf.Bytes()
	data[0] = 'X'

	_, err := Decode(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrFormat)
}

func TestDecodeBadVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleResult(), Uncompressed))
	data := buf.Bytes()
	data[4] = 99

	_, err := Decode(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrVersion)
}

func TestDecodeBadCompression(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleResult(), Uncompressed))
	data := buf.Bytes()
	data[5] = 7

	_, err := Decode(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrFormat)
}

func TestDecodeTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleResult(), Uncompressed))
	data := buf.Bytes()

	// Every strict prefix must fail cleanly, never panic or succeed.
	for _, cut := range []int{0, 3, 5, 10, 20, len(data) / 2, len(data) - 1} {
		_, err := Decode(bytes.NewReader(data[:cut]))
		require.Error(t, err, "prefix of %d bytes", cut)
	}
}

func TestDecodeEmpty(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrFormat)
}

func TestRLERoundTrip(t *testing.T) {
	labels := []int32{0, 0, 0, 1, 1, 2, 0, 2, 2, 2, 2, 0}
	payload := encodeRLE(labels)
	require.Zero(t, len(payload)%8)

	got := make([]int32, len(labels))
	require.NoError(t, decodeRLE(payload, got))
	assert.Equal(t, labels, got)
}

func TestDecodeRLECoverageMismatch(t *testing.T) {
	labels := []int32{1, 1, 1, 1}
	payload := encodeRLE(labels)

	short := make([]int32, 3)
	require.ErrorIs(t, decodeRLE(payload, short), ErrFormat)
	long := make([]int32, 5)
	require.ErrorIs(t, decodeRLE(payload, long), ErrFormat)
}
