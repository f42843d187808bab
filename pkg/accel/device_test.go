package accel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctparticles/pkg/labeling"
)

func TestOpenNoMemory(t *testing.T) {
	_, err := Open(Config{})
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = Open(Config{MemoryBytes: -1})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCapacity(t *testing.T) {
	d, err := Open(Config{MemoryBytes: 1000})
	require.NoError(t, err)
	defer d.Close()
	// 60% of memory at 5 bytes per voxel.
	assert.Equal(t, int64(120), d.Capacity())

	huge, err := Open(Config{MemoryBytes: 1 << 62})
	require.NoError(t, err)
	defer huge.Close()
	assert.Equal(t, int64(1)<<31-1, huge.Capacity(), "capacity is hard-capped")
}

func TestLabelOnDevice(t *testing.T) {
	d, err := Open(Config{MemoryBytes: 1 << 20, Workers: 2})
	require.NoError(t, err)
	defer d.Close()

	// Two 4-connected components on a 4x3 slice.
	mask := []uint8{
		1, 1, 0, 1,
		0, 1, 0, 1,
		0, 0, 0, 1,
	}
	res, err := d.Label(context.Background(), mask, 4, 3, 1, labeling.Conn4)
	require.NoError(t, err)
	assert.Equal(t, int32(2), res.NumLabels)
	assert.Equal(t, res.Labels[0], res.Labels[5])
	assert.NotEqual(t, res.Labels[0], res.Labels[3])
}

func TestLabelOverCapacity(t *testing.T) {
	// 100 bytes of device memory allows 12 voxels; refuse a larger region.
	d, err := Open(Config{MemoryBytes: 100})
	require.NoError(t, err)
	defer d.Close()

	mask := make([]uint8, 4*4*4)
	_, err = d.Label(context.Background(), mask, 4, 4, 4, labeling.Conn6)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLabelAfterClose(t *testing.T) {
	d, err := Open(Config{MemoryBytes: 1 << 20})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	_, err = d.Label(context.Background(), []uint8{1}, 1, 1, 1, labeling.Conn4)
	require.ErrorIs(t, err, ErrUnavailable)
}
