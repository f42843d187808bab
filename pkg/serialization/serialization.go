// Package serialization persists separation results in a fixed binary
// layout: a magic/version header, the label volume as run-length encoded
// pairs over the z-major flattening, and fixed-schema particle records.
// The RLE payload may be snappy-compressed. All integers are little-endian.
package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/golang/snappy"

	"ctparticles/internal/models"
)

// Sentinel errors for persisted-file validation. Header magic or version
// mismatch is reported before any record is trusted; callers must not
// attempt partial recovery.
var (
	// ErrFormat indicates a corrupt or truncated file.
	ErrFormat = errors.New("serialization: invalid file format")
	// ErrVersion indicates an unsupported format version.
	ErrVersion = errors.New("serialization: unsupported format version")
)

// Compression selects the codec applied to the RLE payload, following the
// format-byte convention of block-storage serializers.
type Compression uint8

const (
	// Uncompressed stores the RLE payload as is.
	Uncompressed Compression = 0
	// Snappy compresses the RLE payload with snappy.
	Snappy Compression = 1
)

var magic = [4]byte{'C', 'T', 'P', 'S'}

const formatVersion = 1

// Encode writes a separation result to w.
func Encode(w io.Writer, res *models.SeparationResult, compression Compression) error {
	if compression != Uncompressed && compression != Snappy {
		return fmt.Errorf("%w: unknown compression %d", ErrFormat, compression)
	}
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(magic[:]); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := bw.WriteByte(formatVersion); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := bw.WriteByte(byte(compression)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	vol := res.LabelVolume
	hdr := fileHeader{
		Width:         int32(vol.Width),
		Height:        int32(vol.Height),
		Depth:         int32(vol.Depth),
		ParticleCount: int32(len(res.Particles)),
		Is3D:          res.Is3D,
		CurrentSlice:  int32(res.CurrentSlice),
		PixelSize:     res.PixelSize,
	}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	payload := encodeRLE(vol.Labels)
	if compression == Snappy {
		payload = snappy.Encode(nil, payload)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(payload))); err != nil {
		return fmt.Errorf("failed to write label volume: %w", err)
	}
	if _, err := bw.Write(payload); err != nil {
		return fmt.Errorf("failed to write label volume: %w", err)
	}

	for _, p := range res.Particles {
		rec, err := particleRecord(p)
		if err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("failed to write particle %d: %w", p.ID, err)
		}
	}
	return bw.Flush()
}

// Decode reads a separation result from r, validating the header before
// trusting any record.
func Decode(r io.Reader) (*models.SeparationResult, error) {
	br := bufio.NewReader(r)

	var gotMagic [4]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrFormat)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, gotMagic[:])
	}
	version, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: short header", ErrFormat)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrVersion, version)
	}
	compByte, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: short header", ErrFormat)
	}
	compression := Compression(compByte)
	if compression != Uncompressed && compression != Snappy {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrFormat, compByte)
	}

	var hdr fileHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrFormat)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 || hdr.Depth <= 0 || hdr.ParticleCount < 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%dx%d, %d particles",
			ErrFormat, hdr.Width, hdr.Height, hdr.Depth, hdr.ParticleCount)
	}

	var payloadLen uint32
	if err := binary.Read(br, binary.LittleEndian, &payloadLen); err != nil {
		return nil, fmt.Errorf("%w: truncated label volume", ErrFormat)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(br, payload); err != nil {
		return nil, fmt.Errorf("%w: truncated label volume", ErrFormat)
	}
	if compression == Snappy {
		payload, err = snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt compressed payload", ErrFormat)
		}
	}

	vol := models.NewLabelVolume(int(hdr.Width), int(hdr.Height), int(hdr.Depth))
	if err := decodeRLE(payload, vol.Labels); err != nil {
		return nil, err
	}

	particles := make([]models.Particle, hdr.ParticleCount)
	for i := range particles {
		var rec record
		if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("%w: truncated particle records", ErrFormat)
		}
		particles[i] = rec.particle()
	}

	return &models.SeparationResult{
		LabelVolume:  vol,
		Particles:    particles,
		Is3D:         hdr.Is3D,
		CurrentSlice: int(hdr.CurrentSlice),
		PixelSize:    hdr.PixelSize,
	}, nil
}

// EncodeFile writes a separation result to path.
func EncodeFile(path string, res *models.SeparationResult, compression Compression) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Encode(f, res, compression); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DecodeFile reads a separation result from path.
func DecodeFile(path string) (*models.SeparationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// fileHeader is the fixed header following the magic, version and
// compression bytes.
type fileHeader struct {
	Width         int32
	Height        int32
	Depth         int32
	ParticleCount int32
	Is3D          bool
	CurrentSlice  int32
	PixelSize     float64
}

// encodeRLE packs the flattened labels into (value, runLength) int32 pairs.
func encodeRLE(labels []int32) []byte {
	var buf bytes.Buffer
	var scratch [8]byte
	i := 0
	for i < len(labels) {
		v := labels[i]
		run := 1
		for i+run < len(labels) && labels[i+run] == v && run < math.MaxInt32 {
			run++
		}
		binary.LittleEndian.PutUint32(scratch[0:4], uint32(v))
		binary.LittleEndian.PutUint32(scratch[4:8], uint32(run))
		buf.Write(scratch[:])
		i += run
	}
	return buf.Bytes()
}

// decodeRLE unpacks (value, runLength) pairs into dst, whose length defines
// the expected voxel count.
func decodeRLE(payload []byte, dst []int32) error {
	if len(payload)%8 != 0 {
		return fmt.Errorf("%w: RLE payload not a multiple of 8 bytes", ErrFormat)
	}
	pos := 0
	for off := 0; off < len(payload); off += 8 {
		v := int32(binary.LittleEndian.Uint32(payload[off : off+4]))
		run := int32(binary.LittleEndian.Uint32(payload[off+4 : off+8]))
		if v < 0 || run <= 0 || pos+int(run) > len(dst) {
			return fmt.Errorf("%w: invalid RLE run (value %d, length %d)", ErrFormat, v, run)
		}
		for j := 0; j < int(run); j++ {
			dst[pos+j] = v
		}
		pos += int(run)
	}
	if pos != len(dst) {
		return fmt.Errorf("%w: RLE covers %d of %d voxels", ErrFormat, pos, len(dst))
	}
	return nil
}

// record is the fixed on-disk particle schema.
type record struct {
	ID                int32
	VoxelCount        int32
	VolumeMicrometers float64
	VolumeMillimeters float64
	CenterX           int32
	CenterY           int32
	CenterZ           int32
	MinX, MinY, MinZ  int32
	MaxX, MaxY, MaxZ  int32
}

func particleRecord(p models.Particle) (record, error) {
	if p.VoxelCount > math.MaxInt32 {
		return record{}, fmt.Errorf("%w: particle %d voxel count %d overflows record", ErrFormat, p.ID, p.VoxelCount)
	}
	return record{
		ID:                p.ID,
		VoxelCount:        int32(p.VoxelCount),
		VolumeMicrometers: p.VolumeMicrometers,
		VolumeMillimeters: p.VolumeMillimeters,
		CenterX:           p.Center.X,
		CenterY:           p.Center.Y,
		CenterZ:           p.Center.Z,
		MinX:              p.Bounds.Min.X,
		MinY:              p.Bounds.Min.Y,
		MinZ:              p.Bounds.Min.Z,
		MaxX:              p.Bounds.Max.X,
		MaxY:              p.Bounds.Max.Y,
		MaxZ:              p.Bounds.Max.Z,
	}, nil
}

func (r record) particle() models.Particle {
	return models.Particle{
		ID:                r.ID,
		VoxelCount:        int64(r.VoxelCount),
		VolumeMicrometers: r.VolumeMicrometers,
		VolumeMillimeters: r.VolumeMillimeters,
		Center:            models.Point3i{X: r.CenterX, Y: r.CenterY, Z: r.CenterZ},
		Bounds: models.Box3i{
			Min: models.Point3i{X: r.MinX, Y: r.MinY, Z: r.MinZ},
			Max: models.Point3i{X: r.MaxX, Y: r.MaxY, Z: r.MaxZ},
		},
	}
}
