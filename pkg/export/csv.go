// Package export writes flat particle tables for downstream analysis tools.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"ctparticles/internal/models"
)

// csvHeader is the column layout of the particle table.
var csvHeader = []string{
	"ID", "VoxelCount", "VolumeMicrometers", "VolumeMillimeters",
	"CenterX", "CenterY", "CenterZ",
	"MinX", "MinY", "MinZ", "MaxX", "MaxY", "MaxZ",
	"Width", "Height", "Depth",
}

// WriteCSV writes one row per particle, with derived bounding-box extents
// in the trailing columns.
func WriteCSV(w io.Writer, particles []models.Particle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, p := range particles {
		row := []string{
			strconv.FormatInt(int64(p.ID), 10),
			strconv.FormatInt(p.VoxelCount, 10),
			strconv.FormatFloat(p.VolumeMicrometers, 'g', -1, 64),
			strconv.FormatFloat(p.VolumeMillimeters, 'g', -1, 64),
			strconv.FormatInt(int64(p.Center.X), 10),
			strconv.FormatInt(int64(p.Center.Y), 10),
			strconv.FormatInt(int64(p.Center.Z), 10),
			strconv.FormatInt(int64(p.Bounds.Min.X), 10),
			strconv.FormatInt(int64(p.Bounds.Min.Y), 10),
			strconv.FormatInt(int64(p.Bounds.Min.Z), 10),
			strconv.FormatInt(int64(p.Bounds.Max.X), 10),
			strconv.FormatInt(int64(p.Bounds.Max.Y), 10),
			strconv.FormatInt(int64(p.Bounds.Max.Z), 10),
			strconv.FormatInt(int64(p.Bounds.Width()), 10),
			strconv.FormatInt(int64(p.Bounds.Height()), 10),
			strconv.FormatInt(int64(p.Bounds.Depth()), 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write particle %d: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the particle table to path.
func WriteCSVFile(path string, particles []models.Particle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, particles); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
