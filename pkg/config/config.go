// Package config provides configuration loading and management for
// ctparticles. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"ctparticles/pkg/labeling"
	"ctparticles/pkg/separation"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Processing parameters
	Processing struct {
		// MaterialID selects the foreground material for separation.
		MaterialID uint8 `yaml:"materialID"`

		// NumWorkers bounds tile and kernel parallelism.
		NumWorkers int `yaml:"numWorkers"`

		// Connectivity2D is "4" or "8" for single-slice separations.
		Connectivity2D string `yaml:"connectivity2D"`

		// PixelSize is the physical voxel edge length in meters.
		PixelSize float64 `yaml:"pixelSize"`
	} `yaml:"processing"`

	// Strategy parameters for the out-of-core fallback chain.
	Strategy struct {
		// TileSize is the cubic tile edge length for chunked labeling.
		TileSize int `yaml:"tileSize"`

		// SlabDepth is the Z extent of slabs for slab labeling.
		SlabDepth int `yaml:"slabDepth"`

		// ChunkedThreshold is the voxel count forcing the chunked path.
		ChunkedThreshold int64 `yaml:"chunkedThreshold"`

		// MemoryBudgetBytes caps dense buffer allocations; 0 disables.
		MemoryBudgetBytes int64 `yaml:"memoryBudgetBytes"`
	} `yaml:"strategy"`

	// Accelerator parameters
	Accelerator struct {
		// Enabled acquires a device handle for propagation labeling.
		Enabled bool `yaml:"enabled"`

		// MemoryBytes is the device memory used for capacity estimation.
		MemoryBytes int64 `yaml:"memoryBytes"`
	} `yaml:"accelerator"`

	// Filtering parameters
	Filtering struct {
		// Enabled applies the conservative small-particle filter.
		Enabled bool `yaml:"enabled"`

		// MinVoxels2D and MinVoxels3D are the filter thresholds.
		MinVoxels2D int64 `yaml:"minVoxels2D"`
		MinVoxels3D int64 `yaml:"minVoxels3D"`
	} `yaml:"filtering"`

	// Output parameters
	Output struct {
		// CSVFile is the particle table destination; empty skips it.
		CSVFile string `yaml:"csvFile"`

		// BinaryFile is the persisted result destination; empty skips it.
		BinaryFile string `yaml:"binaryFile"`

		// Compress snappy-compresses the persisted label volume.
		Compress bool `yaml:"compress"`

		// Verbose controls the level of logging output.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.MaterialID = 1
	cfg.Processing.NumWorkers = runtime.NumCPU()
	cfg.Processing.Connectivity2D = "4"
	cfg.Processing.PixelSize = 1e-6

	cfg.Strategy.TileSize = labeling.DefaultTileSize
	cfg.Strategy.SlabDepth = labeling.DefaultSlabDepth
	cfg.Strategy.ChunkedThreshold = separation.DefaultChunkedThreshold
	cfg.Strategy.MemoryBudgetBytes = 0

	cfg.Accelerator.Enabled = true
	cfg.Accelerator.MemoryBytes = 2 << 30

	cfg.Filtering.Enabled = true
	cfg.Filtering.MinVoxels2D = separation.DefaultMinVoxels2D
	cfg.Filtering.MinVoxels3D = separation.DefaultMinVoxels3D

	cfg.Output.Compress = true
	cfg.Output.Verbose = true

	return cfg
}

// Conn2D maps the configured 2D connectivity name to the labeling rule,
// defaulting to 4-connectivity for unknown values.
func (c *Config) Conn2D() labeling.Connectivity {
	if c.Processing.Connectivity2D == "8" {
		return labeling.Conn8
	}
	return labeling.Conn4
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
