package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"ctparticles/internal/models"
	"ctparticles/pkg/accel"
	"ctparticles/pkg/config"
	"ctparticles/pkg/export"
	"ctparticles/pkg/particles"
	"ctparticles/pkg/separation"
	"ctparticles/pkg/serialization"
	"ctparticles/pkg/volume"
)

func main() {
	// Parse command line arguments
	inputFile := flag.String("input", "", "Raw 8-bit label volume file (one material ID per voxel)")
	width := flag.Int("width", 0, "Volume width in voxels")
	height := flag.Int("height", 0, "Volume height in voxels")
	depth := flag.Int("depth", 0, "Volume depth in voxels")
	material := flag.Int("material", -1, "Foreground material ID (default: from config)")
	pixelSize := flag.Float64("pixelsize", 0, "Voxel edge length in meters (default: from config)")
	sliceIdx := flag.Int("slice", -1, "Separate only this Z slice instead of the full volume")
	csvFile := flag.String("csv", "", "Output CSV particle table")
	outFile := flag.String("out", "", "Output binary separation result")
	configPath := flag.String("config", "ctparticles.yaml", "Configuration file")
	workers := flag.Int("workers", 0, "Number of parallel workers (default: from config)")
	noAccel := flag.Bool("no-accel", false, "Disable the accelerator path")
	flag.Parse()

	// Validate inputs
	if *inputFile == "" || *width <= 0 || *height <= 0 || *depth <= 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *material >= 0 {
		cfg.Processing.MaterialID = uint8(*material)
	}
	if *pixelSize > 0 {
		cfg.Processing.PixelSize = *pixelSize
	}
	if *workers > 0 {
		cfg.Processing.NumWorkers = *workers
	}
	if *csvFile != "" {
		cfg.Output.CSVFile = *csvFile
	}
	if *outFile != "" {
		cfg.Output.BinaryFile = *outFile
	}

	fmt.Println("================================")
	fmt.Println("CTPARTICLES - CONNECTED-COMPONENT PARTICLE EXTRACTION FOR MICRO-CT VOLUMES")
	fmt.Println("================================")

	// Load the raw label volume
	data, err := os.ReadFile(*inputFile)
	if err != nil {
		log.Fatalf("Failed to read input volume: %v", err)
	}
	src, err := volume.NewDense(data, *width, *height, *depth, cfg.Processing.PixelSize)
	if err != nil {
		log.Fatalf("Invalid input volume: %v", err)
	}
	fmt.Printf("Loaded %dx%dx%d volume (%d voxels), material %d, pixel size %.3g m\n",
		*width, *height, *depth, *width**height**depth,
		cfg.Processing.MaterialID, cfg.Processing.PixelSize)

	// Acquire the accelerator handle for the duration of the run; without
	// it the separator runs CPU-only.
	var device *accel.Device
	if cfg.Accelerator.Enabled && !*noAccel {
		device, err = accel.Open(accel.Config{
			MemoryBytes: cfg.Accelerator.MemoryBytes,
			Workers:     cfg.Processing.NumWorkers,
		})
		if err != nil {
			log.Printf("Accelerator unavailable (%v), continuing on CPU", err)
		} else {
			defer device.Close()
		}
	}

	sep := separation.NewSeparator(src, device, separation.Params{
		MaterialID:        cfg.Processing.MaterialID,
		Connectivity2D:    cfg.Conn2D(),
		TileSize:          cfg.Strategy.TileSize,
		SlabDepth:         cfg.Strategy.SlabDepth,
		ChunkedThreshold:  cfg.Strategy.ChunkedThreshold,
		FilterEnabled:     cfg.Filtering.Enabled,
		MinVoxels2D:       cfg.Filtering.MinVoxels2D,
		MinVoxels3D:       cfg.Filtering.MinVoxels3D,
		NumWorkers:        cfg.Processing.NumWorkers,
		MemoryBudgetBytes: cfg.Strategy.MemoryBudgetBytes,
		Progress: func(stage string, fraction float64) {
			if cfg.Output.Verbose {
				fmt.Printf("\r%s: %.0f%% complete", stage, fraction*100)
			}
		},
	})

	// Ctrl-C cancels the separation cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Starting particle separation...")
	startTime := time.Now()
	result, err := run(ctx, sep, *sliceIdx)
	fmt.Println()
	if err != nil {
		if separation.IsCancelled(err) {
			log.Fatalf("Separation cancelled after %.2f seconds", time.Since(startTime).Seconds())
		}
		log.Fatalf("Separation failed: %v", err)
	}
	processingTime := time.Since(startTime)

	// Display the size distribution of the extracted particles
	summary := particles.Summarize(result.Particles)
	fmt.Printf("\nSeparation completed successfully in %.2f seconds!\n\n", processingTime.Seconds())
	fmt.Printf("Particle statistics:\n")
	fmt.Printf("====================\n")
	fmt.Printf("Particles found: %d\n", summary.Count)
	fmt.Printf("Total foreground voxels: %d\n", summary.TotalVoxels)
	fmt.Printf("Total volume: %.6g mm3\n", summary.TotalVolume)
	fmt.Printf("Mean volume: %.6g mm3 (stddev %.6g)\n", summary.MeanVolume, summary.StdDevVolume)
	fmt.Printf("Median volume: %.6g mm3 (P10 %.6g, P90 %.6g)\n",
		summary.MedianVolume, summary.P10Volume, summary.P90Volume)
	fmt.Printf("Largest particle: ID %d\n", summary.LargestID)

	if cfg.Output.CSVFile != "" {
		if err := export.WriteCSVFile(cfg.Output.CSVFile, result.Particles); err != nil {
			log.Fatalf("Failed to write CSV: %v", err)
		}
		fmt.Printf("\nParticle table saved to: %s\n", cfg.Output.CSVFile)
	}

	if cfg.Output.BinaryFile != "" {
		compression := serialization.Uncompressed
		if cfg.Output.Compress {
			compression = serialization.Snappy
		}
		if err := serialization.EncodeFile(cfg.Output.BinaryFile, result, compression); err != nil {
			log.Fatalf("Failed to write binary result: %v", err)
		}
		fmt.Printf("Separation result saved to: %s\n", cfg.Output.BinaryFile)
	}
}

// run dispatches to slice or full-volume separation.
func run(ctx context.Context, sep *separation.Separator, sliceIdx int) (*models.SeparationResult, error) {
	if sliceIdx >= 0 {
		return sep.SeparateSlice(ctx, sliceIdx)
	}
	return sep.SeparateVolume(ctx)
}
