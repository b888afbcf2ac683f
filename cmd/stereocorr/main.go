package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "golang.org/x/image/tiff"

	"stereocorr/internal/models"
	"stereocorr/pkg/config"
	"stereocorr/pkg/disparity"
	"stereocorr/pkg/imgproc"
	"stereocorr/pkg/stereo"
	"stereocorr/pkg/visualization"
)

func main() {
	// Parse command line arguments
	leftPath := flag.String("left", "", "Left image (PNG, JPEG or TIFF)")
	rightPath := flag.String("right", "", "Right image (PNG, JPEG or TIFF)")
	leftMaskPath := flag.String("left-mask", "", "Left validity mask, nonzero is valid (default: image alpha)")
	rightMaskPath := flag.String("right-mask", "", "Right validity mask, nonzero is valid (default: image alpha)")
	nodata := flag.Float64("nodata", math.NaN(), "Normalised intensity treated as nodata")
	configPath := flag.String("config", "stereocorr.yaml", "Configuration file")
	output := flag.String("output", "disparity", "Output filename prefix")
	numCores := flag.Int("cores", 0, "Number of regions matched in parallel (default: from config)")
	levels := flag.Int("levels", 0, "Number of pyramid levels (default: from config)")
	debug := flag.Bool("debug", false, "Write per level debug images")
	debugDir := flag.String("debug-dir", "", "Directory for debug images (default: from config)")
	reportPath := flag.String("report", "", "Write an HTML chart of per level coverage to this file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime)

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			logger.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *leftPath == "" || *rightPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *levels > 0 {
		cfg.Pyramid.Levels = *levels
	}
	if *debug {
		cfg.Output.WriteDebugImages = true
	}
	if *debugDir != "" {
		cfg.Output.DebugDir = *debugDir
	}

	opts, err := cfg.Options()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	pre, err := cfg.PreFilter()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Output.Verbose {
		opts.Logger = logger
	}

	left, leftMask, err := loadInput(*leftPath, *leftMaskPath, *nodata)
	if err != nil {
		logger.Fatalf("Failed to load left image: %v", err)
	}
	right, rightMask, err := loadInput(*rightPath, *rightMaskPath, *nodata)
	if err != nil {
		logger.Fatalf("Failed to load right image: %v", err)
	}

	pc, err := stereo.NewPyramidCorrelator(opts)
	if err != nil {
		logger.Fatalf("Failed to create correlator: %v", err)
	}
	if cfg.Output.WriteDebugImages {
		runID := uuid.New().String()
		dir := filepath.Join(cfg.Output.DebugDir, runID)
		pc.SetDebugSink(visualization.NewDebugWriter(dir, filepath.Base(*output), left.Bounds().Size()))
		logger.Printf("Writing debug images to %s", dir)
	}
	if cfg.Output.Verbose {
		pc.SetProgressCallback(func(level, completed, total int) {
			fmt.Printf("\rLevel %d: %.1f%% complete", level, 100*float64(completed)/float64(total))
			if completed == total {
				fmt.Println()
			}
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Printf("Correlating %dx%d images, %d levels, kernel %v, %s cost",
		left.Width, left.Height, opts.PyramidLevels, opts.KernelSize, opts.CorrelatorType)
	startTime := time.Now()
	result, reports, err := pc.CorrelateWithReport(ctx, left, right, leftMask, rightMask, pre)
	if err != nil {
		logger.Fatalf("Correlation failed: %v", err)
	}
	processingTime := time.Since(startTime)

	if err := writeBinary(*output+".bin", result); err != nil {
		logger.Fatalf("Failed to write disparity map: %v", err)
	}
	if err := visualization.NewViewer(result).SaveComponents(*output); err != nil {
		logger.Printf("Warning: Failed to save disparity images: %v", err)
	}

	if *reportPath != "" {
		if err := writeReport(*reportPath, reports); err != nil {
			logger.Printf("Warning: Failed to write level report: %v", err)
		}
	}

	stats := disparity.ComputeStats(result)
	fmt.Printf("\nCorrelation completed in %.2f seconds\n", processingTime.Seconds())
	fmt.Printf("Disparity map saved to: %s.bin\n\n", *output)
	fmt.Printf("Level  Size        Regions  Skipped  Valid    Filled\n")
	for _, r := range reports {
		fmt.Printf("%-6d %-11s %-8d %-8d %6.1f%%  %d\n", r.Level, fmt.Sprintf("%dx%d", r.Width, r.Height),
			r.Regions, r.Skipped, 100*r.Coverage(), r.Filled)
	}
	fmt.Printf("\nValid pixels: %d (%.1f%%)\n", stats.Valid, 100*stats.Coverage)
	fmt.Printf("Mean disparity: (%.3f, %.3f) +/- (%.3f, %.3f)\n", stats.MeanX, stats.MeanY, stats.StdDevX, stats.StdDevY)
}

func writeReport(path string, reports []models.LevelReport) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := visualization.RenderLevelReport(file, "Pyramid correlation", reports); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// loadInput decodes an image and builds its validity mask from the alpha
// channel, an optional mask file and an optional nodata value.
func loadInput(path, maskPath string, nodata float64) (*imgproc.Image, *imgproc.Mask, error) {
	src, err := decodeFile(path)
	if err != nil {
		return nil, nil, err
	}
	img, mask := imgproc.FromImage(src)

	if maskPath != "" {
		msrc, err := decodeFile(maskPath)
		if err != nil {
			return nil, nil, err
		}
		m := imgproc.MaskFromImage(msrc)
		if !imgproc.SameSize(m.Bounds(), mask.Bounds()) {
			return nil, nil, errors.Wrapf(stereo.ErrDimensionMismatch, "mask %s is %v, image is %v", maskPath, m.Bounds().Size(), mask.Bounds().Size())
		}
		for i := range mask.Valid {
			mask.Valid[i] = mask.Valid[i] && m.Valid[i]
		}
	}

	if !math.IsNaN(nodata) {
		for i, v := range img.Pix {
			if math.Abs(v-nodata) < 1e-6 {
				mask.Valid[i] = false
			}
		}
	}
	return img, mask, nil
}

func decodeFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(bufio.NewReader(file))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return img, nil
}

// writeBinary stores the map as a little endian uint32 width and height
// followed by float32 dx, dy and valid (0 or 1) for every pixel, row by row.
func writeBinary(path string, m *disparity.Map) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeBinary(file, m); err != nil {
		file.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(file.Close(), "closing %s", path)
}

func encodeBinary(dst io.Writer, m *disparity.Map) error {
	w := bufio.NewWriter(dst)
	if err := binary.Write(w, binary.LittleEndian, [2]uint32{uint32(m.Width), uint32(m.Height)}); err != nil {
		return err
	}
	rec := make([]float32, 0, 3*len(m.Pix))
	for _, p := range m.Pix {
		if p.Valid {
			rec = append(rec, float32(p.D.X), float32(p.D.Y), 1)
		} else {
			rec = append(rec, 0, 0, 0)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
		return err
	}
	return w.Flush()
}
