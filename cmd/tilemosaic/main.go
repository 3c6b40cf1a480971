package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb"

	"github.com/handiism/tile-mosaic/internal/config"
	"github.com/handiism/tile-mosaic/internal/download"
	"github.com/handiism/tile-mosaic/internal/grid"
	"github.com/handiism/tile-mosaic/internal/logging"
	"github.com/handiism/tile-mosaic/internal/model"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Command line flags
	var (
		urlFlag     = flag.String("url", "", "Tile URL template with {z}, {x} and {y} placeholders")
		bboxFlag    = flag.String("bbox", "", "Bounding box as minLon,minLat,maxLon,maxLat")
		gridFlag    = flag.String("grid", "", "GeoJSON FeatureCollection; one mosaic per feature")
		zoomFlag    = flag.Int("zoom", 0, "Zoom level (overrides config)")
		workersFlag = flag.Int("workers", 0, "Maximum concurrent tile requests (overrides config)")
		outputFlag  = flag.String("output", "", "Output directory (overrides config)")
		nameFlag    = flag.String("name", "", "File name format, placeholders {xmin} {xmax} {ymin} {ymax} {z}")
		timeoutFlag = flag.Duration("timeout", 0, "Per-tile request timeout (overrides config)")
		retryFlag   = flag.Int("retries", 0, "Extra attempts per failed tile (overrides config)")
		ratioFlag   = flag.Float64("max-failure-ratio", 0, "Fail the job when more than this share of tiles fail (0 disables)")
		configFlag  = flag.String("config", "", "Path to config file")
		envFlag     = flag.String("env", ".env", "Path to dotenv file")
		verboseFlag = flag.Bool("verbose", false, "Show verbose output")
		jsonFlag    = flag.Bool("log-json", false, "Write logs as JSON")
		dryRunFlag  = flag.Bool("dry-run", false, "Resolve tile ranges without downloading")
	)

	flag.Parse()

	if *bboxFlag == "" && *gridFlag == "" {
		fmt.Println("Tile Mosaic - Merge map tiles into a GeoTIFF")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  tilemosaic -url <template> -bbox <minLon,minLat,maxLon,maxLat> [options]")
		fmt.Println("  tilemosaic -url <template> -grid <cells.geojson> [options]")
		fmt.Println()
		fmt.Println("For interactive mode, use: tilemosaic-tui")
		fmt.Println()
		flag.PrintDefaults()
		return 1
	}

	log := logging.New(os.Stderr, *verboseFlag, !*jsonFlag)

	// Load config
	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			return 1
		}
	}
	if err := settings.ApplyEnv(*envFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading environment: %v\n", err)
		return 1
	}

	// Apply flags that were set explicitly
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			settings.TileURLTemplate = *urlFlag
		case "zoom":
			settings.Zoom = *zoomFlag
		case "workers":
			settings.MaxConcurrentTiles = *workersFlag
		case "output":
			settings.OutputDir = *outputFlag
		case "name":
			settings.FileNameFormat = *nameFlag
		case "timeout":
			settings.RequestTimeoutSeconds = timeoutFlag.Seconds()
		case "retries":
			settings.DownloadMaxRetries = *retryFlag
		case "max-failure-ratio":
			settings.MaxFailureRatio = *ratioFlag
		}
	})
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid settings: %v\n", err)
		return 1
	}

	bounds, err := loadBounds(*bboxFlag, *gridFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Handle interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := download.NewManager(settings, log, progressPrinter(*verboseFlag))

	fmt.Println("Tile Mosaic")
	fmt.Println("----------------------------------------")

	start := time.Now()
	failed := 0
	for i, bound := range bounds {
		if len(bounds) > 1 {
			fmt.Printf("\n[%d/%d] %v\n", i+1, len(bounds), bound)
		}

		job, err := model.NewJob(settings.TileURLTemplate, bound, settings.Zoom,
			settings.MaxConcurrentTiles, settings.ToPathConfig())
		if err != nil {
			log.Error().Err(err).Msg("invalid extent")
			failed++
			continue
		}

		if *dryRunFlag {
			r := job.Range
			fmt.Printf("   x %d-%d, y %d-%d, z %d: %d tiles, %dx%d px -> %s\n",
				r.MinCol, r.MaxCol, r.MinRow, r.MaxRow, r.Zoom, r.Count(), r.Width(), r.Height(), job.OutputPath)
			continue
		}

		res, err := manager.Run(ctx, job)
		if ctx.Err() != nil {
			fmt.Println("\nCancelled.")
			return 130
		}
		if err != nil {
			log.Error().Err(err).Str("path", job.OutputPath).Msg("job failed")
			failed++
			continue
		}
		fmt.Printf("Time taken: %s\n", res.Elapsed.Round(time.Millisecond))
	}

	if *dryRunFlag {
		fmt.Println("\n[Dry run - not downloading]")
	}
	if len(bounds) > 1 {
		fmt.Printf("\nProcessed %d extents in %s\n", len(bounds), time.Since(start).Round(time.Millisecond))
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// loadBounds returns the single bbox, or every cell of the grid file.
func loadBounds(bbox, gridPath string) ([]orb.Bound, error) {
	if bbox != "" && gridPath != "" {
		return nil, errors.New("use either -bbox or -grid, not both")
	}
	if gridPath != "" {
		return grid.Load(gridPath)
	}
	b, err := model.ParseBound(bbox)
	if err != nil {
		return nil, err
	}
	return []orb.Bound{b}, nil
}

// progressPrinter renders job events on stdout. Tile events update a single
// counter line unless verbose.
func progressPrinter(verbose bool) func(download.ProgressEvent) {
	return func(event download.ProgressEvent) {
		switch event.Level {
		case download.LevelVerbose, download.LevelWarning:
			if verbose {
				fmt.Printf("   [%d/%d] %s\n", event.Done, event.Total, event.Message)
				return
			}
			fmt.Printf("\r   %d/%d tiles", event.Done, event.Total)
			if event.Done == event.Total {
				fmt.Println()
			}
			return
		}

		prefix := ""
		switch event.Level {
		case download.LevelError:
			prefix = "x "
		case download.LevelSuccess:
			prefix = "+ "
		default:
			prefix = "> "
		}
		fmt.Println(prefix + event.Message)
	}
}
