package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/handiism/tile-mosaic/internal/config"
	"github.com/handiism/tile-mosaic/internal/logging"
	"github.com/handiism/tile-mosaic/internal/tui"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		urlFlag     = flag.String("url", "", "Tile URL template with {z}, {x} and {y} placeholders")
		zoomFlag    = flag.Int("zoom", 0, "Zoom level (overrides config)")
		workersFlag = flag.Int("workers", 0, "Maximum concurrent tile requests (overrides config)")
		outputFlag  = flag.String("output", "", "Output directory (overrides config)")
		configFlag  = flag.String("config", "", "Path to config file")
		envFlag     = flag.String("env", ".env", "Path to dotenv file")
		logFlag     = flag.String("log", "", "Write JSON logs to this file")
	)
	flag.Parse()

	// The alternate screen owns the terminal, so logs go to a file or nowhere.
	log := logging.Nop()
	if *logFlag != "" {
		f, err := os.OpenFile(*logFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			return 1
		}
		defer f.Close()
		log = logging.New(f, false, false)
	}

	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			log.Error().Err(err).Str("path", *configFlag).Msg("load config")
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			return 1
		}
	}
	if err := settings.ApplyEnv(*envFlag); err != nil {
		log.Error().Err(err).Msg("read environment")
		fmt.Fprintf(os.Stderr, "Error reading environment: %v\n", err)
		return 1
	}

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
		}
	})
	if err := settings.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid settings")
		fmt.Fprintf(os.Stderr, "Invalid settings: %v\n", err)
		return 1
	}

	if err := tui.Run(settings, log); err != nil {
		log.Error().Err(err).Msg("tui")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
