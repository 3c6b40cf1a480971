// Package config provides configuration management for tile-mosaic.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Overrides from .env files and TILEMOSAIC_* environment variables
//   - Default configuration values
//   - Conversion to PathConfig and RetryPolicy for other packages
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Zoom 16, 100 concurrent tile requests, 30s per request
//	// Mosaics written to ./output/map_{xmin}-{xmax}_{ymin}-{ymax}_{z}.tif
//
// # Loading from File and Environment
//
//	settings, err := config.Load("/path/to/config.json")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//	err = settings.ApplyEnv(".env")
//	err = settings.Validate()
//
// # Configuration Options
//
// Settings includes options for:
//   - Tile source URL template and zoom
//   - Concurrency and per-request timeout
//   - Retry behavior (off by default)
//   - Failure threshold
//   - Output directory and file naming
package config
