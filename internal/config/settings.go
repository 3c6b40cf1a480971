package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/handiism/tile-mosaic/internal/fetch"
	"github.com/handiism/tile-mosaic/internal/model"
	"github.com/handiism/tile-mosaic/internal/tile"
)

// Settings holds all configuration options.
type Settings struct {
	// Source settings
	TileURLTemplate string `json:"tile_url_template"`
	Zoom            int    `json:"zoom"`
	UserAgent       string `json:"user_agent"`

	// Download settings
	MaxConcurrentTiles    int     `json:"max_concurrent_tiles"`
	RequestTimeoutSeconds float64 `json:"request_timeout_seconds"`
	DownloadMaxRetries    int     `json:"download_max_retries"`
	DownloadRetryCooldown float64 `json:"download_retry_cooldown"`
	DownloadRetryExponent float64 `json:"download_retry_exponent"`
	MaxFailureRatio       float64 `json:"max_failure_ratio"`

	// Output settings
	OutputDir      string `json:"output_dir"`
	FileNameFormat string `json:"file_name_format"`
}

// Environment variables read by ApplyEnv.
const (
	EnvTileURLTemplate    = "TILEMOSAIC_URL"
	EnvZoom               = "TILEMOSAIC_ZOOM"
	EnvUserAgent          = "TILEMOSAIC_USER_AGENT"
	EnvMaxConcurrentTiles = "TILEMOSAIC_WORKERS"
	EnvRequestTimeout     = "TILEMOSAIC_TIMEOUT"
	EnvMaxRetries         = "TILEMOSAIC_MAX_RETRIES"
	EnvMaxFailureRatio    = "TILEMOSAIC_MAX_FAILURE_RATIO"
	EnvOutputDir          = "TILEMOSAIC_OUTPUT_DIR"
	EnvFileNameFormat     = "TILEMOSAIC_FILE_NAME_FORMAT"
)

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		TileURLTemplate: "",
		Zoom:            16,
		UserAgent:       "tile-mosaic",

		MaxConcurrentTiles:    100,
		RequestTimeoutSeconds: 30,
		DownloadMaxRetries:    0,
		DownloadRetryCooldown: 0.2,
		DownloadRetryExponent: 4.0,
		MaxFailureRatio:       0,

		OutputDir:      "output",
		FileNameFormat: model.DefaultFileNameFormat,
	}
}

// Load reads settings from a JSON file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyEnv loads the given dotenv files (missing files are skipped) and then
// overrides settings from TILEMOSAIC_* environment variables. Variables that
// are already set in the process environment take precedence over dotenv files.
func (s *Settings) ApplyEnv(dotenvFiles ...string) error {
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	var errs []error
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	setString(EnvTileURLTemplate, &s.TileURLTemplate)
	setInt(EnvZoom, &s.Zoom)
	setString(EnvUserAgent, &s.UserAgent)
	setInt(EnvMaxConcurrentTiles, &s.MaxConcurrentTiles)
	setFloat(EnvRequestTimeout, &s.RequestTimeoutSeconds)
	setInt(EnvMaxRetries, &s.DownloadMaxRetries)
	setFloat(EnvMaxFailureRatio, &s.MaxFailureRatio)
	setString(EnvOutputDir, &s.OutputDir)
	setString(EnvFileNameFormat, &s.FileNameFormat)

	return errors.Join(errs...)
}

// Validate checks the settings needed to run a job.
func (s *Settings) Validate() error {
	var errs []error
	if err := fetch.ValidateTemplate(s.TileURLTemplate); err != nil {
		errs = append(errs, err)
	}
	if s.Zoom < 0 || s.Zoom > tile.MaxZoom {
		errs = append(errs, fmt.Errorf("zoom %d out of range [0, %d]", s.Zoom, tile.MaxZoom))
	}
	if s.MaxConcurrentTiles <= 0 {
		errs = append(errs, fmt.Errorf("max_concurrent_tiles must be positive, got %d", s.MaxConcurrentTiles))
	}
	if s.DownloadMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("download_max_retries must not be negative, got %d", s.DownloadMaxRetries))
	}
	if s.MaxFailureRatio < 0 || s.MaxFailureRatio > 1 {
		errs = append(errs, fmt.Errorf("max_failure_ratio must be within [0, 1], got %g", s.MaxFailureRatio))
	}
	return errors.Join(errs...)
}

// RequestTimeout returns the per-tile request deadline.
func (s *Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds * float64(time.Second))
}

// ToPathConfig converts settings to PathConfig.
func (s *Settings) ToPathConfig() *model.PathConfig {
	return &model.PathConfig{
		OutputDir:      s.OutputDir,
		FileNameFormat: s.FileNameFormat,
	}
}

// ToRetryPolicy converts settings to a fetch.RetryPolicy.
func (s *Settings) ToRetryPolicy() fetch.RetryPolicy {
	return fetch.RetryPolicy{
		MaxRetries: s.DownloadMaxRetries,
		Cooldown:   time.Duration(s.DownloadRetryCooldown * float64(time.Second)),
		Exponent:   s.DownloadRetryExponent,
	}
}
