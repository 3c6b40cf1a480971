package model

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	ioutils "github.com/handiism/tile-mosaic/internal/io"
	"github.com/handiism/tile-mosaic/internal/tile"
)

// Job holds the parameters of one fetch-and-merge run.
//
// Job is a plain value: it is built once by the caller and passed to the
// download manager, so nothing about a run lives in package state.
//
// The output path is computed when creating a job via NewJob, using
// placeholders like {xmin}, {ymax}, {z} etc.
//
// Example:
//
//	cfg := &PathConfig{
//	    OutputDir:      "./output",
//	    FileNameFormat: "map_{xmin}-{xmax}_{ymin}-{ymax}_{z}.tif",
//	}
//	job, err := NewJob(template, bound, 16, 100, cfg)
//	// job.OutputPath = "output/map_47571-47580_29481-29489_16.tif"
type Job struct {
	// URLTemplate is the tile URL with {z}, {x} and {y} placeholders.
	URLTemplate string

	// Bound is the requested geographic extent (lon/lat degrees).
	Bound orb.Bound

	// Range is the resolved tile range covering Bound.
	Range tile.Range

	// Concurrency is the maximum number of tile requests in flight.
	Concurrency int

	// OutputPath is the computed file path of the mosaic.
	OutputPath string
}

// Zoom returns the zoom level of the job.
func (j *Job) Zoom() int { return j.Range.Zoom }

// NewJob resolves the tile range of bound at zoom and computes the output path.
//
// The pathConfig determines the output file name using placeholders:
//   - {xmin}, {xmax} - Column range (half-open)
//   - {ymin}, {ymax} - Row range (half-open)
//   - {z} - Zoom level
//
// Invalid filename characters are automatically replaced with underscores.
// A *tile.DomainError is returned when bound cannot be mapped to tiles.
func NewJob(urlTemplate string, bound orb.Bound, zoom, concurrency int, cfg *PathConfig) (*Job, error) {
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}

	r, err := tile.NewRange(bound, zoom)
	if err != nil {
		return nil, err
	}

	job := &Job{
		URLTemplate: urlTemplate,
		Bound:       bound,
		Range:       r,
		Concurrency: concurrency,
	}
	job.OutputPath = job.parseOutputPath(cfg)

	return job, nil
}

// PathConfig holds output naming settings.
//
// Example configuration:
//
//	cfg := &PathConfig{
//	    OutputDir:      "/data/mosaics",
//	    FileNameFormat: "Jute_{xmin}-{xmax}_{ymin}-{ymax}_{z}.tif",
//	}
type PathConfig struct {
	// OutputDir is the directory mosaics are written to.
	OutputDir string

	// FileNameFormat is the filename template, including extension.
	FileNameFormat string
}

// DefaultFileNameFormat names mosaics after their tile range and zoom.
const DefaultFileNameFormat = "map_{xmin}-{xmax}_{ymin}-{ymax}_{z}.tif"

// parseOutputPath computes the mosaic file path from the config template.
func (j *Job) parseOutputPath(cfg *PathConfig) string {
	format := DefaultFileNameFormat
	dir := ""
	if cfg != nil {
		if cfg.FileNameFormat != "" {
			format = cfg.FileNameFormat
		}
		dir = cfg.OutputDir
	}

	r := j.Range
	name := strings.NewReplacer(
		"{xmin}", strconv.Itoa(r.MinCol),
		"{xmax}", strconv.Itoa(r.MaxCol),
		"{ymin}", strconv.Itoa(r.MinRow),
		"{ymax}", strconv.Itoa(r.MaxRow),
		"{z}", strconv.Itoa(r.Zoom),
	).Replace(format)
	name = ioutils.SanitizeFileName(name)

	if !strings.EqualFold(filepath.Ext(name), ".tif") && !strings.EqualFold(filepath.Ext(name), ".tiff") {
		name += ".tif"
	}

	return filepath.Join(dir, name)
}
