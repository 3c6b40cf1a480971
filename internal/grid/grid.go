// Package grid reads areas of interest for batch runs.
//
// A grid file is a GeoJSON FeatureCollection. Each feature with a geometry
// becomes one job bounding box, in file order:
//
//	bounds, err := grid.Load("cells.geojson")
//	for _, b := range bounds {
//	    job, err := model.NewJob(template, b, zoom, workers, pathCfg)
//	    ...
//	}
package grid

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Load reads the GeoJSON FeatureCollection at path and returns the bounding
// box of every feature. Features without geometry are skipped.
func Load(path string) ([]orb.Bound, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	bounds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("grid %s: %w", path, err)
	}
	return bounds, nil
}

// Parse decodes a GeoJSON FeatureCollection and returns one bound per feature.
func Parse(data []byte) ([]orb.Bound, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	bounds := make([]orb.Bound, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		bounds = append(bounds, f.Geometry.Bound())
	}
	if len(bounds) == 0 {
		return nil, fmt.Errorf("no features with geometry")
	}
	return bounds, nil
}
