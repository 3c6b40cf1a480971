package grid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
)

const cells = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "Jute_1"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[81.32, 17.72], [81.37, 17.72], [81.37, 17.76], [81.32, 17.76], [81.32, 17.72]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"name": "Jute_2"},
      "geometry": {"type": "Point", "coordinates": [80.5, 16.25]}
    }
  ]
}`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.geojson")
	if err := os.WriteFile(path, []byte(cells), 0644); err != nil {
		t.Fatal(err)
	}

	bounds, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []orb.Bound{
		{Min: orb.Point{81.32, 17.72}, Max: orb.Point{81.37, 17.76}},
		{Min: orb.Point{80.5, 16.25}, Max: orb.Point{80.5, 16.25}},
	}
	if len(bounds) != len(want) {
		t.Fatalf("Load() returned %d bounds, want %d", len(bounds), len(want))
	}
	for i := range want {
		if !bounds[i].Equal(want[i]) {
			t.Errorf("bounds[%d] = %v, want %v", i, bounds[i], want[i])
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "nope"},
		{"no features", `{"type": "FeatureCollection", "features": []}`},
		{"single feature", `{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [1, 2]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("Parse() should fail")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.geojson")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}
