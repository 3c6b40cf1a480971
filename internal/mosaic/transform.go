package mosaic

import (
	"fmt"

	"github.com/handiism/tile-mosaic/internal/tile"
)

// GeoTransform is an affine map from pixel (col, row) to geographic
// (lon, lat):
//
//	lon = A*col + B*row + C
//	lat = D*col + E*row + F
//
// Mosaics are north-up, so B and D are always zero and E is negative.
type GeoTransform struct {
	A, B, C float64
	D, E, F float64
}

// FromBounds returns the transform that stretches a width x height raster
// over the given extent, with pixel (0, 0) at the north-west corner.
func FromBounds(west, south, east, north float64, width, height int) GeoTransform {
	return GeoTransform{
		A: (east - west) / float64(width),
		C: west,
		E: -(north - south) / float64(height),
		F: north,
	}
}

// ForRange derives the transform of the mosaic covering r. The south-east
// corner comes from the tile indices one past the range, i.e. the far edge of
// the last tile.
func ForRange(r tile.Range) GeoTransform {
	north, west := tile.RowColToLatLon(r.MinRow, r.MinCol, r.Zoom)
	south, east := tile.RowColToLatLon(r.MaxRow, r.MaxCol, r.Zoom)
	return FromBounds(west, south, east, north, r.Width(), r.Height())
}

// Apply maps a pixel position to longitude and latitude.
func (g GeoTransform) Apply(col, row float64) (lon, lat float64) {
	return g.A*col + g.B*row + g.C, g.D*col + g.E*row + g.F
}

func (g GeoTransform) String() string {
	return fmt.Sprintf("| %g, %g, %g|\n| %g, %g, %g|", g.A, g.B, g.C, g.D, g.E, g.F)
}
