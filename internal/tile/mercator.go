package tile

import (
	"fmt"
	"math"
)

// Size is the edge length of a tile in pixels.
const Size = 256

// MaxZoom is the deepest zoom level accepted by the coordinate math.
// 2^30 tiles per axis still fits comfortably in an int on every platform.
const MaxZoom = 30

// DomainError reports geographic input that has no tile index, such as a
// latitude at or beyond a pole.
type DomainError struct {
	Lat  float64
	Lon  float64
	Zoom int
	Msg  string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("tile: invalid input lat=%g lon=%g zoom=%d: %s", e.Lat, e.Lon, e.Zoom, e.Msg)
}

// LatLonToRowCol returns the row and column of the tile containing the point
// at the given zoom level.
//
// Longitude is not wrapped; callers are expected to pass values in [-180, 180).
// Latitudes at which the Mercator projection is undefined return a *DomainError.
func LatLonToRowCol(lat, lon float64, zoom int) (row, col int, err error) {
	if zoom < 0 || zoom > MaxZoom {
		return 0, 0, &DomainError{Lat: lat, Lon: lon, Zoom: zoom, Msg: fmt.Sprintf("zoom out of range [0, %d]", MaxZoom)}
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, 0, &DomainError{Lat: lat, Lon: lon, Zoom: zoom, Msg: "coordinate is not finite"}
	}

	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180

	// log(tan(φ) + sec(φ)) diverges at the poles.
	merc := math.Log(math.Tan(latRad) + 1/math.Cos(latRad))
	if math.IsNaN(merc) || math.IsInf(merc, 0) || math.Abs(lat) >= 90 {
		return 0, 0, &DomainError{Lat: lat, Lon: lon, Zoom: zoom, Msg: "latitude outside the Mercator domain"}
	}

	x := (lon + 180) / 360 * n
	y := (1 - merc/math.Pi) / 2 * n

	return int(math.Floor(y)), int(math.Floor(x)), nil
}

// RowColToLatLon returns the latitude and longitude of the north-west corner
// of the tile at (row, col). Indices equal to 2^zoom are valid and address the
// southern or eastern edge of the grid.
func RowColToLatLon(row, col, zoom int) (lat, lon float64) {
	n := math.Exp2(float64(zoom))
	lon = float64(col)/n*360 - 180
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(row)/n)))
	lat = latRad * 180 / math.Pi
	return lat, lon
}
