package tile

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Bands is the number of colour channels kept per tile.
const Bands = 3

// Coordinate addresses one tile in the pyramid.
type Coordinate struct {
	Zoom int
	Row  int // y
	Col  int // x
}

// Valid reports whether the coordinate lies inside the 2^zoom grid.
func (c Coordinate) Valid() bool {
	if c.Zoom < 0 || c.Zoom > MaxZoom {
		return false
	}
	n := 1 << c.Zoom
	return c.Row >= 0 && c.Row < n && c.Col >= 0 && c.Col < n
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Zoom, c.Col, c.Row)
}

// PixelBuffer holds one decoded tile as 8-bit samples in band-major order:
// all red samples row by row, then green, then blue.
type PixelBuffer struct {
	Pix [Bands * Size * Size]uint8
}

// Offset returns the index of the sample for band b at pixel (x, y).
func (p *PixelBuffer) Offset(b, x, y int) int {
	return b*Size*Size + y*Size + x
}

// At returns the RGB triple at pixel (x, y).
func (p *PixelBuffer) At(x, y int) (r, g, b uint8) {
	i := y*Size + x
	return p.Pix[i], p.Pix[Size*Size+i], p.Pix[2*Size*Size+i]
}

// Set stores the RGB triple at pixel (x, y).
func (p *PixelBuffer) Set(x, y int, r, g, b uint8) {
	i := y*Size + x
	p.Pix[i] = r
	p.Pix[Size*Size+i] = g
	p.Pix[2*Size*Size+i] = b
}

// Range is a half-open rectangle of tiles at one zoom level.
// Columns span [MinCol, MaxCol) and rows span [MinRow, MaxRow).
type Range struct {
	Zoom   int
	MinCol int
	MaxCol int
	MinRow int
	MaxRow int
}

// NewRange resolves the tile range covering bound at the given zoom.
//
// Both corners of the bound are converted to tile indices. When the corners
// share a row or column the range is widened by one on the max side so the
// mosaic is never empty on either axis. A bound that reaches past the
// Web-Mercator grid (latitudes beyond about ±85.0511 or longitude 180) is
// clipped to it; a bound entirely outside the grid is a *DomainError.
func NewRange(bound orb.Bound, zoom int) (Range, error) {
	row1, col1, err := LatLonToRowCol(bound.Min.Lat(), bound.Min.Lon(), zoom)
	if err != nil {
		return Range{}, err
	}
	row2, col2, err := LatLonToRowCol(bound.Max.Lat(), bound.Max.Lon(), zoom)
	if err != nil {
		return Range{}, err
	}

	n := 1 << zoom
	if (row1 < 0 && row2 < 0) || (row1 >= n && row2 >= n) || (col1 < 0 && col2 < 0) || (col1 >= n && col2 >= n) {
		return Range{}, &DomainError{Lat: bound.Max.Lat(), Lon: bound.Min.Lon(), Zoom: zoom, Msg: "bounding box outside the tile grid"}
	}
	row1, row2 = clampIndex(row1, n), clampIndex(row2, n)
	col1, col2 = clampIndex(col1, n), clampIndex(col2, n)

	if col1 == col2 {
		col2++
	}
	if row1 == row2 {
		row2++
	}

	r := Range{Zoom: zoom, MinCol: col1, MaxCol: col2, MinRow: row1, MaxRow: row2}
	if col1 > col2 {
		r.MinCol, r.MaxCol = col2, col1
	}
	if row1 > row2 {
		r.MinRow, r.MaxRow = row2, row1
	}
	return r, nil
}

// clampIndex limits a tile index to [0, n).
func clampIndex(i, n int) int {
	return min(max(i, 0), n-1)
}

// Cols returns the number of tile columns.
func (r Range) Cols() int { return r.MaxCol - r.MinCol }

// Rows returns the number of tile rows.
func (r Range) Rows() int { return r.MaxRow - r.MinRow }

// Count returns the number of tiles in the range.
func (r Range) Count() int { return r.Cols() * r.Rows() }

// Width returns the mosaic width in pixels.
func (r Range) Width() int { return r.Cols() * Size }

// Height returns the mosaic height in pixels.
func (r Range) Height() int { return r.Rows() * Size }

// Validate checks that the range is non-empty and lies inside the 2^zoom grid.
func (r Range) Validate() error {
	if r.Cols() <= 0 || r.Rows() <= 0 {
		return fmt.Errorf("tile: empty range cols=[%d,%d) rows=[%d,%d)", r.MinCol, r.MaxCol, r.MinRow, r.MaxRow)
	}
	first := Coordinate{Zoom: r.Zoom, Row: r.MinRow, Col: r.MinCol}
	last := Coordinate{Zoom: r.Zoom, Row: r.MaxRow - 1, Col: r.MaxCol - 1}
	if !first.Valid() || !last.Valid() {
		return fmt.Errorf("tile: range cols=[%d,%d) rows=[%d,%d) leaves the zoom %d grid", r.MinCol, r.MaxCol, r.MinRow, r.MaxRow, r.Zoom)
	}
	return nil
}

// Coordinates enumerates every tile of the range, column by column.
func (r Range) Coordinates() []Coordinate {
	coords := make([]Coordinate, 0, max(r.Count(), 0))
	for col := r.MinCol; col < r.MaxCol; col++ {
		for row := r.MinRow; row < r.MaxRow; row++ {
			coords = append(coords, Coordinate{Zoom: r.Zoom, Row: row, Col: col})
		}
	}
	return coords
}

// PixelOffset returns the pixel position of c's window inside the mosaic.
func (r Range) PixelOffset(c Coordinate) (x, y int) {
	return (c.Col - r.MinCol) * Size, (c.Row - r.MinRow) * Size
}

// Bound returns the geographic extent covered by the range, from the
// north-west corner of the first tile to the south-east corner of the last.
func (r Range) Bound() orb.Bound {
	north, west := RowColToLatLon(r.MinRow, r.MinCol, r.Zoom)
	south, east := RowColToLatLon(r.MaxRow, r.MaxCol, r.Zoom)
	return orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}}
}
