// Package tile implements slippy-map tile addressing for Web-Mercator tile
// pyramids with 256-pixel tiles.
//
// # Coordinates
//
// A Coordinate addresses one tile by zoom, row (y) and column (x):
//
//	row, col, err := tile.LatLonToRowCol(17.72, 81.32, 16)
//	lat, lon := tile.RowColToLatLon(row, col, 16) // north-west corner of the tile
//
// RowColToLatLon accepts indices one past the grid edge, which is how the far
// (south-east) corner of the last tile in a range is obtained.
//
// # Ranges
//
// A Range is the half-open rectangle of tiles covering a bounding box:
//
//	r, err := tile.NewRange(orb.Bound{Min: orb.Point{81.32, 17.72}, Max: orb.Point{81.37, 17.76}}, 16)
//	fmt.Println(r.Cols(), r.Rows(), r.Count())
//
// A bounding box whose corners fall into the same row or column still yields
// a range one tile wide on that axis.
package tile
