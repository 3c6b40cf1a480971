// Package mosaic owns the output raster of a job.
//
// A mosaic is created once with its full size and georeferencing, receives
// one 256x256 tile per WriteTile call at a tile-aligned pixel offset, and is
// finalized by Close:
//
//	r, _ := tile.NewRange(bound, 16)
//	m, err := mosaic.Create("output/map.tif", r.Width(), r.Height(), mosaic.ForRange(r))
//	if err != nil {
//	    return err // *mosaic.CreateError
//	}
//	defer m.Close()
//
//	x, y := r.PixelOffset(c)
//	err = m.WriteTile(buf, x, y)
//
// The file is a tiled GeoTIFF whose internal tiles line up with map tiles,
// so windows that are never written cost one shared blank tile on disk.
package mosaic
