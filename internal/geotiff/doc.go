// Package geotiff writes tiled, optionally LZW-compressed GeoTIFF files.
//
// The writer is built for mosaics assembled from map tiles: every TIFF tile
// corresponds to one map tile, tiles are appended in whatever order they
// arrive, and the directory is written last.
//
//	f, _ := os.Create("out.tif")
//	tw, err := geotiff.NewTiledWriter(f, geotiff.Options{
//	    Width: 512, Height: 512, TileWidth: 256, TileHeight: 256,
//	    SamplesPerPixel: 3, Compression: geotiff.CompressionLZW,
//	    ExtraTags: geotiff.GeoTags(west, north, dx, dy, geotiff.WGS84KeyDirectory()),
//	})
//	err = tw.WriteTile(0, 0, rgb)
//	err = tw.Close()
//	err = f.Close()
package geotiff
