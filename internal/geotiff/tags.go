package geotiff

// TIFF field types.
const (
	DataType_Byte     = 1
	DataType_ASCII    = 2
	DataType_Short    = 3
	DataType_Long     = 4
	DataType_Rational = 5
	DataType_Double   = 12
)

// Baseline and extension TIFF tags.
const (
	TagType_ImageWidth                = 256
	TagType_ImageLength               = 257
	TagType_BitsPerSample             = 258
	TagType_Compression               = 259
	TagType_PhotometricInterpretation = 262
	TagType_ImageDescription          = 270
	TagType_SamplesPerPixel           = 277
	TagType_PlanarConfiguration       = 284
	TagType_Software                  = 305
	TagType_TileWidth                 = 322
	TagType_TileLength                = 323
	TagType_TileOffsets               = 324
	TagType_TileByteCounts            = 325
	TagType_SampleFormat              = 339

	// GeoTIFF Tags
	TagType_ModelPixelScaleTag = 33550
	TagType_ModelTiepointTag   = 33922
	TagType_GeoKeyDirectoryTag = 34735
	TagType_GeoDoubleParamsTag = 34736
	TagType_GeoAsciiParamsTag  = 34737
)

// Compression schemes supported by the writer.
type Compression uint16

const (
	CompressionNone Compression = 1
	CompressionLZW  Compression = 5
)

// GeoKey identifiers and values used for geographic (lat/lon) rasters.
const (
	GeoKey_GTModelType      = 1024
	GeoKey_GTRasterType     = 1025
	GeoKey_GeographicType   = 2048
	GeoKey_GeogAngularUnits = 2054

	ModelTypeGeographic = 2
	RasterPixelIsArea   = 1
	GCS_WGS_84          = 4326
	Angular_Degree      = 9102
)

// WGS84KeyDirectory returns a GeoKeyDirectory declaring a WGS84
// geographic coordinate system with pixel-is-area rasters.
func WGS84KeyDirectory() []uint16 {
	return []uint16{
		1, 1, 0, 4, // Header: version 1.1.0, 4 keys follow
		GeoKey_GTModelType, 0, 1, ModelTypeGeographic,
		GeoKey_GTRasterType, 0, 1, RasterPixelIsArea,
		GeoKey_GeographicType, 0, 1, GCS_WGS_84,
		GeoKey_GeogAngularUnits, 0, 1, Angular_Degree,
	}
}

// GeoTags builds the GeoTIFF tags for a north-up raster whose upper-left
// corner is at (originX, originY) with square-or-not pixel sizes scaleX and
// scaleY (both positive, in CRS units).
func GeoTags(originX, originY, scaleX, scaleY float64, keys []uint16) map[uint16]interface{} {
	return map[uint16]interface{}{
		TagType_ModelPixelScaleTag: []float64{scaleX, scaleY, 0},
		TagType_ModelTiepointTag:   []float64{0, 0, 0, originX, originY, 0},
		TagType_GeoKeyDirectoryTag: keys,
	}
}
