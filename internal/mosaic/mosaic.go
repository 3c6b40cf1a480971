package mosaic

import (
	"errors"
	"fmt"
	"os"

	"github.com/handiism/tile-mosaic/internal/geotiff"
	"github.com/handiism/tile-mosaic/internal/tile"
)

// CreateError reports an output artifact that could not be created.
type CreateError struct {
	Path string
	Err  error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("create mosaic %s: %v", e.Path, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// WindowError reports a tile placement outside the mosaic or off the tile grid.
// It always indicates a bug in the caller's offset arithmetic.
type WindowError struct {
	X, Y          int
	Width, Height int
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("tile window at (%d, %d) does not fit a %dx%d mosaic on the %d-pixel grid",
		e.X, e.Y, e.Width, e.Height, tile.Size)
}

// Mosaic is an open GeoTIFF being assembled from tiles.
//
// A Mosaic is not safe for concurrent use: callers serialize WriteTile calls.
type Mosaic struct {
	path      string
	file      *os.File
	tw        *geotiff.TiledWriter
	width     int
	height    int
	transform GeoTransform
	scratch   []byte
	closed    bool
}

// Create allocates a 3-band, 8-bit, LZW-compressed GeoTIFF at path with the
// given size and transform, tagged as WGS84. An existing file is overwritten.
// Width and height must be positive multiples of the tile size.
func Create(path string, width, height int, gt GeoTransform) (*Mosaic, error) {
	if width <= 0 || height <= 0 || width%tile.Size != 0 || height%tile.Size != 0 {
		return nil, &CreateError{Path: path, Err: fmt.Errorf("invalid dimensions %dx%d", width, height)}
	}

	opts := geotiff.Options{
		Width:           width,
		Height:          height,
		TileWidth:       tile.Size,
		TileHeight:      tile.Size,
		SamplesPerPixel: tile.Bands,
		Compression:     geotiff.CompressionLZW,
		ExtraTags:       geoTags(gt),
	}
	if err := opts.Validate(); err != nil {
		return nil, &CreateError{Path: path, Err: err}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, &CreateError{Path: path, Err: err}
	}

	tw, err := geotiff.NewTiledWriter(f, opts)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, &CreateError{Path: path, Err: err}
	}

	return &Mosaic{
		path:      path,
		file:      f,
		tw:        tw,
		width:     width,
		height:    height,
		transform: gt,
		scratch:   make([]byte, tile.Size*tile.Size*tile.Bands),
	}, nil
}

func geoTags(gt GeoTransform) map[uint16]interface{} {
	tags := geotiff.GeoTags(gt.C, gt.F, gt.A, -gt.E, geotiff.WGS84KeyDirectory())
	tags[geotiff.TagType_Software] = "tile-mosaic"
	return tags
}

// Path returns the file path of the mosaic.
func (m *Mosaic) Path() string { return m.path }

// Width returns the mosaic width in pixels.
func (m *Mosaic) Width() int { return m.width }

// Height returns the mosaic height in pixels.
func (m *Mosaic) Height() int { return m.height }

// Transform returns the georeferencing of the mosaic.
func (m *Mosaic) Transform() GeoTransform { return m.transform }

// WriteTile places buf in the 256x256 window whose top-left pixel is
// (colOffset, rowOffset). Offsets must be tile aligned and inside the mosaic,
// otherwise a *WindowError is returned.
func (m *Mosaic) WriteTile(buf *tile.PixelBuffer, colOffset, rowOffset int) error {
	if m.closed {
		return fmt.Errorf("write tile to %s: %w", m.path, geotiff.ErrClosed)
	}
	if colOffset < 0 || rowOffset < 0 ||
		colOffset%tile.Size != 0 || rowOffset%tile.Size != 0 ||
		colOffset+tile.Size > m.width || rowOffset+tile.Size > m.height {
		return &WindowError{X: colOffset, Y: rowOffset, Width: m.width, Height: m.height}
	}

	// Band-major to pixel-interleaved.
	plane := tile.Size * tile.Size
	for i := 0; i < plane; i++ {
		m.scratch[i*3] = buf.Pix[i]
		m.scratch[i*3+1] = buf.Pix[plane+i]
		m.scratch[i*3+2] = buf.Pix[2*plane+i]
	}

	if err := m.tw.WriteTile(colOffset/tile.Size, rowOffset/tile.Size, m.scratch); err != nil {
		return fmt.Errorf("write tile to %s: %w", m.path, err)
	}
	return nil
}

// Close finalizes the GeoTIFF and closes the file. Windows that were never
// written read back as zero. Close is safe to call more than once; only the
// first call has an effect.
func (m *Mosaic) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	twErr := m.tw.Close()
	fileErr := m.file.Close()
	if err := errors.Join(twErr, fileErr); err != nil {
		return fmt.Errorf("finalize mosaic %s: %w", m.path, err)
	}
	return nil
}
