package geotiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/hhrutter/lzw"
)

var enc = binary.LittleEndian

// ErrClosed is returned by operations on a closed TiledWriter.
var ErrClosed = errors.New("geotiff: writer closed")

// ErrTooLarge is returned for rasters that cannot fit in a classic TIFF.
var ErrTooLarge = errors.New("geotiff: raster exceeds 4 GiB classic TIFF limit")

// headerSize is the length of the classic TIFF header.
const headerSize = 8

type ifdEntry struct {
	tag      uint16
	datatype uint16
	count    uint32
	data     []byte
}

type byTag []ifdEntry

func (d byTag) Len() int           { return len(d) }
func (d byTag) Less(i, j int) bool { return d[i].tag < d[j].tag }
func (d byTag) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }

// Options describes the raster produced by a TiledWriter.
type Options struct {
	Width           int
	Height          int
	TileWidth       int
	TileHeight      int
	SamplesPerPixel int
	Compression     Compression

	// ExtraTags is a map of TagID -> value.
	// Supported value types: []uint16 (SHORT), []uint32 (LONG), []float64 (DOUBLE), string (ASCII).
	ExtraTags map[uint16]interface{}
}

// TiledWriter streams an 8-bit, chunky, tiled TIFF.
//
// Tiles may be written in any order; each is compressed and appended to the
// output as it arrives. Close writes a shared blank tile for every tile never
// written, then the image file directory, and patches the header to point at
// it. A TiledWriter is not safe for concurrent use.
type TiledWriter struct {
	w      io.WriteSeeker
	opts   Options
	across int
	down   int

	offsets []uint32
	counts  []uint32
	pos     int64
	closed  bool
}

// Validate checks opts without allocating anything. Rasters whose tile
// tables, or whose uncompressed tiles when Compression is CompressionNone,
// cannot be addressed with 32-bit offsets return ErrTooLarge.
func (o Options) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("geotiff: invalid dimensions %dx%d", o.Width, o.Height)
	}
	if o.TileWidth <= 0 || o.TileHeight <= 0 || o.TileWidth%16 != 0 || o.TileHeight%16 != 0 {
		return fmt.Errorf("geotiff: tile size %dx%d must be a positive multiple of 16", o.TileWidth, o.TileHeight)
	}
	if o.SamplesPerPixel <= 0 {
		return fmt.Errorf("geotiff: invalid samples per pixel %d", o.SamplesPerPixel)
	}
	if o.Compression != 0 && o.Compression != CompressionNone && o.Compression != CompressionLZW {
		return fmt.Errorf("geotiff: unsupported compression %d", o.Compression)
	}

	// Every tile needs a 4-byte offset and a 4-byte byte count.
	const maxTiles = (math.MaxUint32 - headerSize) / 8
	across := int64((o.Width + o.TileWidth - 1) / o.TileWidth)
	down := int64((o.Height + o.TileHeight - 1) / o.TileHeight)
	if across > maxTiles || down > maxTiles || across*down > maxTiles {
		return fmt.Errorf("%w: %dx%d tiles", ErrTooLarge, across, down)
	}
	tiles := across * down
	size := headerSize + 8*tiles
	if o.Compression == CompressionNone {
		tileBytes := int64(o.TileWidth) * int64(o.TileHeight) * int64(o.SamplesPerPixel)
		if tileBytes > math.MaxUint32 || tiles*tileBytes > math.MaxUint32 {
			return fmt.Errorf("%w: %dx%d uncompressed", ErrTooLarge, o.Width, o.Height)
		}
		size += tiles * tileBytes
	}
	if size > math.MaxUint32 {
		return fmt.Errorf("%w: %dx%d", ErrTooLarge, o.Width, o.Height)
	}
	return nil
}

// NewTiledWriter writes the TIFF header to w and returns a writer ready to
// accept tiles. w must be positioned at its start.
func NewTiledWriter(w io.WriteSeeker, opts Options) (*TiledWriter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Compression == 0 {
		opts.Compression = CompressionLZW
	}

	across := (opts.Width + opts.TileWidth - 1) / opts.TileWidth
	down := (opts.Height + opts.TileHeight - 1) / opts.TileHeight

	// LittleEndian (II), Version 42 (0x2A), First IFD Offset (patched on Close)
	header := []byte{'I', 'I', 0x2A, 0x00, 0x00, 0x00, 0x00, 0x00}
	if _, err := w.Write(header); err != nil {
		return nil, err
	}

	return &TiledWriter{
		w:       w,
		opts:    opts,
		across:  across,
		down:    down,
		offsets: make([]uint32, across*down),
		counts:  make([]uint32, across*down),
		pos:     int64(len(header)),
	}, nil
}

// TilesAcross returns the number of tile columns.
func (t *TiledWriter) TilesAcross() int { return t.across }

// TilesDown returns the number of tile rows.
func (t *TiledWriter) TilesDown() int { return t.down }

// TileBytes returns the uncompressed size of one tile.
func (t *TiledWriter) TileBytes() int {
	return t.opts.TileWidth * t.opts.TileHeight * t.opts.SamplesPerPixel
}

// WriteTile stores the chunky (pixel-interleaved) samples of the tile at
// tile column col and tile row row. Writing the same tile twice replaces it.
func (t *TiledWriter) WriteTile(col, row int, pix []byte) error {
	if t.closed {
		return ErrClosed
	}
	if col < 0 || col >= t.across || row < 0 || row >= t.down {
		return fmt.Errorf("geotiff: tile (%d, %d) outside %dx%d tile grid", col, row, t.across, t.down)
	}
	if len(pix) != t.TileBytes() {
		return fmt.Errorf("geotiff: tile has %d bytes, want %d", len(pix), t.TileBytes())
	}

	off, n, err := t.appendBlock(pix)
	if err != nil {
		return err
	}
	i := row*t.across + col
	t.offsets[i] = off
	t.counts[i] = n
	return nil
}

// Close fills unwritten tiles with zeros and writes the image file directory.
// The underlying writer is not closed.
func (t *TiledWriter) Close() error {
	if t.closed {
		return ErrClosed
	}
	t.closed = true

	var blankOff, blankLen uint32
	for i := range t.counts {
		if t.counts[i] != 0 {
			continue
		}
		if blankLen == 0 {
			var err error
			blankOff, blankLen, err = t.appendBlock(make([]byte, t.TileBytes()))
			if err != nil {
				return err
			}
		}
		t.offsets[i] = blankOff
		t.counts[i] = blankLen
	}

	return t.writeIFD()
}

func (t *TiledWriter) appendBlock(pix []byte) (uint32, uint32, error) {
	data, err := t.compress(pix)
	if err != nil {
		return 0, 0, err
	}
	if t.pos+int64(len(data)) > math.MaxUint32 {
		return 0, 0, fmt.Errorf("geotiff: output exceeds 4 GiB classic TIFF limit")
	}
	if _, err := t.w.Write(data); err != nil {
		return 0, 0, err
	}
	off := uint32(t.pos)
	t.pos += int64(len(data))
	return off, uint32(len(data)), nil
}

func (t *TiledWriter) compress(pix []byte) ([]byte, error) {
	if t.opts.Compression == CompressionNone {
		return pix, nil
	}

	var buf bytes.Buffer
	// TIFF LZW switches code width one code early.
	zw := lzw.NewWriter(&buf, true)
	if _, err := zw.Write(pix); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *TiledWriter) writeIFD() error {
	var entries []ifdEntry

	addEntry := func(tag uint16, datatype uint16, count uint32, data []byte) {
		entries = append(entries, ifdEntry{tag, datatype, count, data})
	}

	spp := t.opts.SamplesPerPixel
	bits := make([]uint16, spp)
	formats := make([]uint16, spp)
	for i := range bits {
		bits[i] = 8
		formats[i] = 1 // unsigned integer
	}
	photometric := uint16(1) // BlackIsZero
	if spp >= 3 {
		photometric = 2 // RGB
	}

	addEntry(TagType_ImageWidth, DataType_Long, 1, enc32(uint32(t.opts.Width)))
	addEntry(TagType_ImageLength, DataType_Long, 1, enc32(uint32(t.opts.Height)))
	addEntry(TagType_BitsPerSample, DataType_Short, uint32(spp), enc16s(bits))
	addEntry(TagType_Compression, DataType_Short, 1, enc16(uint16(t.opts.Compression)))
	addEntry(TagType_PhotometricInterpretation, DataType_Short, 1, enc16(photometric))
	addEntry(TagType_SamplesPerPixel, DataType_Short, 1, enc16(uint16(spp)))
	addEntry(TagType_PlanarConfiguration, DataType_Short, 1, enc16(1)) // Chunky
	addEntry(TagType_TileWidth, DataType_Short, 1, enc16(uint16(t.opts.TileWidth)))
	addEntry(TagType_TileLength, DataType_Short, 1, enc16(uint16(t.opts.TileHeight)))
	addEntry(TagType_TileOffsets, DataType_Long, uint32(len(t.offsets)), enc32s(t.offsets))
	addEntry(TagType_TileByteCounts, DataType_Long, uint32(len(t.counts)), enc32s(t.counts))
	addEntry(TagType_SampleFormat, DataType_Short, uint32(spp), enc16s(formats))

	for tag, val := range t.opts.ExtraTags {
		switch v := val.(type) {
		case []uint16:
			addEntry(tag, DataType_Short, uint32(len(v)), enc16s(v))
		case []uint32:
			addEntry(tag, DataType_Long, uint32(len(v)), enc32s(v))
		case []float64:
			addEntry(tag, DataType_Double, uint32(len(v)), encDoubles(v))
		case string:
			// ASCII needs null terminator
			b := append([]byte(v), 0)
			addEntry(tag, DataType_ASCII, uint32(len(b)), b)
		default:
			return fmt.Errorf("unsupported tag value type for tag %d", tag)
		}
	}

	sort.Sort(byTag(entries))

	// The IFD must begin on a word boundary.
	if t.pos%2 != 0 {
		if _, err := t.w.Write([]byte{0}); err != nil {
			return err
		}
		t.pos++
	}

	ifdOffset := t.pos
	ifdSize := int64(2 + 12*len(entries) + 4)
	valueDataOffset := ifdOffset + ifdSize

	var largeDataBuf bytes.Buffer
	for i := range entries {
		e := &entries[i]
		if len(e.data) <= 4 {
			continue
		}
		currentOffset := valueDataOffset + int64(largeDataBuf.Len())
		if currentOffset+int64(len(e.data)) > math.MaxUint32 {
			return fmt.Errorf("geotiff: output exceeds 4 GiB classic TIFF limit")
		}
		largeDataBuf.Write(e.data)
		if largeDataBuf.Len()%2 != 0 {
			largeDataBuf.WriteByte(0)
		}
		e.data = enc32(uint32(currentOffset))
	}

	var ifd bytes.Buffer
	binary.Write(&ifd, enc, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(&ifd, enc, e.tag)
		binary.Write(&ifd, enc, e.datatype)
		binary.Write(&ifd, enc, e.count)

		var val [4]byte
		copy(val[:], e.data)
		ifd.Write(val[:])
	}
	// Next IFD Offset (0)
	binary.Write(&ifd, enc, uint32(0))

	if _, err := ifd.WriteTo(t.w); err != nil {
		return err
	}
	if _, err := largeDataBuf.WriteTo(t.w); err != nil {
		return err
	}

	if _, err := t.w.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if _, err := t.w.Write(enc32(uint32(ifdOffset))); err != nil {
		return err
	}
	_, err := t.w.Seek(0, io.SeekEnd)
	return err
}

// Helpers

func enc16(v uint16) []byte {
	b := make([]byte, 2)
	enc.PutUint16(b, v)
	return b
}

func enc32(v uint32) []byte {
	b := make([]byte, 4)
	enc.PutUint32(b, v)
	return b
}

func enc16s(vs []uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		enc.PutUint16(b[i*2:], v)
	}
	return b
}

func enc32s(vs []uint32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		enc.PutUint32(b[i*4:], v)
	}
	return b
}

func encDoubles(vs []float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		enc.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}
