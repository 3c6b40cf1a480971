package ioutils

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration

	_ "golang.org/x/image/bmp"  // BMP decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration

	"github.com/handiism/tile-mosaic/internal/tile"
)

// ImageService decodes tile images into fixed-size pixel buffers.
//
// ImageService is used to:
//   - Decode PNG, JPEG, GIF, WebP, BMP or TIFF response bodies
//   - Drop the alpha channel
//   - Rescale tiles that are not 256x256 so they fill exactly one window
//
// Example usage:
//
//	svc := NewImageService()
//	buf, err := svc.DecodeTile(body)
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// DecodeTile decodes an encoded image into a band-major RGB buffer.
//
// Colour is taken as-is, without compositing against a background, so a
// transparent pixel keeps its stored RGB value. Images with a size other
// than 256x256 are scaled with Catmull-Rom.
func (s *ImageService) DecodeTile(data []byte) (*tile.PixelBuffer, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode tile image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("decode tile image: empty %s image", format)
	}

	src := toNRGBA(img)
	if bounds.Dx() == tile.Size && bounds.Dy() == tile.Size {
		return ToPixelBuffer(src), nil
	}

	// Use Catmull-Rom for high-quality scaling
	dst := image.NewNRGBA(image.Rect(0, 0, tile.Size, tile.Size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return ToPixelBuffer(dst), nil
}

// toNRGBA returns img as an NRGBA image anchored at the origin, keeping the
// stored (non-premultiplied) colour of every pixel.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ToPixelBuffer splits a 256x256 NRGBA image anchored at the origin into
// band-major RGB samples.
func ToPixelBuffer(img *image.NRGBA) *tile.PixelBuffer {
	buf := &tile.PixelBuffer{}
	plane := tile.Size * tile.Size
	for y := 0; y < tile.Size; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+tile.Size*4]
		for x := 0; x < tile.Size; x++ {
			i := y*tile.Size + x
			buf.Pix[i] = row[x*4]
			buf.Pix[plane+i] = row[x*4+1]
			buf.Pix[2*plane+i] = row[x*4+2]
		}
	}
	return buf
}
