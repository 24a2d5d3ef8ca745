// Package raster turns PDF bytes into an ordered sequence of page images.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/wudi/pdfocr/ocr"
	"github.com/wudi/pdfocr/pages"
)

// Rasterizer converts a whole PDF into page images, one per page, in order.
type Rasterizer interface {
	Name() string
	Rasterize(ctx context.Context, pdf []byte) ([]pages.Page, error)
}

// DecodeError reports a PDF that could not be rasterized. No pages are
// produced when it is returned.
type DecodeError struct {
	Backend string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("rasterize pdf (%s): %v", e.Backend, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func encodePage(number int, img image.Image) (pages.Page, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return pages.Page{}, fmt.Errorf("encode page %d: %w", number, err)
	}
	b := img.Bounds()
	return pages.Page{
		Number: number,
		Image:  buf.Bytes(),
		Format: ocr.ImageFormatPNG,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}
