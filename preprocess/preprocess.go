// Package preprocess cleans scanned page images before recognition: grayscale
// conversion, a 3x3 Gaussian blur, and global Otsu binarization. Every step
// returns a new image; inputs are never modified.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	// Decoders for the formats rasterizers hand us.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Intensity levels of a cleaned image.
const (
	Black uint8 = 0
	White uint8 = 255
)

// ImageDecodeError reports page bytes that could not be decoded as an image.
type ImageDecodeError struct {
	Err error
}

func (e *ImageDecodeError) Error() string { return fmt.Sprintf("decode page image: %v", e.Err) }

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// Clean runs the full pipeline and returns a strictly two-valued image.
func Clean(img image.Image) *image.Gray {
	gray := Grayscale(img)
	blurred := GaussianBlur3(gray)
	return Binarize(blurred, OtsuThreshold(blurred))
}

// CleanBytes decodes an encoded image, cleans it, and encodes the result as PNG.
func CleanBytes(data []byte) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, Clean(img)); err != nil {
		return nil, fmt.Errorf("encode cleaned image: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decodes any registered image format, wrapping failures in
// ImageDecodeError.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &ImageDecodeError{Err: fmt.Errorf("empty image data")}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ImageDecodeError{Err: err}
	}
	return img, nil
}
