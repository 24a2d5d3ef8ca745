package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatTIFF ImageFormat = "image/tiff"
)

// Input encapsulates a single page image submitted for OCR.
type Input struct {
	// ID is an optional caller-provided identifier that is echoed back in the
	// corresponding Result.
	ID string
	// Image is the encoded image payload in the format specified by Format.
	Image []byte
	// Format declares the image content type (e.g., image/png).
	Format ImageFormat
	// Page is the 1-based ordinal of the page the image was rendered from.
	Page int
	// DPI carries the effective dots-per-inch for the image; zero means unknown.
	DPI int
	// Languages lists Tesseract language codes (e.g., "rus", "eng").
	Languages []string
	// Metadata passes engine-specific variables through (e.g., the Tesseract
	// page segmentation mode).
	Metadata map[string]string
}

// Result captures OCR output for a single input image.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// PlainText contains the linearized text extracted from the image.
	PlainText string
	// Confidence is the mean word confidence in [0,1], zero when unknown.
	Confidence float64
	// Language is the first language the engine was configured with.
	Language string
}

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}
