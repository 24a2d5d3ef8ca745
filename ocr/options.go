package ocr

import "strconv"

// InputOption mutates an OCR input before it is handed to an engine.
type InputOption func(*Input)

// WithLanguages sets language hints on the OCR input.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithLanguage sets the language hints from a selector.
func WithLanguage(lang Language) InputOption {
	return WithLanguages(lang.Codes()...)
}

// WithDPI overrides the DPI value on the OCR input.
func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithMetadata sets provider-specific metadata for the input.
func WithMetadata(metadata map[string]string) InputOption {
	return func(in *Input) {
		if len(metadata) == 0 {
			in.Metadata = nil
			return
		}
		in.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			in.Metadata[k] = v
		}
	}
}

// WithTesseractPSM sets the page segmentation mode (PSM) variable for Tesseract.
// See https://tesseract-ocr.github.io/tessdoc/ImproveQuality.html#page-segmentation-method for values.
// A negative mode leaves the engine default in place.
func WithTesseractPSM(mode int) InputOption {
	return func(in *Input) {
		if mode < 0 {
			return
		}
		if in.Metadata == nil {
			in.Metadata = make(map[string]string)
		}
		in.Metadata["tessedit_pageseg_mode"] = strconv.Itoa(mode)
	}
}

// NewInput builds an input for one page image. The generated ID is stable for
// the page ordinal to simplify correlation with results.
func NewInput(page int, image []byte, format ImageFormat, opts ...InputOption) Input {
	in := Input{
		ID:     "page-" + strconv.Itoa(page),
		Image:  image,
		Format: format,
		Page:   page,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in
}
