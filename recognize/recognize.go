// Package recognize runs OCR on one page with an explicit language and
// cleanup setting.
package recognize

import (
	"context"
	"fmt"
	"time"

	"github.com/wudi/pdfocr/observability"
	"github.com/wudi/pdfocr/ocr"
	"github.com/wudi/pdfocr/pages"
	"github.com/wudi/pdfocr/preprocess"
)

// Options controls one recognition call. They are read once per preview pass
// or export and applied to every page of it.
type Options struct {
	Language ocr.Language
	// Cleanup runs the preprocess pipeline before OCR.
	Cleanup bool
	// DPI is forwarded to the engine; zero leaves it unset.
	DPI int
	// PageSegMode is the Tesseract PSM; negative keeps the engine default.
	PageSegMode int
}

// DefaultOptions mirrors the defaults of the UI: primary language, cleanup on.
func DefaultOptions() Options {
	return Options{Language: ocr.DefaultLanguage, Cleanup: true, PageSegMode: -1}
}

// Recognizer turns a page into text using an OCR engine.
type Recognizer struct {
	engine ocr.Engine
	logger observability.Logger
	tracer observability.Tracer
}

// New creates a recognizer around engine.
func New(engine ocr.Engine, logger observability.Logger, tracer observability.Tracer) *Recognizer {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &Recognizer{engine: engine, logger: observability.OrNop(logger), tracer: tracer}
}

// WithEngine returns a recognizer that shares logger and tracer but uses engine.
func (r *Recognizer) WithEngine(engine ocr.Engine) *Recognizer {
	return &Recognizer{engine: engine, logger: r.logger, tracer: r.tracer}
}

// Page recognizes one page. The page image is never modified; cleanup works on
// a decoded copy. Failures are either *preprocess.ImageDecodeError or
// *ocr.OCRError, both identifying the page.
func (r *Recognizer) Page(ctx context.Context, page pages.Page, opts Options) (string, error) {
	ctx, span := r.tracer.StartSpan(ctx, observability.SpanRecognize)
	defer span.Finish()
	span.SetTag("page", page.Number)
	span.SetTag("language", opts.Language.String())

	data, format := page.Image, page.Format
	if opts.Cleanup {
		cleaned, err := preprocess.CleanBytes(data)
		if err != nil {
			span.SetError(err)
			return "", fmt.Errorf("clean page %d: %w", page.Number, err)
		}
		data, format = cleaned, ocr.ImageFormatPNG
	}

	in := ocr.NewInput(page.Number, data, format,
		ocr.WithLanguage(opts.Language),
		ocr.WithDPI(opts.DPI),
		ocr.WithTesseractPSM(opts.PageSegMode),
	)
	start := time.Now()
	res, err := r.engine.Recognize(ctx, in)
	if err != nil {
		span.SetError(err)
		return "", &ocr.OCRError{Page: page.Number, Engine: r.engine.Name(), Err: err}
	}
	r.logger.Debug("page recognized",
		observability.Int("page", page.Number),
		observability.String("language", opts.Language.String()),
		observability.Bool("cleanup", opts.Cleanup),
		observability.Int("chars", len(res.PlainText)),
		observability.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return res.PlainText, nil
}
