// Package export assembles the OCR text of the selected pages into a single
// document.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfocr/docx"
	"github.com/wudi/pdfocr/observability"
	"github.com/wudi/pdfocr/pages"
	"github.com/wudi/pdfocr/recognize"
)

// Filename is the fixed download name of an export.
const Filename = "converted_output" + docx.Extension

// ErrNoPagesSelected is returned when an export is requested with every page
// excluded, or for a document without pages.
var ErrNoPagesSelected = errors.New("no pages selected for export")

// PageRecognizer runs OCR on one page.
type PageRecognizer interface {
	Page(ctx context.Context, page pages.Page, opts recognize.Options) (string, error)
}

// Progress observes export progress. It is called synchronously after every
// completed page with the number of pages done and the number to do.
type Progress func(done, total int)

// Document is the result of one export.
type Document struct {
	// Segments holds the text of each exported page, in page order.
	Segments []Segment
	Data     []byte
	Filename string
	MIMEType string
}

// Segment is the text of one exported page; each is followed by a page break
// in the serialized document.
type Segment struct {
	Page int
	Text string
}

// Open returns a reader over the serialized document positioned at the start.
func (d *Document) Open() io.ReadSeeker { return bytes.NewReader(d.Data) }

// Exporter runs OCR again for every included page and writes the result.
// Preview results are never reused: the recognizer given here should not be
// a caching one.
type Exporter struct {
	recognizer PageRecognizer
	logger     observability.Logger
	tracer     observability.Tracer
}

// New creates an exporter.
func New(recognizer PageRecognizer, logger observability.Logger, tracer observability.Tracer) *Exporter {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &Exporter{recognizer: recognizer, logger: observability.OrNop(logger), tracer: tracer}
}

// Export reads the inclusion flags as they are when called, then recognizes
// the included pages in ascending order. The first failing page aborts the
// export and no document is returned. Once started the export is not
// cancelled by ctx.
func (e *Exporter) Export(ctx context.Context, all []pages.Page, sel *pages.Selection, opts recognize.Options, progress Progress) (*Document, error) {
	if sel == nil || sel.Len() != len(all) {
		return nil, fmt.Errorf("export: selection does not match %d pages", len(all))
	}
	flags := sel.Snapshot()
	total := flags.Count()
	if total == 0 {
		return nil, ErrNoPagesSelected
	}

	ctx = context.WithoutCancel(ctx)
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanExport)
	defer span.Finish()
	span.SetTag("pages", total)

	log := e.logger.With(
		observability.String("language", opts.Language.String()),
		observability.Bool("cleanup", opts.Cleanup),
	)
	log.Info("export started", observability.Int("included", total), observability.Int("pages", len(all)))

	doc := docx.New()
	segments := make([]Segment, 0, total)
	done := 0
	for _, page := range all {
		if !flags.Included(page.Number) {
			continue
		}
		text, err := e.recognizer.Page(ctx, page, opts)
		if err != nil {
			span.SetError(err)
			log.Error("export aborted", observability.Int("page", page.Number), observability.Error("error", err))
			return nil, fmt.Errorf("export page %d: %w", page.Number, err)
		}
		doc.AddParagraph(text)
		doc.AddPageBreak()
		segments = append(segments, Segment{Page: page.Number, Text: text})
		done++
		if progress != nil {
			progress(done, total)
		}
	}

	data, err := doc.Bytes()
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("serialize export: %w", err)
	}
	log.Info("export finished", observability.Int("pages", done), observability.Int("bytes", len(data)))
	return &Document{
		Segments: segments,
		Data:     data,
		Filename: Filename,
		MIMEType: docx.MIMEType,
	}, nil
}
