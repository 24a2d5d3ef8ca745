// Package session ties the stages together for one uploaded document:
// rasterize on upload, preview with the current flags, export on demand.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/pdfocr/export"
	"github.com/wudi/pdfocr/observability"
	"github.com/wudi/pdfocr/ocr"
	"github.com/wudi/pdfocr/pages"
	"github.com/wudi/pdfocr/raster"
	"github.com/wudi/pdfocr/recognize"
	"github.com/wudi/pdfocr/scripting"
)

// Session is the state of one uploaded document. It is owned by a single
// caller; nothing in it is safe for concurrent mutation.
type Session struct {
	ID        string
	Name      string
	Pages     []pages.Page
	Selection *pages.Selection
	// Options apply to every page of the next preview pass or export.
	Options recognize.Options
	Created time.Time
}

// SetLanguage changes the OCR language for subsequent passes.
func (s *Session) SetLanguage(lang string) error {
	l, err := ocr.ParseLanguage(lang)
	if err != nil {
		return err
	}
	s.Options.Language = l
	return nil
}

// SetCleanup turns image cleanup on or off for subsequent passes.
func (s *Session) SetCleanup(on bool) { s.Options.Cleanup = on }

// Toggle flips the inclusion flag of a page.
func (s *Session) Toggle(page int) (bool, error) { return s.Selection.Toggle(page) }

// SelectRanges includes exactly the pages listed, e.g. "1-3,5".
func (s *Session) SelectRanges(spec string) error {
	numbers, err := pages.ParseRanges(spec, len(s.Pages))
	if err != nil {
		return err
	}
	return s.Selection.Only(numbers)
}

// SelectScript includes the pages for which the JavaScript expression holds.
func (s *Session) SelectScript(ctx context.Context, expr string) error {
	sel, err := scripting.Compile(expr)
	if err != nil {
		return err
	}
	return sel.Apply(ctx, s.Pages, s.Selection)
}

// Page returns the page with the given ordinal.
func (s *Session) Page(number int) (pages.Page, error) {
	if number < 1 || number > len(s.Pages) {
		return pages.Page{}, fmt.Errorf("page %d of %d: %w", number, len(s.Pages), pages.ErrPageOutOfRange)
	}
	return s.Pages[number-1], nil
}

// PagePreview is what the preview loop shows for one page.
type PagePreview struct {
	Page     pages.Page
	Included bool
	// Recognized is true when OCR ran for the page (included pages only).
	Recognized bool
	Text       string
	Err        error
}

// Service runs the pipeline stages for sessions.
type Service struct {
	rasterizer raster.Rasterizer
	preview    *recognize.Recognizer
	cache      *ocr.Cache
	exporter   *export.Exporter
	logger     observability.Logger
	tracer     observability.Tracer
	now        func() time.Time
}

// NewService wires a rasterizer and an OCR engine. Preview passes go through
// an ocr.Cache of cacheEntries results so unchanged pages are not recognized
// again on every render; exports always call the engine directly.
func NewService(r raster.Rasterizer, engine ocr.Engine, cacheEntries int, logger observability.Logger, tracer observability.Tracer) *Service {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	logger = observability.OrNop(logger)
	direct := recognize.New(engine, logger, tracer)
	cache := ocr.NewCache(engine, cacheEntries)
	return &Service{
		rasterizer: r,
		preview:    direct.WithEngine(cache),
		cache:      cache,
		exporter:   export.New(direct, logger, tracer),
		logger:     logger,
		tracer:     tracer,
		now:        time.Now,
	}
}

// Open rasterizes an uploaded PDF into a new session with every page
// included. A rasterization failure yields no session.
func (s *Service) Open(ctx context.Context, name string, pdf []byte, opts recognize.Options) (*Session, error) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanRasterize)
	defer span.Finish()

	start := s.now()
	all, err := s.rasterizer.Rasterize(ctx, pdf)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	sess := &Session{
		ID:        uuid.NewString(),
		Name:      name,
		Pages:     all,
		Selection: pages.NewSelection(len(all)),
		Options:   opts,
		Created:   start,
	}
	span.SetTag("pages", len(all))
	s.logger.Info("document rasterized",
		observability.String("session", sess.ID),
		observability.String("name", name),
		observability.String("rasterizer", s.rasterizer.Name()),
		observability.Int("pages", len(all)),
		observability.Int64("elapsed_ms", s.now().Sub(start).Milliseconds()),
	)
	return sess, nil
}

// Preview walks every page in order. Included pages are recognized with the
// session options as they are when the pass starts; a failing page carries
// its error and does not stop the pass.
func (s *Service) Preview(ctx context.Context, sess *Session) []PagePreview {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanPreview)
	defer span.Finish()

	opts := sess.Options
	out := make([]PagePreview, 0, len(sess.Pages))
	for _, p := range sess.Pages {
		out = append(out, s.previewPage(ctx, sess, p, opts))
	}
	hits, misses := s.cache.Stats()
	s.logger.Debug("preview finished",
		observability.String("session", sess.ID),
		observability.Int("pages", len(out)),
		observability.Int("cache_hits", hits),
		observability.Int("cache_misses", misses),
	)
	return out
}

// PreviewPage previews a single page with the current session options.
func (s *Service) PreviewPage(ctx context.Context, sess *Session, number int) (PagePreview, error) {
	p, err := sess.Page(number)
	if err != nil {
		return PagePreview{}, err
	}
	return s.previewPage(ctx, sess, p, sess.Options), nil
}

func (s *Service) previewPage(ctx context.Context, sess *Session, p pages.Page, opts recognize.Options) PagePreview {
	pv := PagePreview{Page: p, Included: sess.Selection.Included(p.Number)}
	if !pv.Included {
		return pv
	}
	pv.Recognized = true
	pv.Text, pv.Err = s.preview.Page(ctx, p, opts)
	if pv.Err != nil {
		s.logger.Warn("preview failed",
			observability.String("session", sess.ID),
			observability.Int("page", p.Number),
			observability.Error("error", pv.Err),
		)
	}
	return pv
}

// Export recognizes the included pages again and assembles the document.
func (s *Service) Export(ctx context.Context, sess *Session, progress export.Progress) (*export.Document, error) {
	return s.exporter.Export(ctx, sess.Pages, sess.Selection, sess.Options, progress)
}
