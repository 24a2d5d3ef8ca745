package raster

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/wudi/pdfocr/observability"
	"github.com/wudi/pdfocr/pages"
)

// DefaultScale renders pages at twice their nominal 72 dpi size.
const DefaultScale = 2.0

// Embedded rasterizes PDFs in-process with MuPDF. Every page is rendered in
// full (scans, text and vector content) at 72*Scale dpi.
type Embedded struct {
	Scale  float64
	Logger observability.Logger
}

var _ Rasterizer = (*Embedded)(nil)

var disableConfigDir sync.Once

// NewEmbedded returns an in-process rasterizer; scale <= 0 means DefaultScale.
func NewEmbedded(scale float64, logger observability.Logger) *Embedded {
	if scale <= 0 {
		scale = DefaultScale
	}
	disableConfigDir.Do(api.DisableConfigDir)
	return &Embedded{Scale: scale, Logger: observability.OrNop(logger)}
}

func (e *Embedded) Name() string { return "embedded" }

// DPI is the render resolution implied by Scale.
func (e *Embedded) DPI() float64 { return 72 * e.Scale }

// Rasterize checks the PDF structure, then renders every page in order. Any
// failure rejects the whole document.
func (e *Embedded) Rasterize(ctx context.Context, pdf []byte) ([]pages.Page, error) {
	count, err := e.check(pdf)
	if err != nil {
		return nil, &DecodeError{Backend: e.Name(), Err: err}
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, &DecodeError{Backend: e.Name(), Err: fmt.Errorf("open pdf: %w", err)}
	}
	defer doc.Close()

	n := doc.NumPage()
	if n != count {
		e.Logger.Warn("page count differs between parsers",
			observability.Int("structure", count), observability.Int("render", n))
	}

	out := make([]pages.Page, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, e.DPI())
		if err != nil {
			return nil, &DecodeError{Backend: e.Name(), Err: fmt.Errorf("render page %d: %w", i+1, err)}
		}
		page, err := encodePage(i+1, img)
		if err != nil {
			return nil, &DecodeError{Backend: e.Name(), Err: err}
		}
		out = append(out, page)
	}
	e.Logger.Debug("pdf rendered", observability.Int("pages", len(out)), observability.Int("dpi", int(e.DPI())))
	return out, nil
}

// check reads and validates the document structure with relaxed rules and
// returns its page count.
func (e *Embedded) check(pdf []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pctx, err := api.ReadContext(bytes.NewReader(pdf), conf)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(pctx); err != nil {
		return 0, fmt.Errorf("validate pdf: %w", err)
	}
	return pctx.PageCount, nil
}
