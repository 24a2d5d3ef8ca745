package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/pdfocr/observability"
	"github.com/wudi/pdfocr/ocr"
	"github.com/wudi/pdfocr/pages"
)

// DefaultDPI matches the pdftoppm default used by common PDF-to-image wrappers.
const DefaultDPI = 200

// Poppler rasterizes by shelling out to pdftoppm.
type Poppler struct {
	Binary string
	DPI    int
	Logger observability.Logger
}

var _ Rasterizer = (*Poppler)(nil)

// NewPoppler returns a pdftoppm rasterizer. An empty binary means "pdftoppm"
// from PATH; dpi <= 0 means DefaultDPI.
func NewPoppler(binary string, dpi int, logger observability.Logger) *Poppler {
	if binary == "" {
		binary = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Poppler{Binary: binary, DPI: dpi, Logger: observability.OrNop(logger)}
}

func (p *Poppler) Name() string { return "poppler" }

// Rasterize writes the PDF to a scratch directory and converts every page to PNG.
func (p *Poppler) Rasterize(ctx context.Context, pdf []byte) ([]pages.Page, error) {
	dir, err := os.MkdirTemp("", "pdfocr-pdftoppm-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write scratch pdf: %w", err)
	}

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, p.Binary, "-r", strconv.Itoa(p.DPI), "-png", input, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	p.Logger.Debug("running pdftoppm", observability.String("binary", p.Binary), observability.Int("dpi", p.DPI))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &DecodeError{Backend: p.Name(), Err: err}
	}

	files, err := outputFiles(dir)
	if err != nil {
		return nil, err
	}
	out := make([]pages.Page, 0, len(files))
	for i, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", f.number, err)
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, &DecodeError{Backend: p.Name(), Err: fmt.Errorf("page %d output: %w", f.number, err)}
		}
		out = append(out, pages.Page{
			Number: i + 1,
			Image:  data,
			Format: ocr.ImageFormatPNG,
			Width:  cfg.Width,
			Height: cfg.Height,
		})
	}
	return out, nil
}

type pageFile struct {
	number int
	path   string
}

// outputFiles lists page-N.png files ordered by N. pdftoppm zero-pads N to the
// width of the page count, so lexical order is not reliable across versions.
func outputFiles(dir string) ([]pageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list pdftoppm output: %w", err)
	}
	var files []pageFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "page-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "page-"), ".png"))
		if err != nil {
			continue
		}
		files = append(files, pageFile{number: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].number < files[j].number })
	return files, nil
}
