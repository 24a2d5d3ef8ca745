package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os/exec"
	"strings"
	"testing"

	"github.com/wudi/pdfocr/ocr"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ensureTesseractAvailable checks that the tesseract binary is reachable.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func renderText(t *testing.T, s string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 50),
	}
	d.DrawString(s)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestEngineRecognize(t *testing.T) {
	ensureTesseractAvailable(t)

	in := ocr.NewInput(1, renderText(t, "Hello PDF"), ocr.ImageFormatPNG, ocr.WithLanguage(ocr.LanguageSecondary), ocr.WithDPI(300))
	res, err := New().Recognize(context.Background(), in)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	got := strings.ToLower(res.PlainText)
	if !strings.Contains(got, "hello") || !strings.Contains(got, "pdf") {
		t.Fatalf("unexpected OCR output: %q", res.PlainText)
	}
	if res.InputID != "page-1" || res.Language != "eng" {
		t.Fatalf("unexpected result metadata: %+v", res)
	}
}

func TestEngineRejectsEmptyImage(t *testing.T) {
	ensureTesseractAvailable(t)

	if _, err := New().Recognize(context.Background(), ocr.Input{ID: "page-1"}); err == nil {
		t.Fatalf("expected error for empty image")
	}
}

func TestEngineHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := &Engine{clientFactory: nil}
	if _, err := e.Recognize(ctx, ocr.Input{Image: []byte{1}}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
