package recognize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"testing"

	"github.com/wudi/pdfocr/ocr"
	"github.com/wudi/pdfocr/pages"
	"github.com/wudi/pdfocr/preprocess"
)

type fakeEngine struct {
	inputs []ocr.Input
	err    error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	return ocr.Result{InputID: in.ID, PlainText: "text of " + in.ID}, nil
}

func pngPage(t *testing.T, number int) pages.Page {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetRGBA(3, 3, color.RGBA{0, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return pages.Page{Number: number, Image: buf.Bytes(), Format: ocr.ImageFormatPNG, Width: 8, Height: 8}
}

func TestPageWithoutCleanupSendsOriginalBytes(t *testing.T) {
	engine := &fakeEngine{}
	page := pngPage(t, 2)
	text, err := New(engine, nil, nil).Page(context.Background(), page, Options{Language: ocr.LanguageBoth, PageSegMode: -1})
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if text != "text of page-2" {
		t.Fatalf("unexpected text %q", text)
	}
	in := engine.inputs[0]
	if !bytes.Equal(in.Image, page.Image) {
		t.Fatalf("expected the raw page image")
	}
	if !reflect.DeepEqual(in.Languages, []string{"rus", "eng"}) {
		t.Fatalf("unexpected languages %v", in.Languages)
	}
	if in.Metadata != nil {
		t.Fatalf("unexpected metadata %v", in.Metadata)
	}
}

func TestPageWithCleanupSendsBinaryImage(t *testing.T) {
	engine := &fakeEngine{}
	page := pngPage(t, 1)
	original := append([]byte(nil), page.Image...)
	opts := DefaultOptions()
	opts.PageSegMode = 6
	if _, err := New(engine, nil, nil).Page(context.Background(), page, opts); err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if !bytes.Equal(page.Image, original) {
		t.Fatalf("page image was modified")
	}
	in := engine.inputs[0]
	img, err := png.Decode(bytes.NewReader(in.Image))
	if err != nil {
		t.Fatalf("decode engine input: %v", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("expected a gray image, got %T", img)
	}
	for _, v := range gray.Pix {
		if v != preprocess.Black && v != preprocess.White {
			t.Fatalf("engine received a non-binary pixel %d", v)
		}
	}
	if in.Metadata["tessedit_pageseg_mode"] != "6" {
		t.Fatalf("expected psm to be forwarded, got %v", in.Metadata)
	}
}

func TestPageEngineFailureIsOCRError(t *testing.T) {
	engine := &fakeEngine{err: errors.New("no traineddata")}
	_, err := New(engine, nil, nil).Page(context.Background(), pngPage(t, 5), Options{Language: ocr.LanguagePrimary})
	var ocrErr *ocr.OCRError
	if !errors.As(err, &ocrErr) {
		t.Fatalf("expected OCRError, got %v", err)
	}
	if ocrErr.Page != 5 || ocrErr.Engine != "fake" {
		t.Fatalf("unexpected error details: %+v", ocrErr)
	}
}

func TestPageUndecodableImageWithCleanup(t *testing.T) {
	engine := &fakeEngine{}
	page := pages.Page{Number: 3, Image: []byte("not an image")}
	_, err := New(engine, nil, nil).Page(context.Background(), page, DefaultOptions())
	var decErr *preprocess.ImageDecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected ImageDecodeError, got %v", err)
	}
	if len(engine.inputs) != 0 {
		t.Fatalf("engine must not be called when cleanup fails")
	}
}
