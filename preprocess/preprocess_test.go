package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// scanLikeImage draws dark text on a light, noisy background.
func scanLikeImage(seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 120, 40))
	for i := 0; i < len(img.Pix); i += 4 {
		v := uint8(200 + rng.Intn(40))
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v-10, v-20, 255
	}
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.RGBA{20, 20, 30, 255}), Face: basicfont.Face7x13, Dot: fixed.P(4, 25)}
	d.DrawString("Scan 42")
	return img
}

func assertTwoValued(t *testing.T, img *image.Gray) {
	t.Helper()
	for i, v := range img.Pix {
		if v != Black && v != White {
			t.Fatalf("pixel %d has intensity %d", i, v)
		}
	}
}

func TestCleanIsTwoValued(t *testing.T) {
	inputs := map[string]image.Image{
		"noisy-scan": scanLikeImage(1),
		"uniform":    image.NewUniform(color.Gray{Y: 128}),
		"gradient":   gradient(64, 16),
		"offset-sub": scanLikeImage(2).SubImage(image.Rect(10, 5, 90, 35)),
	}
	for name, img := range inputs {
		if _, ok := img.(*image.Uniform); ok {
			img = fill(img, 16, 16)
		}
		out := Clean(img)
		b := img.Bounds()
		if out.Rect.Dx() != b.Dx() || out.Rect.Dy() != b.Dy() {
			t.Fatalf("%s: size changed: %v -> %v", name, b, out.Rect)
		}
		assertTwoValued(t, out)
	}
}

func TestCleanDeterministic(t *testing.T) {
	img := scanLikeImage(7)
	var first []byte
	for i := 0; i < 3; i++ {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("encode: %v", err)
		}
		out, err := CleanBytes(buf.Bytes())
		if err != nil {
			t.Fatalf("CleanBytes() error = %v", err)
		}
		if first == nil {
			first = out
			continue
		}
		if !bytes.Equal(first, out) {
			t.Fatalf("run %d produced different bytes", i)
		}
	}
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	img := scanLikeImage(3)
	before := append([]byte(nil), img.Pix...)
	Clean(img)
	if !bytes.Equal(before, img.Pix) {
		t.Fatalf("input image was modified")
	}
}

func TestCleanSeparatesTextFromBackground(t *testing.T) {
	out := Clean(scanLikeImage(5))
	var black int
	for _, v := range out.Pix {
		if v == Black {
			black++
		}
	}
	if black == 0 || black > len(out.Pix)/2 {
		t.Fatalf("expected a minority of text pixels, got %d of %d", black, len(out.Pix))
	}
	if out.GrayAt(0, 0).Y != White {
		t.Fatalf("background should be white")
	}
}

func TestCleanBytesAcceptsJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scanLikeImage(9), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	out, err := CleanBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("CleanBytes() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("expected gray PNG, got %T", img)
	}
	assertTwoValued(t, gray)
}

func TestCleanBytesRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("definitely not an image")} {
		_, err := CleanBytes(data)
		var decErr *ImageDecodeError
		if !errors.As(err, &decErr) {
			t.Fatalf("expected ImageDecodeError, got %v", err)
		}
	}
}

func TestGrayscaleWeights(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 1))
	colors := []color.RGBA{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}, {255, 255, 255, 255}}
	for i, c := range colors {
		img.SetRGBA(i, 0, c)
	}
	got := Grayscale(img).Pix
	want := []uint8{76, 150, 29, 255}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pixel %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestGaussianBlur3(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 5))
	img.SetGray(2, 2, color.Gray{Y: 160})
	out := GaussianBlur3(img)
	want := [5][5]uint8{
		{0, 0, 0, 0, 0},
		{0, 10, 20, 10, 0},
		{0, 20, 40, 20, 0},
		{0, 10, 20, 10, 0},
		{0, 0, 0, 0, 0},
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if got := out.GrayAt(x, y).Y; got != want[y][x] {
				t.Fatalf("pixel (%d,%d): got %d want %d", x, y, got, want[y][x])
			}
		}
	}
}

func TestGaussianBlur3ReflectsBorders(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	copy(img.Pix, []uint8{0, 64, 128})
	out := GaussianBlur3(img)
	// Row of height 1 reflects onto itself vertically; x=0 sees (64,0,64).
	want := []uint8{32, 64, 96}
	for i := range want {
		if out.Pix[i] != want[i] {
			t.Fatalf("pixel %d: got %d want %d", i, out.Pix[i], want[i])
		}
	}
}

func TestOtsuThresholdBimodal(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 1))
	copy(img.Pix, []uint8{10, 12, 11, 10, 200, 202, 201, 199, 200, 12})
	th := OtsuThreshold(img)
	if th < 12 || th >= 199 {
		t.Fatalf("threshold %d does not split the modes", th)
	}
	out := Binarize(img, th)
	for i, v := range img.Pix {
		want := Black
		if v > 100 {
			want = White
		}
		if out.Pix[i] != want {
			t.Fatalf("pixel %d (%d) -> %d", i, v, out.Pix[i])
		}
	}
}

func TestOtsuThresholdMinimizesIntraClassVariance(t *testing.T) {
	img := Grayscale(scanLikeImage(11))
	hist := Histogram(img)
	got := OtsuThreshold(img)
	best := intraClassVariance(hist, got)
	for th := 0; th < 255; th++ {
		if v := intraClassVariance(hist, uint8(th)); v < best*(1-1e-9) {
			t.Fatalf("threshold %d has lower intra-class variance (%f < %f at %d)", th, v, best, got)
		}
	}
}

func intraClassVariance(hist [256]int, th uint8) float64 {
	var n0, n1, s0, s1 float64
	for i, n := range hist {
		if i <= int(th) {
			n0 += float64(n)
			s0 += float64(i * n)
		} else {
			n1 += float64(n)
			s1 += float64(i * n)
		}
	}
	var v float64
	if n0 > 0 {
		m := s0 / n0
		for i := 0; i <= int(th); i++ {
			v += float64(hist[i]) * (float64(i) - m) * (float64(i) - m)
		}
	}
	if n1 > 0 {
		m := s1 / n1
		for i := int(th) + 1; i < 256; i++ {
			v += float64(hist[i]) * (float64(i) - m) * (float64(i) - m)
		}
	}
	return v
}

func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = uint8(x * 255 / (w - 1))
		}
	}
	return img
}

func fill(src image.Image, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, src.At(x, y))
		}
	}
	return img
}
