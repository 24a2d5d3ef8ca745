package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"
)

func FuzzCleanBytes(f *testing.F) {
	var seed bytes.Buffer
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 16)
	}
	if err := png.Encode(&seed, img); err != nil {
		f.Fatalf("encode seed: %v", err)
	}
	f.Add(seed.Bytes())
	f.Add([]byte("not an image"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		out, err := CleanBytes(data)
		if err != nil {
			var decodeErr *ImageDecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
			return
		}
		cleaned, err := png.Decode(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("cleaned output is not PNG: %v", err)
		}
		g, ok := cleaned.(*image.Gray)
		if !ok {
			t.Fatalf("cleaned output is %T, want *image.Gray", cleaned)
		}
		for _, v := range g.Pix {
			if v != Black && v != White {
				t.Fatalf("cleaned pixel %d is not binary", v)
			}
		}
	})
}
