package preprocess

import "image"

// GaussianBlur3 applies a 3x3 Gaussian blur with the separable kernel
// (1 2 1)/4 in each direction. Borders are reflected without repeating the
// edge pixel (dcb|abcd|cba).
func GaussianBlur3(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	// Horizontal pass keeps the x4 scale to avoid rounding twice.
	tmp := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y):]
		for x := 0; x < w; x++ {
			l, r := reflect101(x-1, w), reflect101(x+1, w)
			tmp[y*w+x] = uint16(row[l]) + 2*uint16(row[x]) + uint16(row[r])
		}
	}
	for y := 0; y < h; y++ {
		up, down := reflect101(y-1, h), reflect101(y+1, h)
		for x := 0; x < w; x++ {
			sum := uint32(tmp[up*w+x]) + 2*uint32(tmp[y*w+x]) + uint32(tmp[down*w+x])
			out.Pix[y*out.Stride+x] = uint8((sum + 8) >> 4)
		}
	}
	return out
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*n - i - 2
	}
	return i
}
