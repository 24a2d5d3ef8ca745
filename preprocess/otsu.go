package preprocess

import "image"

// Histogram counts pixels per intensity level.
func Histogram(img *image.Gray) [256]int {
	var hist [256]int
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		for x := 0; x < w; x++ {
			hist[row[x]]++
		}
	}
	return hist
}

// OtsuThreshold picks the threshold that maximizes the between-class variance
// of the two classes {v <= t} and {v > t}, which is the same as minimizing the
// weighted intra-class variance. The first maximum wins on ties.
func OtsuThreshold(img *image.Gray) uint8 {
	hist := Histogram(img)
	total := img.Rect.Dx() * img.Rect.Dy()
	if total == 0 {
		return 0
	}

	var mu float64
	for i, n := range hist {
		mu += float64(i) * float64(n)
	}
	mu /= float64(total)

	var (
		q1, mu1  float64
		best     float64
		bestT    int
		fraction = 1.0 / float64(total)
	)
	for t := 0; t < 256; t++ {
		p := float64(hist[t]) * fraction
		q1Next := q1 + p
		if q1Next <= 0 {
			continue
		}
		mu1 = (q1*mu1 + float64(t)*p) / q1Next
		q1 = q1Next
		q2 := 1 - q1
		if q2 < 1e-12 {
			break
		}
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > best {
			best = sigma
			bestT = t
		}
	}
	return uint8(bestT)
}

// Binarize maps pixels above t to White and the rest to Black.
func Binarize(img *image.Gray, t uint8) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		for x := 0; x < w; x++ {
			if row[x] > t {
				out.Pix[y*out.Stride+x] = White
			} else {
				out.Pix[y*out.Stride+x] = Black
			}
		}
	}
	return out
}
