package preprocess

import (
	"image"
	"image/color"
)

// BT.601 luma weights in 14-bit fixed point.
const (
	lumaShift = 14
	lumaR     = 4899
	lumaG     = 9617
	lumaB     = 1868
	lumaRound = 1 << (lumaShift - 1)
)

// Grayscale converts img to a single channel using Y = 0.299R + 0.587G + 0.114B.
// Alpha is ignored; the result always starts at the origin.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < b.Dx(); x++ {
				out.Pix[y*out.Stride+x] = luma(row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < b.Dx(); x++ {
				out.Pix[y*out.Stride+x] = luma(row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				out.Pix[y*out.Stride+x] = luma(c.R, c.G, c.B)
			}
		}
	}
	return out
}

func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*lumaR + uint32(g)*lumaG + uint32(b)*lumaB + lumaRound) >> lumaShift)
}
