package facemark

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	pigo "github.com/esimov/pigo/core"
)

// grayscalePixels converts the image to grayscale mode and returns
// the luminance values as a one dimensional, row major array.
func grayscalePixels(src *image.NRGBA) []uint8 {
	b := src.Bounds()

	var gray image.Image = effect.Grayscale(src)
	if g, ok := gray.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride == b.Dx() {
		return g.Pix
	}
	return pigo.RgbToGrayscale(src)
}
