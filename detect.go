package facemark

import (
	"image"

	"github.com/pkg/errors"
)

// Region is an axis-aligned face bounding box in pixel coordinates of the analyzed image.
type Region struct {
	X, Y          int
	Width, Height int
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// RegionFromRect converts a rectangle into a Region.
func RegionFromRect(rect image.Rectangle) Region {
	rect = rect.Canon()
	return Region{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()}
}

// Detect runs the classifier over img and returns the face regions clipped to
// the image bounds. Boxes lying wholly outside the image, or of zero area, have
// nothing to outline and are dropped; every other box is kept as reported.
// Each call returns a fresh slice, empty when nothing is found.
func Detect(img *image.NRGBA, c Classifier) ([]Region, error) {
	if c == nil || c.Empty() {
		return nil, errors.Wrap(ErrEngineMisuse, "detection requires a loaded classifier")
	}
	if img == nil {
		return nil, errors.Wrap(ErrEngineMisuse, "detection requires an image")
	}

	rects, err := c.DetectMultiScale(img)
	if err != nil {
		return nil, errors.Wrap(err, "face detection failed")
	}

	bounds := img.Bounds()
	regions := make([]Region, 0, len(rects))
	for _, rect := range rects {
		rect = rect.Canon().Intersect(bounds)
		if rect.Empty() {
			continue
		}
		regions = append(regions, RegionFromRect(rect))
	}
	return regions, nil
}
