package facemark

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/esimov/facemark/utils"
)

// maxStrokeWidth caps the outline thickness.
const maxStrokeWidth = 64

// Annotator outlines face regions on a copy of the source image.
type Annotator struct {
	Color  color.NRGBA
	Stroke int
}

// NewAnnotator builds an annotator from the stroke settings in cfg.
// An unparsable color falls back to white.
func NewAnnotator(cfg *Config) *Annotator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	col, err := utils.HexToRGBA(cfg.StrokeColor)
	if err != nil {
		col = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	return &Annotator{
		Color:  col,
		Stroke: utils.Clamp(cfg.StrokeWidth, 1, maxStrokeWidth),
	}
}

// Annotate returns a new image of the same size as src, with every region
// outlined by an inward stroke. The source is never modified and the output
// does not depend on the order of regions.
func (a *Annotator) Annotate(src image.Image, regions []Region) *image.NRGBA {
	dst := imaging.Clone(src)
	if len(regions) == 0 {
		return dst
	}

	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool {
		ri, rj := sorted[i], sorted[j]
		if ri.Y != rj.Y {
			return ri.Y < rj.Y
		}
		if ri.X != rj.X {
			return ri.X < rj.X
		}
		if ri.Width != rj.Width {
			return ri.Width < rj.Width
		}
		return ri.Height < rj.Height
	})

	uniform := image.NewUniform(a.Color)
	origin := src.Bounds().Min
	for _, r := range sorted {
		rect := r.Rect().Sub(origin).Intersect(dst.Bounds())
		if rect.Empty() {
			continue
		}
		a.outline(dst, rect, uniform)
	}
	return dst
}

// outline paints the four bands of a rectangle border, each a.Stroke pixels wide.
func (a *Annotator) outline(dst draw.Image, rect image.Rectangle, col image.Image) {
	s := utils.Max(a.Stroke, 1)
	sx := utils.Min(s, rect.Dx())
	sy := utils.Min(s, rect.Dy())

	bands := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+sy), // top
		image.Rect(rect.Min.X, rect.Max.Y-sy, rect.Max.X, rect.Max.Y), // bottom
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+sx, rect.Max.Y), // left
		image.Rect(rect.Max.X-sx, rect.Min.Y, rect.Max.X, rect.Max.Y), // right
	}
	for _, b := range bands {
		draw.Draw(dst, b, col, image.Point{}, draw.Src)
	}
}
