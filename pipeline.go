package facemark

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/esimov/facemark/utils"
)

// Result is an annotated copy of the input together with the detected regions.
type Result struct {
	Image   *image.NRGBA
	Regions []Region
}

// Count returns the number of faces found.
func (r *Result) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Regions)
}

// Pipeline combines detection and annotation into a single pass.
type Pipeline struct {
	classifier Classifier
	annotator  *Annotator
	logger     *slog.Logger
}

// NewPipeline creates a pipeline without a classifier. Until one is attached
// with With, every Run yields an absent result.
func NewPipeline(annotator *Annotator, logger *slog.Logger) *Pipeline {
	if annotator == nil {
		annotator = NewAnnotator(nil)
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &Pipeline{
		annotator: annotator,
		logger:    logger.With("component", "pipeline"),
	}
}

// With returns a copy of the pipeline using c.
func (p *Pipeline) With(c Classifier) *Pipeline {
	cp := *p
	cp.classifier = c
	return &cp
}

// Ready reports whether the pipeline has a usable classifier.
func (p *Pipeline) Ready() bool {
	return p != nil && p.classifier != nil && !p.classifier.Empty()
}

// Run detects and outlines the faces of img. It returns nil when no usable
// classifier is attached, the input is missing, ctx is done or detection fails.
// The input image is never modified.
func (p *Pipeline) Run(ctx context.Context, img *image.NRGBA) (res *Result) {
	if !p.Ready() || img == nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("detection pass panicked", "err", r)
			res = nil
		}
	}()

	start := time.Now()
	regions, err := Detect(img, p.classifier)
	if err != nil {
		p.logger.Warn("detection failed", "err", err)
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	out := p.annotator.Annotate(img, regions)
	p.logger.Debug("detection pass done",
		"faces", len(regions),
		"size", img.Bounds().Size().String(),
		"elapsed", utils.FormatTime(time.Since(start)),
	)
	return &Result{Image: out, Regions: regions}
}
