package facemark

import "image"

// Classifier is a loaded cascade model. Implementations are immutable once
// loaded and must be safe for repeated and concurrent detection calls.
type Classifier interface {
	// DetectMultiScale runs the multi-scale sliding window search over img and
	// returns the regions surviving the classifier's own non-max suppression.
	DetectMultiScale(img *image.NRGBA) ([]image.Rectangle, error)
	// Empty reports whether the classifier holds no usable model.
	Empty() bool
	Close() error
}

// ClassifierFunc constructs a classifier from a model file written to disk.
type ClassifierFunc func(path string) (Classifier, error)
