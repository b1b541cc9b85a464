//go:build !gocv

package facemark

import "github.com/pkg/errors"

// OpenCVAvailable reports whether the OpenCV backed classifier is compiled in.
const OpenCVAvailable = false

// NewOpenCVClassifier returns a ClassifierFunc which always fails when the
// binary is built without the gocv tag.
func NewOpenCVClassifier() ClassifierFunc {
	return func(path string) (Classifier, error) {
		return nil, errors.Wrapf(ErrClassifierInvalid, "cannot load %s: gocv build tag is not enabled", path)
	}
}
