//go:build gocv

package facemark

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// OpenCVAvailable reports whether the OpenCV backed classifier is compiled in.
const OpenCVAvailable = true

// OpenCVClassifier wraps an OpenCV cascade classifier loaded from an XML model,
// e.g. haarcascade_frontalface_alt2.xml.
type OpenCVClassifier struct {
	mu     sync.Mutex
	cc     gocv.CascadeClassifier
	closed bool
}

var _ Classifier = (*OpenCVClassifier)(nil)

// NewOpenCVClassifier returns a ClassifierFunc loading an OpenCV cascade from disk.
func NewOpenCVClassifier() ClassifierFunc {
	return func(path string) (Classifier, error) {
		cc := gocv.NewCascadeClassifier()
		if !cc.Load(path) {
			cc.Close()
			return nil, errors.Wrapf(ErrClassifierInvalid, "failed to load cascade classifier %s", path)
		}
		return &OpenCVClassifier{cc: cc}, nil
	}
}

// DetectMultiScale converts the image into a matrix and runs the OpenCV multi-scale search.
func (c *OpenCVClassifier) DetectMultiScale(img *image.NRGBA) ([]image.Rectangle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrEngineMisuse
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert the image to a matrix")
	}
	defer mat.Close()

	return c.cc.DetectMultiScale(mat), nil
}

// Empty reports whether the classifier has been released.
func (c *OpenCVClassifier) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Close releases the native classifier.
func (c *OpenCVClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.cc.Close()
}
