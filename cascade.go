package facemark

import (
	"encoding/binary"
	"image"
	"os"

	"github.com/esimov/facemark/utils"
	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
)

// cascadeHeaderSize is the size of the pigo cascade header: 8 reserved bytes,
// followed by the tree depth and the number of trees as little endian uint32.
const cascadeHeaderSize = 16

// maxTreeDepth guards the header parser against absurd allocations.
const maxTreeDepth = 16

// PigoClassifier runs a pigo binary cascade over the image luminance.
type PigoClassifier struct {
	pigo  *pigo.Pigo
	trees uint32

	minSize      int
	maxSize      int
	shiftFactor  float64
	scaleFactor  float64
	iouThreshold float64
	qThreshold   float32
	angle        float64
}

var _ Classifier = (*PigoClassifier)(nil)

// NewPigoClassifier returns a ClassifierFunc reading a pigo cascade from disk
// and applying the cascade parameters from cfg.
func NewPigoClassifier(cfg *Config) ClassifierFunc {
	return func(path string) (Classifier, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, markErr(ErrClassifierInvalid, errors.Wrap(err, "unable to read the cascade file"))
		}
		return UnpackPigo(data, cfg)
	}
}

// UnpackPigo unpacks the binary cascade. This will return the number of cascade
// trees, the tree depth, the threshold and the prediction from tree's leaf nodes.
func UnpackPigo(data []byte, cfg *Config) (pc *PigoClassifier, err error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	trees, err := cascadeTrees(data)
	if err != nil {
		return nil, err
	}

	// pigo indexes the raw packet without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			pc, err = nil, errors.Wrapf(ErrClassifierInvalid, "error unpacking the cascade file: %v", r)
		}
	}()

	p, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, markErr(ErrClassifierInvalid, errors.Wrap(err, "error unpacking the cascade file"))
	}

	return &PigoClassifier{
		pigo:         p,
		trees:        trees,
		minSize:      cfg.MinSize,
		maxSize:      cfg.MaxSize,
		shiftFactor:  cfg.ShiftFactor,
		scaleFactor:  cfg.ScaleFactor,
		iouThreshold: cfg.IoUThreshold,
		qThreshold:   float32(cfg.QThreshold),
		angle:        cfg.Angle,
	}, nil
}

// cascadeTrees validates the cascade header against the packet length
// and returns the number of trees it declares.
func cascadeTrees(data []byte) (uint32, error) {
	if len(data) < cascadeHeaderSize {
		return 0, errors.Wrapf(ErrClassifierInvalid, "cascade too short: %d bytes", len(data))
	}
	depth := binary.LittleEndian.Uint32(data[8:12])
	trees := binary.LittleEndian.Uint32(data[12:16])

	if depth > maxTreeDepth {
		return 0, errors.Wrapf(ErrClassifierInvalid, "unsupported tree depth %d", depth)
	}
	if trees == 0 {
		return 0, errors.Wrap(ErrClassifierInvalid, "cascade contains no trees")
	}

	leaves := 1 << depth
	// node codes, leaf predictions and the tree threshold
	treeSize := (4*leaves - 4) + 4*leaves + 4
	if uint64(len(data)-cascadeHeaderSize) < uint64(trees)*uint64(treeSize) {
		return 0, errors.Wrapf(ErrClassifierInvalid, "cascade truncated: %d trees of %d bytes declared", trees, treeSize)
	}
	return trees, nil
}

// DetectMultiScale runs the classifier over the detection windows at every scale
// between the minimum and maximum face size, then clusters the overlapping hits.
func (pc *PigoClassifier) DetectMultiScale(img *image.NRGBA) (rects []image.Rectangle, err error) {
	if pc.Empty() {
		return nil, ErrEngineMisuse
	}
	defer func() {
		if r := recover(); r != nil {
			rects, err = nil, errors.Errorf("pigo cascade panic: %v", r)
		}
	}()

	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	maxSize := pc.maxSize
	if maxSize == 0 {
		maxSize = utils.Max(cols, rows)
	}

	cParams := pigo.CascadeParams{
		MinSize:     pc.minSize,
		MaxSize:     maxSize,
		ShiftFactor: pc.shiftFactor,
		ScaleFactor: pc.scaleFactor,

		ImageParams: pigo.ImageParams{
			Pixels: grayscalePixels(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	// The result contains quadruplets representing the row, column, scale and detection score.
	dets := pc.pigo.RunCascade(cParams, pc.angle)

	// Calculate the intersection over union (IoU) of two clusters.
	dets = pc.pigo.ClusterDetections(dets, pc.iouThreshold)

	return detectionRects(dets, pc.qThreshold, bounds.Min), nil
}

// detectionRects converts the clusters scoring above qThreshold into
// rectangles. A cluster's score sums the cascade outputs of its windows,
// so weak clusters are usually not faces.
func detectionRects(dets []pigo.Detection, qThreshold float32, origin image.Point) []image.Rectangle {
	rects := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q <= qThreshold {
			continue
		}
		half := det.Scale / 2
		rect := image.Rect(
			det.Col-half,
			det.Row-half,
			det.Col+half,
			det.Row+half,
		).Add(origin)
		rects = append(rects, rect)
	}
	return rects
}

// Empty reports whether the cascade holds no trees.
func (pc *PigoClassifier) Empty() bool {
	return pc == nil || pc.pigo == nil || pc.trees == 0
}

// Close is a no-op, the cascade lives in Go memory.
func (pc *PigoClassifier) Close() error {
	return nil
}
