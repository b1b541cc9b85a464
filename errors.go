package facemark

import "github.com/pkg/errors"

// Error taxonomy of the detection core. Asset and classifier errors are
// downgraded to an absent detection result at the pipeline boundary.
var (
	// ErrAssetUnavailable is returned when the packaged model is missing or unreadable.
	ErrAssetUnavailable = errors.New("packaged model asset unavailable")
	// ErrScratchWriteFailed is returned when the model cannot be copied into scratch storage.
	ErrScratchWriteFailed = errors.New("scratch storage not writable")
	// ErrClassifierInvalid is returned when the constructed classifier is empty or corrupt.
	ErrClassifierInvalid = errors.New("classifier empty or invalid")
	// ErrEngineMisuse signals a detection call without a ready classifier.
	ErrEngineMisuse = errors.New("detection requested without a ready classifier")

	// ErrSessionClosed is returned by session operations issued after teardown.
	ErrSessionClosed = errors.New("edit session closed")
	// ErrPoolClosed is returned when work is submitted to a stopped pool.
	ErrPoolClosed = errors.New("worker pool closed")
)
