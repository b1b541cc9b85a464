package facemark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
)

// ModelSource yields a loaded classifier asynchronously.
type ModelSource interface {
	LoadAsync(ctx context.Context, pool *Pool) <-chan LoadOutcome
}

// LoadOutcome is the result of a model load: either a usable classifier or the error.
type LoadOutcome struct {
	Classifier Classifier
	Err        error
}

// Loaded reports whether the outcome carries a usable classifier.
func (o LoadOutcome) Loaded() bool {
	return o.Err == nil && o.Classifier != nil && !o.Classifier.Empty()
}

// ModelLoader materializes a packaged cascade model into scratch storage,
// hands its path to the classifier constructor, then removes the scratch copy.
type ModelLoader struct {
	assets  AssetSource
	scratch ScratchStorage
	build   ClassifierFunc
	assetID string
	bufSize int
	logger  *slog.Logger

	mu     sync.Mutex
	loaded Classifier
}

var _ ModelSource = (*ModelLoader)(nil)

// NewModelLoader creates a loader for the asset cfg.AssetID.
func NewModelLoader(assets AssetSource, scratch ScratchStorage, build ClassifierFunc, cfg *Config, logger *slog.Logger) *ModelLoader {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = discardLogger()
	}
	bufSize := cfg.CopyBufferSize
	if bufSize <= 0 {
		bufSize = 4096
	}
	return &ModelLoader{
		assets:  assets,
		scratch: scratch,
		build:   build,
		assetID: cfg.AssetID,
		bufSize: bufSize,
		logger:  logger.With("component", "loader"),
	}
}

// Load returns a non-empty classifier. Once a load succeeds further calls
// return the same classifier without touching the assets again.
func (l *ModelLoader) Load(ctx context.Context) (Classifier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded != nil && !l.loaded.Empty() {
		return l.loaded, nil
	}

	path, err := l.materialize(ctx)
	if err != nil {
		l.logger.Warn("model materialization failed", "asset", l.assetID, "err", err)
		return nil, err
	}

	c, err := l.build(path)
	if err == nil && (c == nil || c.Empty()) {
		err = errors.Wrapf(ErrClassifierInvalid, "classifier built from %s is empty", path)
	}
	if err != nil {
		if c != nil {
			c.Close()
		}
		if !errors.Is(err, ErrClassifierInvalid) {
			err = markErr(ErrClassifierInvalid, err)
		}
		l.discard(path)
		l.logger.Warn("classifier construction failed", "asset", l.assetID, "err", err)
		return nil, err
	}

	// The classifier holds the model in memory, the scratch copy can go.
	l.discard(path)
	l.loaded = c
	l.logger.Info("model loaded", "asset", l.assetID)

	return c, nil
}

// materialize copies the packaged resource into a private scratch file
// in bounded chunks and returns the file path.
func (l *ModelLoader) materialize(ctx context.Context) (path string, err error) {
	if l.assets == nil {
		return "", errors.Wrap(ErrAssetUnavailable, "no asset source configured")
	}
	if l.scratch == nil {
		return "", errors.Wrap(ErrScratchWriteFailed, "no scratch storage configured")
	}

	src, err := l.assets.OpenPackagedResource(l.assetID)
	if err != nil {
		if !errors.Is(err, ErrAssetUnavailable) {
			err = markErr(ErrAssetUnavailable, errors.Wrap(err, l.assetID))
		}
		return "", err
	}
	defer src.Close()

	dst, err := l.scratch.OpenPrivateWritableFile(l.assetID)
	if err != nil {
		if !errors.Is(err, ErrScratchWriteFailed) {
			err = markErr(ErrScratchWriteFailed, errors.Wrap(err, l.assetID))
		}
		return "", err
	}
	path = dst.Name()

	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = markErr(ErrScratchWriteFailed, errors.Wrapf(cerr, "closing %s", path))
		}
		if err != nil {
			l.discard(path)
			path = ""
		}
	}()

	buf := make([]byte, l.bufSize)
	for {
		if err := ctx.Err(); err != nil {
			return path, errors.Wrap(err, "model copy interrupted")
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return path, markErr(ErrScratchWriteFailed, errors.Wrapf(werr, "writing %s", path))
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return path, nil
			}
			return path, markErr(ErrAssetUnavailable, errors.Wrapf(rerr, "reading %s", l.assetID))
		}
	}
}

// markErr tags err with the kind sentinel, keeping err reachable through errors.Is and errors.As.
func markErr(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

func (l *ModelLoader) discard(path string) {
	if path == "" {
		return
	}
	if !l.scratch.DeletePath(path) {
		l.logger.Debug("scratch file not deleted", "path", path)
	}
}

// LoadAsync runs Load on the pool and delivers exactly one outcome on the
// returned channel. The channel is buffered, the receiver may walk away.
func (l *ModelLoader) LoadAsync(ctx context.Context, pool *Pool) <-chan LoadOutcome {
	out := make(chan LoadOutcome, 1)

	job := func() {
		var outcome LoadOutcome
		defer func() {
			if r := recover(); r != nil {
				outcome = LoadOutcome{Err: errors.Wrapf(ErrClassifierInvalid, "model load panic: %v", r)}
			}
			out <- outcome
		}()
		c, err := l.Load(ctx)
		outcome = LoadOutcome{Classifier: c, Err: err}
	}

	if pool == nil {
		go job()
		return out
	}
	if err := pool.Submit(ctx, job); err != nil {
		out <- LoadOutcome{Err: err}
	}
	return out
}

// Close releases the cached classifier. A later Load materializes the model again.
func (l *ModelLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded == nil {
		return nil
	}
	err := l.loaded.Close()
	l.loaded = nil
	return err
}
