package facemark

import (
	"log/slog"

	"github.com/pkg/errors"
)

// Engine bundles the process wide collaborators shared by every edit session:
// the model loader, the worker pool and the annotator.
type Engine struct {
	Config    *Config
	Loader    *ModelLoader
	Pool      *Pool
	Annotator *Annotator
	Logger    *slog.Logger

	scratch *DirScratch
}

// NewEngine wires the collaborators from cfg. The packaged model is read
// from assets and turned into a classifier by build.
func NewEngine(cfg *Config, assets AssetSource, build ClassifierFunc, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = discardLogger()
	}
	if build == nil {
		return nil, errors.New("no classifier constructor provided")
	}

	scratch, err := NewDirScratch(cfg.ScratchDir)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Config:    cfg,
		Loader:    NewModelLoader(assets, scratch, build, cfg, logger),
		Pool:      NewPool(cfg.Workers, logger),
		Annotator: NewAnnotator(cfg),
		Logger:    logger,
		scratch:   scratch,
	}, nil
}

// NewSession opens an edit session over store, driven through scaffold.
func (e *Engine) NewSession(store ImageStore, scaffold Scaffold) *Session {
	return NewSession(e.Loader, e.Pool, store, scaffold, e.Annotator, e.Logger)
}

// Close stops the workers and releases the classifier. A scratch area
// created by the engine itself is removed.
func (e *Engine) Close() error {
	e.Pool.Close()
	err := e.Loader.Close()
	if e.Config.ScratchDir == "" {
		if cerr := e.scratch.Cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
