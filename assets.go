package facemark

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// scratchSubdir is the private directory the packaged model is copied into.
const scratchSubdir = "cascade"

// AssetSource opens read-only, sequential streams over packaged resources.
type AssetSource interface {
	OpenPackagedResource(id string) (io.ReadCloser, error)
}

// ScratchFile is a writable file living in scratch storage.
// *os.File satisfies this interface.
type ScratchFile interface {
	io.WriteCloser
	Name() string
}

// ScratchStorage is a process-private filesystem area used for transient files.
type ScratchStorage interface {
	OpenPrivateWritableFile(name string) (ScratchFile, error)
	// DeletePath removes the path and reports whether it succeeded. Best effort.
	DeletePath(path string) bool
}

// FSAssets serves packaged resources from an fs.FS, be it an embed.FS,
// a directory on disk or an in-memory filesystem.
type FSAssets struct {
	fsys fs.FS
}

var _ AssetSource = (*FSAssets)(nil)

// NewFSAssets returns an asset source backed by fsys.
func NewFSAssets(fsys fs.FS) *FSAssets {
	return &FSAssets{fsys: fsys}
}

// NewDirAssets returns an asset source reading the resources from dir.
func NewDirAssets(dir string) *FSAssets {
	return NewFSAssets(os.DirFS(dir))
}

// OpenPackagedResource opens the resource identified by id.
func (a *FSAssets) OpenPackagedResource(id string) (io.ReadCloser, error) {
	if a == nil || a.fsys == nil {
		return nil, errors.Wrapf(ErrAssetUnavailable, "no asset source for %q", id)
	}
	f, err := a.fsys.Open(id)
	if err != nil {
		return nil, errors.Wrapf(ErrAssetUnavailable, "%s: %v", id, err)
	}
	return f, nil
}

// DirScratch keeps scratch files in a private subdirectory of root.
type DirScratch struct {
	root string
}

var _ ScratchStorage = (*DirScratch)(nil)

// NewDirScratch returns a scratch storage rooted at dir. An empty dir
// selects a fresh per-process directory under the OS temporary folder.
func NewDirScratch(dir string) (*DirScratch, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "facemark-")
		if err != nil {
			return nil, errors.Wrapf(ErrScratchWriteFailed, "unable to create temporary directory: %v", err)
		}
		dir = tmp
	}
	return &DirScratch{root: dir}, nil
}

// Dir returns the private directory the scratch files are created in.
func (s *DirScratch) Dir() string {
	return filepath.Join(s.root, scratchSubdir)
}

// OpenPrivateWritableFile creates (or truncates) name inside the private directory.
func (s *DirScratch) OpenPrivateWritableFile(name string) (ScratchFile, error) {
	if err := os.MkdirAll(s.Dir(), 0700); err != nil {
		return nil, errors.Wrapf(ErrScratchWriteFailed, "%s: %v", s.Dir(), err)
	}
	f, err := os.OpenFile(filepath.Join(s.Dir(), filepath.Base(name)), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.Wrapf(ErrScratchWriteFailed, "%s: %v", name, err)
	}
	return f, nil
}

// DeletePath removes path, reporting false on failure.
func (s *DirScratch) DeletePath(path string) bool {
	return os.Remove(path) == nil
}

// Cleanup removes the whole scratch area.
func (s *DirScratch) Cleanup() error {
	return os.RemoveAll(s.root)
}
