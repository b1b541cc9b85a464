package facemark

import (
	"image"
	"sync"
)

// ImageStore holds the image being edited together with its preview thumbnail.
type ImageStore interface {
	Thumbnail() *image.NRGBA
	FullImage() *image.NRGBA
	SetFullImage(img *image.NRGBA)
}

// MemStore is an in-memory ImageStore safe for concurrent use.
type MemStore struct {
	mu    sync.RWMutex
	full  *image.NRGBA
	thumb *image.NRGBA
}

var _ ImageStore = (*MemStore)(nil)

// NewMemStore stores full and derives its thumbnail, at most thumbSize pixels on each side.
func NewMemStore(full *image.NRGBA, thumbSize int) *MemStore {
	s := &MemStore{full: full}
	if full != nil {
		s.thumb = Thumbnail(full, thumbSize)
	}
	return s
}

// Thumbnail returns the preview sized image.
func (s *MemStore) Thumbnail() *image.NRGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.thumb
}

// FullImage returns the full resolution image.
func (s *MemStore) FullImage() *image.NRGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.full
}

// SetFullImage replaces the full resolution image. The thumbnail is kept as is.
func (s *MemStore) SetFullImage(img *image.NRGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.full = img
}
