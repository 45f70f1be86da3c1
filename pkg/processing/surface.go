package processing

import (
	"image"
	"sync"
	"sync/atomic"
)

// surfacePool hands out off-screen RGBA surfaces for rendering payloads.
// Every acquire must be paired with a release.
type surfacePool struct {
	pool  sync.Pool
	inUse atomic.Int64
}

func newSurfacePool() *surfacePool {
	return &surfacePool{}
}

func (s *surfacePool) acquire(w, h int) *image.RGBA {
	s.inUse.Add(1)

	n := 4 * w * h
	if img, ok := s.pool.Get().(*image.RGBA); ok && cap(img.Pix) >= n {
		img.Pix = img.Pix[:n]
		img.Stride = 4 * w
		img.Rect = image.Rect(0, 0, w, h)
		return img
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func (s *surfacePool) release(img *image.RGBA) {
	if img == nil {
		return
	}
	s.inUse.Add(-1)
	s.pool.Put(img)
}

// outstanding reports surfaces acquired but not yet released
func (s *surfacePool) outstanding() int64 {
	return s.inUse.Load()
}
