package attendance

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// Camera acquires a video stream
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an acquired camera. Size reports 0x0 until the first frame
// has been produced.
type Stream interface {
	Size() (width, height int)
	Frame() (image.Image, error)
	Stop()
}

// lease owns the single active stream. enter always releases the previous
// stream before acquiring, exit is safe to call repeatedly.
type lease struct {
	camera Camera
	stream Stream
}

func (l *lease) enter(ctx context.Context) error {
	l.exit()
	s, err := l.camera.Open(ctx)
	if err != nil {
		return err
	}
	l.stream = s
	return nil
}

func (l *lease) exit() {
	if l.stream != nil {
		l.stream.Stop()
		l.stream = nil
	}
}

func (l *lease) held() bool {
	return l.stream != nil
}

var errStreamStopped = errors.New("stream stopped")

// FileCamera serves a still image from disk as its only frame
type FileCamera struct {
	Path string
}

func (c FileCamera) Open(ctx context.Context) (Stream, error) {
	img, err := imaging.Open(c.Path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return &stillStream{img: img}, nil
}

// ImageCamera serves an in-memory image
type ImageCamera struct {
	Image image.Image
}

func (c ImageCamera) Open(ctx context.Context) (Stream, error) {
	return &stillStream{img: c.Image}, nil
}

type stillStream struct {
	mu      sync.Mutex
	img     image.Image
	stopped bool
}

func (s *stillStream) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *stillStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errStreamStopped
	}
	return s.img, nil
}

func (s *stillStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}
