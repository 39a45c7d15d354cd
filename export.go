package main

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/remeh/sizedwaitgroup"
	"github.com/xfmoulet/qoi"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/svanichkin/gifplay/gif"
)

// frameSink receives the canvas after every composited frame.
type frameSink interface {
	WriteFrame(pass int, info gif.FrameInfo, c *gif.Canvas) error
	Close() error
}

var encoders = map[string]func(io.Writer, image.Image) error{
	"png": png.Encode,
	"qoi": qoi.Encode,
	"bmp": bmp.Encode,
}

// dirSink writes the frames of the first pass as numbered images, encoding
// them on up to Workers goroutines.
type dirSink struct {
	dir    string
	format string
	scale  float64
	encode func(io.Writer, image.Image) error

	wg      sizedwaitgroup.SizedWaitGroup
	mu      sync.Mutex
	err     error
	written int
}

func newDirSink(dir string, cfg settings) (*dirSink, error) {
	enc, ok := encoders[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("unknown export format %q", cfg.Format)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &dirSink{
		dir:    dir,
		format: cfg.Format,
		scale:  cfg.Scale,
		encode: enc,
		wg:     sizedwaitgroup.New(max(cfg.Workers, 1)),
	}, nil
}

func (s *dirSink) framePath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("frame_%04d.%s", index, s.format))
}

func (s *dirSink) WriteFrame(pass int, info gif.FrameInfo, c *gif.Canvas) error {
	if pass > 0 {
		return nil
	}
	if err := s.failed(); err != nil {
		return err
	}
	img := c.RGBA()
	path := s.framePath(info.Index)
	s.wg.Add()
	go func() {
		defer s.wg.Done()
		if err := s.writeImage(path, scaleImage(img, s.scale)); err != nil {
			s.fail(err)
		}
	}()
	return nil
}

func (s *dirSink) writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.mu.Lock()
	s.written++
	s.mu.Unlock()
	logDebug("wrote %s", path)
	return nil
}

func (s *dirSink) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *dirSink) failed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close waits for pending encodes and reports the first failure.
func (s *dirSink) Close() error {
	s.wg.Wait()
	return s.failed()
}

// scaleImage resizes img by k. Whole-number enlargements stay pixel-exact.
func scaleImage(img *image.RGBA, k float64) image.Image {
	if k == 1 {
		return img
	}
	b := img.Bounds()
	w := max(int(math.Round(float64(b.Dx())*k)), 1)
	h := max(int(math.Round(float64(b.Dy())*k)), 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	var kern draw.Interpolator = draw.BiLinear
	if k >= 1 && k == math.Trunc(k) {
		kern = draw.NearestNeighbor
	}
	kern.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
