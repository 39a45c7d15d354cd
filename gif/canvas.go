package gif

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/svanichkin/gifplay/lzw"
)

// Canvas is the persistent picture an animation is drawn onto. Pixels are
// 16 bit RGB565, 24 bit B,G,R or 32 bit B,G,R,A in memory, Pitch bytes per
// row.
type Canvas struct {
	Width  int
	Height int
	Bpp    int
	Pitch  int
	Pix    []byte

	Palette    Palette
	HasPalette bool
	Background int

	prev  previous
	snaps SnapshotStore
	alloc Allocator
}

// previous is what the next composite needs to dispose of the last frame.
type previous struct {
	x, y, w, h  int
	disposal    Disposal
	transparent int
	delay       int
}

type CanvasOptions struct {
	Allocator Allocator
	// Snapshots stores the canvas for RestorePrevious disposal. An
	// uncompressed store on Allocator is used when nil.
	Snapshots SnapshotStore
}

func NewCanvas(width, height, bpp int, opts *CanvasOptions) (*Canvas, error) {
	if bpp != 16 && bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("%w: canvas of %d bits per pixel", ErrBitDepth, bpp)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: canvas of %dx%d", ErrInvalidParam, width, height)
	}
	if opts == nil {
		opts = &CanvasOptions{}
	}
	c := &Canvas{
		Width:  width,
		Height: height,
		Bpp:    bpp,
		Pitch:  width * bpp / 8,
		alloc:  allocatorOr(opts.Allocator),
		snaps:  opts.Snapshots,
		prev:   previous{transparent: -1},
	}
	if c.snaps == nil {
		c.snaps = NewRawSnapshots(c.alloc)
	}
	pix, err := c.alloc.Alloc(c.Pitch * height)
	if err != nil {
		return nil, err
	}
	c.Pix = pix
	return c, nil
}

// SetPalette installs the global color table and background index.
func (c *Canvas) SetPalette(p *Palette, background int) {
	c.Palette = *p
	c.HasPalette = true
	c.Background = background & 0xff
}

// Delay returns the delay of the last composited frame in milliseconds.
func (c *Canvas) Delay() int {
	return c.prev.delay
}

// Release frees the pixel buffer and the snapshot store.
func (c *Canvas) Release() error {
	c.alloc.Free(c.Pix)
	c.Pix = nil
	return c.snaps.Close()
}

// pixelFormat holds the encoded destination bytes of every palette entry.
type pixelFormat struct {
	size   int
	colors [256][4]byte
}

func newPixelFormat(bpp int, pal *Palette) *pixelFormat {
	pf := &pixelFormat{size: bpp / 8}
	switch bpp {
	case 16:
		lut := pal.rgb565()
		for i, v := range lut {
			binary.LittleEndian.PutUint16(pf.colors[i][:], v)
		}
	case 24:
		for i := range pf.colors {
			copy(pf.colors[i][:], pal[i*3:i*3+3])
		}
	case 32:
		lut := pal.argb()
		for i, v := range lut {
			binary.LittleEndian.PutUint32(pf.colors[i][:], v)
		}
	}
	return pf
}

var white = [4]byte{0xff, 0xff, 0xff, 0xff}

// Composite disposes of the previous frame as it asked, then draws fr at its
// position. Nothing is changed when the arguments are rejected.
func (c *Canvas) Composite(fr *Frame) error {
	if c == nil || fr == nil || c.Pix == nil || fr.Pix == nil || !c.HasPalette {
		return fmt.Errorf("%w: composite needs canvas pixels, a palette and frame pixels", ErrInvalidParam)
	}
	if c.Bpp != 16 && c.Bpp != 24 && c.Bpp != 32 {
		return fmt.Errorf("%w: canvas of %d bits per pixel", ErrBitDepth, c.Bpp)
	}
	if fr.Bpp != 4 && fr.Bpp != 8 {
		return fmt.Errorf("%w: frame of %d bits per pixel", ErrBitDepth, fr.Bpp)
	}
	if fr.X < 0 || fr.Y < 0 || fr.Width < 0 || fr.Height < 0 ||
		fr.X+fr.Width > c.Width || fr.Y+fr.Height > c.Height {
		return fmt.Errorf("%w: frame %dx%d at (%d,%d) outside %dx%d canvas",
			ErrInvalidParam, fr.Width, fr.Height, fr.X, fr.Y, c.Width, c.Height)
	}
	if fr.Pitch < lzw.RowBytes(fr.Width, fr.Bpp) || len(fr.Pix) < fr.Pitch*fr.Height || len(c.Pix) < c.Pitch*c.Height {
		return fmt.Errorf("%w: frame buffer of %d bytes for %d rows of %d", ErrUnknown, len(fr.Pix), fr.Height, fr.Pitch)
	}

	pal := &c.Palette
	if fr.LocalPalette != nil {
		pal = fr.LocalPalette
	}
	pf := newPixelFormat(c.Bpp, pal)

	if err := c.dispose(pf); err != nil {
		return err
	}
	// The old rectangle is disposed of now, whatever happens to this frame.
	c.prev = previous{transparent: -1, delay: c.prev.delay}
	if fr.Disposal == RestorePrevious {
		if err := c.snaps.Save(c.Pix); err != nil {
			return err
		}
	}
	c.draw(fr, pf)

	c.prev = previous{
		x:           fr.X,
		y:           fr.Y,
		w:           fr.Width,
		h:           fr.Height,
		disposal:    fr.Disposal,
		transparent: fr.Transparent,
		delay:       fr.Delay,
	}
	return nil
}

func (c *Canvas) dispose(pf *pixelFormat) error {
	p := c.prev
	size := pf.size
	switch p.disposal {
	case RestoreBackground:
		col := pf.colors[c.Background][:size]
		if p.transparent >= 0 && p.transparent == c.Background {
			col = white[:size]
		}
		for y := p.y; y < p.y+p.h; y++ {
			row := c.Pix[y*c.Pitch+p.x*size : y*c.Pitch+(p.x+p.w)*size]
			for x := 0; x < len(row); x += size {
				copy(row[x:], col)
			}
		}
	case RestorePrevious:
		snap, err := c.snaps.Load()
		if err != nil {
			return err
		}
		if len(snap) < len(c.Pix) {
			return nil
		}
		for y := p.y; y < p.y+p.h; y++ {
			lo, hi := y*c.Pitch+p.x*size, y*c.Pitch+(p.x+p.w)*size
			copy(c.Pix[lo:hi], snap[lo:hi])
		}
	}
	return nil
}

func (c *Canvas) draw(fr *Frame, pf *pixelFormat) {
	size := pf.size
	for y := 0; y < fr.Height; y++ {
		src := fr.Pix[y*fr.Pitch:]
		dst := c.Pix[(fr.Y+y)*c.Pitch+fr.X*size:]
		for x := 0; x < fr.Width; x++ {
			var i byte
			if fr.Bpp == 4 {
				i = src[x>>1] >> (4 - 4*(x&1)) & 0x0f
			} else {
				i = src[x]
			}
			if int(i) == fr.Transparent {
				continue
			}
			copy(dst[x*size:x*size+size], pf.colors[i][:size])
		}
	}
}

// RGBA converts the canvas into an image for encoding.
func (c *Canvas) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	size := c.Bpp / 8
	for y := 0; y < c.Height; y++ {
		row := c.Pix[y*c.Pitch:]
		out := img.Pix[y*img.Stride:]
		for x := 0; x < c.Width; x++ {
			p := row[x*size:]
			o := out[x*4 : x*4+4]
			switch c.Bpp {
			case 16:
				v := binary.LittleEndian.Uint16(p)
				r, g, b := v>>11, v>>5&0x3f, v&0x1f
				o[0] = uint8(r<<3 | r>>2)
				o[1] = uint8(g<<2 | g>>4)
				o[2] = uint8(b<<3 | b>>2)
			default:
				o[0], o[1], o[2] = p[2], p[1], p[0]
			}
			o[3] = 0xff
		}
	}
	return img
}
