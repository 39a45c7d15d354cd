package gif

import (
	"fmt"

	"github.com/svanichkin/gifplay/lzw"
)

// DecodeOptions controls how strictly image data is decoded.
type DecodeOptions struct {
	// IgnoreErrors keeps the rows decoded from a short or corrupt LZW
	// stream instead of failing the frame. Missing rows are left zero.
	IgnoreErrors bool
}

// Frame is a decoded frame: indexed pixels at 4 or 8 bits, Pitch bytes per
// row, plus what the compositor needs to place it.
type Frame struct {
	Index               int
	X, Y, Width, Height int
	Bpp                 int
	Pitch               int
	Pix                 []byte

	Palette      *Palette // global color table, frame 0 only
	LocalPalette *Palette

	Transparent int // -1 when none
	Delay       int // milliseconds
	Disposal    Disposal
	Interlaced  bool
	UserInput   bool
	LoopCount   int
	Comment     string
	Text        string

	alloc Allocator
}

// DecodeFrame expands a raw frame into an indexed raster. The returned Frame
// owns copies of the raw frame's palettes, so raw can be released at once.
func (f *File) DecodeFrame(raw *RawFrame, opts DecodeOptions) (*Frame, error) {
	if raw == nil || raw.Data == nil {
		return nil, fmt.Errorf("%w: no frame data", ErrInvalidParam)
	}
	d, err := f.decoder(raw.CodeSize)
	if err != nil {
		return nil, err
	}

	fr := &Frame{
		Index:       raw.Index,
		X:           raw.X,
		Y:           raw.Y,
		Width:       raw.Width,
		Height:      raw.Height,
		Bpp:         raw.Bpp,
		Pitch:       raw.Pitch,
		Transparent: raw.Transparent,
		Delay:       raw.Delay,
		Disposal:    raw.Disposal,
		Interlaced:  raw.Interlaced,
		UserInput:   raw.UserInput,
		LoopCount:   raw.LoopCount,
		Comment:     raw.Comment,
		Text:        raw.Text,
		alloc:       f.alloc,
	}
	fr.Pix, err = f.alloc.Alloc(fr.Pitch * (fr.Height + 1))
	if err != nil {
		return nil, err
	}

	r := &lzw.Raster{Width: fr.Width, Height: fr.Height, Bpp: fr.Bpp, Pitch: fr.Pitch, Pix: fr.Pix}
	if err := d.Decode(raw.Data, r, opts.IgnoreErrors); err != nil {
		fr.Release()
		return nil, fmt.Errorf("%w: frame %d: %w", ErrDecompression, raw.Index, err)
	}
	if fr.Interlaced {
		if err := fr.deinterlace(r); err != nil {
			fr.Release()
			return nil, err
		}
	}

	if fr.Palette, err = clonePalette(f.alloc, raw.Palette); err == nil {
		fr.LocalPalette, err = clonePalette(f.alloc, raw.LocalPalette)
	}
	if err != nil {
		fr.Release()
		return nil, err
	}
	return fr, nil
}

func (fr *Frame) deinterlace(r *lzw.Raster) error {
	dst, err := fr.alloc.Alloc(len(fr.Pix))
	if err != nil {
		return err
	}
	if err := r.Deinterlace(dst); err != nil {
		fr.alloc.Free(dst)
		return fmt.Errorf("%w: %w", ErrUnknown, err)
	}
	fr.alloc.Free(fr.Pix)
	fr.Pix = dst
	return nil
}

// Frame reads and decodes frame index in one step.
func (f *File) Frame(index int, opts DecodeOptions) (*Frame, error) {
	raw, err := f.ReadFrame(index)
	if err != nil {
		return nil, err
	}
	defer raw.Release()
	return f.DecodeFrame(raw, opts)
}

// Release returns the frame's buffers to the allocator.
func (fr *Frame) Release() {
	if fr == nil || fr.alloc == nil {
		return
	}
	fr.alloc.Free(fr.Pix)
	freePalette(fr.alloc, fr.Palette)
	freePalette(fr.alloc, fr.LocalPalette)
	fr.Pix, fr.Palette, fr.LocalPalette = nil, nil, nil
}

// At returns the palette index of pixel (x, y) of the frame.
func (fr *Frame) At(x, y int) byte {
	row := fr.Pix[y*fr.Pitch:]
	if fr.Bpp == 4 {
		b := row[x>>1]
		if x&1 == 0 {
			return b >> 4
		}
		return b & 0x0f
	}
	return row[x]
}

func clonePalette(alloc Allocator, p *Palette) (*Palette, error) {
	if p == nil {
		return nil, nil
	}
	b, err := alloc.Alloc(len(p))
	if err != nil {
		return nil, err
	}
	c := (*Palette)(b)
	*c = *p
	return c, nil
}
