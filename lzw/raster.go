package lzw

import "fmt"

// Raster is the destination of a decode: Height rows of Pitch bytes each. In
// GIF mode pixels are 8 bits (one per byte) or 4 bits (two per byte, high
// nibble first); in TIFF mode rows are copied as packed bytes.
type Raster struct {
	Width  int
	Height int
	Bpp    int
	Pitch  int
	Pix    []byte

	// StripOffsets holds the byte offset of each strip start after
	// DecodeStrips. It is kept apart from Pix.
	StripOffsets []int
}

// RowBytes reports how many bytes of a row carry pixels.
func RowBytes(width, bpp int) int {
	switch bpp {
	case 1:
		return (width + 7) >> 3
	case 2:
		return (width + 3) >> 2
	case 4:
		return (width + 1) >> 1
	case 8:
		return width
	}
	return (width * bpp) >> 3
}

// Pitch reports the 4-byte aligned row stride used for decoded frames.
func Pitch(width, bpp int) int {
	switch bpp {
	case 1:
		return ((width + 31) >> 3) &^ 3
	case 32:
		return width * 4
	}
	return (RowBytes(width, bpp) + 3) &^ 3
}

func (r *Raster) validate(mode Mode) error {
	if r == nil {
		return fmt.Errorf("%w: nil raster", ErrRaster)
	}
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("%w: %dx%d", ErrRaster, r.Width, r.Height)
	}
	if mode == GIF && r.Bpp != 4 && r.Bpp != 8 {
		return fmt.Errorf("%w: %d bits per pixel in gif mode", ErrRaster, r.Bpp)
	}
	if r.Pitch < RowBytes(r.Width, r.Bpp) {
		return fmt.Errorf("%w: pitch %d shorter than row", ErrRaster, r.Pitch)
	}
	if len(r.Pix) < r.Pitch*r.Height {
		return fmt.Errorf("%w: %d bytes for %d rows of %d", ErrRaster, len(r.Pix), r.Height, r.Pitch)
	}
	return nil
}

// emitter copies resolved runs into a Raster row by row.
type emitter struct {
	r        *Raster
	packed   bool // two pixels per byte
	rowLen   int  // pixels (gif) or bytes (tiff) per row
	rowBytes int

	pos    int // next byte of Pix to write
	xcount int // pixels or bytes left in the current row
	rows   int // rows left
}

func newEmitter(r *Raster, mode Mode) *emitter {
	e := &emitter{
		r:        r,
		rowBytes: RowBytes(r.Width, r.Bpp),
	}
	if mode == GIF {
		e.packed = r.Bpp == 4
		e.rowLen = r.Width
	} else {
		e.rowLen = e.rowBytes
	}
	return e
}

// seek starts a fresh run of rows at row top.
func (e *emitter) seek(top, rows int) {
	e.pos = top * e.r.Pitch
	e.xcount = e.rowLen
	e.rows = rows
}

func (e *emitter) emit(run []byte) (bool, error) {
	for len(run) > 0 && e.rows > 0 {
		if e.xcount > len(run) {
			if err := e.copy(run); err != nil {
				return false, err
			}
			e.xcount -= len(run)
			return true, nil
		}
		if err := e.copy(run[:e.xcount]); err != nil {
			return false, err
		}
		run = run[e.xcount:]
		// Skip row padding; an odd packed row leaves pos on its last byte.
		e.pos += e.r.Pitch - e.rowBytes
		if e.packed && e.r.Width&1 == 1 {
			e.pos++
		}
		e.xcount = e.rowLen
		e.rows--
	}
	return e.rows > 0, nil
}

func (e *emitter) copy(px []byte) error {
	pix := e.r.Pix
	if !e.packed {
		if e.pos+len(px) > len(pix) {
			return fmt.Errorf("%w: write of %d at %d", ErrOverflow, len(px), e.pos)
		}
		e.pos += copy(pix[e.pos:], px)
		return nil
	}
	x := e.rowLen - e.xcount
	for _, v := range px {
		if e.pos >= len(pix) {
			return fmt.Errorf("%w: nibble at %d", ErrOverflow, e.pos)
		}
		if x&1 == 0 {
			pix[e.pos] = v << 4
		} else {
			pix[e.pos] |= v & 0x0f
			e.pos++
		}
		x++
	}
	return nil
}

// interlaceScan defines the ordering for a pass of the interlace algorithm.
type interlaceScan struct {
	skip, start int
}

// interlacing represents the set of scans in an interlaced GIF image.
var interlacing = []interlaceScan{
	{8, 0}, // Group 1 : Every 8th. row, starting with row 0.
	{8, 4}, // Group 2 : Every 8th. row, starting with row 4.
	{4, 2}, // Group 3 : Every 4th. row, starting with row 2.
	{2, 1}, // Group 4 : Every 2nd. row, starting with row 1.
}

// Deinterlace writes the rows of r into dst in display order and makes dst
// the raster's pixel buffer. dst must hold at least Pitch*Height bytes.
func (r *Raster) Deinterlace(dst []byte) error {
	n := r.Pitch * r.Height
	if len(dst) < n || len(r.Pix) < n {
		return fmt.Errorf("%w: deinterlace into %d bytes, need %d", ErrRaster, len(dst), n)
	}
	src := 0
	for _, pass := range interlacing {
		for y := pass.start; y < r.Height; y += pass.skip {
			copy(dst[y*r.Pitch:(y+1)*r.Pitch], r.Pix[src:src+r.Pitch])
			src += r.Pitch
		}
	}
	r.Pix = dst
	return nil
}
