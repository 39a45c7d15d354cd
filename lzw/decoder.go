// Package lzw implements the variable-width LZW decoder shared by GIF and
// TIFF image data, writing straight into a line-structured raster.
package lzw

import (
	"errors"
	"fmt"
)

// Mode selects the bit order and code-width rules of a stream.
type Mode int

const (
	// GIF streams pack codes LSB-first and widen after code 2^n-1 is assigned.
	GIF Mode = iota
	// TIFF streams pack codes MSB-first and widen one code early.
	TIFF
)

func (m Mode) String() string {
	switch m {
	case GIF:
		return "gif"
	case TIFF:
		return "tiff"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

var (
	ErrChainOverflow = errors.New("lzw: code chain overflows pixel scratch buffer")
	ErrShortImage    = errors.New("lzw: not enough image data")
	ErrOverflow      = errors.New("lzw: output overflows raster")
	ErrLiteralWidth  = errors.New("lzw: literal width out of range")
	ErrRaster        = errors.New("lzw: inconsistent raster geometry")
	ErrUndefinedCode = errors.New("lzw: code used before it was defined")
)

// sink receives resolved pixel runs. It reports false once it can take no more.
type sink interface {
	emit(run []byte) (bool, error)
}

// Decoder holds the dictionary and scratch space for one stream at a time. It
// can be reused across frames of the same mode and literal width.
type Decoder struct {
	mode     Mode
	litWidth int

	tab     table
	scratch [maxCodes]byte
	br      BitReader
}

// NewDecoder returns a decoder for streams whose literal codes are litWidth
// bits wide (the GIF "minimum code size"; always 8 for TIFF).
func NewDecoder(mode Mode, litWidth int) (*Decoder, error) {
	if litWidth < 1 || litWidth > 8 {
		return nil, fmt.Errorf("%w: %d", ErrLiteralWidth, litWidth)
	}
	if mode != GIF && mode != TIFF {
		return nil, fmt.Errorf("lzw: unknown mode %v", mode)
	}
	return &Decoder{mode: mode, litWidth: litWidth}, nil
}

// run decodes src into s until the end-of-information code, the end of the
// input, or until s is full.
func (d *Decoder) run(src []byte, s sink) error {
	cc := uint16(1) << d.litWidth
	eoi := cc + 1
	delta := 0
	if d.mode == TIFF {
		delta = 1
	}
	d.br.Reset(src, d.mode == TIFF)
	d.tab.init(cc)

reset:
	for {
		width := uint(d.litWidth + 1)
		next := int(cc) + 2
		limit := 1<<width - delta
		d.tab.reset(cc)
		old := terminal

		for {
			code := d.br.Read(width)
			if d.br.Exhausted() {
				return nil
			}
			if code == cc {
				continue reset
			}
			if code == eoi {
				return nil
			}
			// Only the code about to be assigned may refer to itself.
			if code > eoi && d.tab.link[code] == unassigned && (old == terminal || int(code) != next) {
				return fmt.Errorf("%w: %d with next code %d", ErrUndefinedCode, code, next)
			}
			if old != terminal {
				// A frozen 12-bit table keeps decoding without new entries.
				if next < limit {
					d.tab.add(uint16(next), old, code)
				}
				next++
				if next >= limit && width < MaxWidth {
					width++
					limit = limit<<1 + delta
				}
			}
			run, err := d.tab.resolve(code, d.scratch[:])
			if err != nil {
				return err
			}
			more, err := s.emit(run)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
			old = code
		}
	}
}

// Decode expands src into r, one row after another from the top. On a short or
// corrupt stream it fails unless ignoreErrors is set, in which case the rows
// decoded so far are kept and the rest are left as they were.
func (d *Decoder) Decode(src []byte, r *Raster, ignoreErrors bool) error {
	if err := r.validate(d.mode); err != nil {
		return err
	}
	e := newEmitter(r, d.mode)
	e.seek(0, r.Height)
	err := d.run(src, e)
	if err == nil && e.rows > 0 {
		err = fmt.Errorf("%w: %d of %d rows missing", ErrShortImage, e.rows, r.Height)
	}
	return filter(err, ignoreErrors)
}

// DecodeStrips expands a stripped image, each strip an independent stream of
// rowsPerStrip rows (the last may be shorter). The byte offset of every strip
// start is recorded in r.StripOffsets.
func (d *Decoder) DecodeStrips(strips [][]byte, rowsPerStrip int, r *Raster, ignoreErrors bool) error {
	if err := r.validate(d.mode); err != nil {
		return err
	}
	if rowsPerStrip <= 0 {
		return fmt.Errorf("%w: %d rows per strip", ErrRaster, rowsPerStrip)
	}
	r.StripOffsets = r.StripOffsets[:0]
	e := newEmitter(r, d.mode)
	for i, strip := range strips {
		top := i * rowsPerStrip
		if top >= r.Height {
			break
		}
		rows := min(rowsPerStrip, r.Height-top)
		e.seek(top, rows)
		r.StripOffsets = append(r.StripOffsets, e.pos)
		err := d.run(strip, e)
		if err == nil && e.rows > 0 {
			err = fmt.Errorf("%w: strip %d short by %d rows", ErrShortImage, i, e.rows)
		}
		if err = filter(err, ignoreErrors); err != nil {
			return err
		}
	}
	if covered := len(strips) * rowsPerStrip; covered < r.Height {
		return filter(fmt.Errorf("%w: strips cover %d of %d rows", ErrShortImage, covered, r.Height), ignoreErrors)
	}
	return nil
}

// filter drops the errors a caller may choose to live with.
func filter(err error, ignoreErrors bool) error {
	if err == nil {
		return nil
	}
	if ignoreErrors && (errors.Is(err, ErrShortImage) || errors.Is(err, ErrChainOverflow) || errors.Is(err, ErrUndefinedCode)) {
		return nil
	}
	return err
}

// appendSink collects pixels without any row structure.
type appendSink struct {
	out []byte
	max int
}

func (a *appendSink) emit(run []byte) (bool, error) {
	if a.max > 0 && len(a.out)+len(run) >= a.max {
		a.out = append(a.out, run[:a.max-len(a.out)]...)
		return false, nil
	}
	a.out = append(a.out, run...)
	return true, nil
}

// Expand decodes a whole stream into a flat slice of pixel values, stopping
// after limit values when limit > 0. A stream holding nothing but control
// codes yields an empty slice.
func Expand(src []byte, mode Mode, litWidth int, limit int) ([]byte, error) {
	d, err := NewDecoder(mode, litWidth)
	if err != nil {
		return nil, err
	}
	a := &appendSink{out: []byte{}, max: limit}
	if err := d.run(src, a); err != nil {
		return a.out, err
	}
	return a.out, nil
}
