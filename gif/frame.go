package gif

import (
	"bytes"
	"fmt"

	"github.com/svanichkin/gifplay/lzw"
)

const maxInfoLen = 127

// RawFrame is one frame as found in the file, with its LZW payload gathered
// into a single contiguous stream. It is produced by ReadFrame and must be
// released with Release.
type RawFrame struct {
	Index int

	// Logical screen; set on frame 0 only.
	ScreenWidth  int
	ScreenHeight int
	Background   int

	X, Y, Width, Height int

	CodeSize   int
	Bpp        int
	Pitch      int
	Interlaced bool

	// Palette is the global color table, read with frame 0. LocalPalette is
	// this frame's own table.
	Palette      *Palette
	LocalPalette *Palette

	HasControl  bool
	Disposal    Disposal
	Transparent int // -1 when the frame has no transparent index
	Delay       int // milliseconds
	UserInput   bool

	LoopCount int // NETSCAPE2.0 repeat count, -1 when absent
	Comment   string
	Text      string

	// Data is the LZW code stream with the sub-block lengths removed.
	Data []byte

	buf   []byte
	alloc Allocator
}

// ReadFrame parses frame index. The frame's bytes are copied into a buffer
// from the file allocator and its payload is re-packed in place. A frame
// whose rectangle does not fit the logical screen fails with ErrUnknown.
func (f *File) ReadFrame(index int) (*RawFrame, error) {
	if f.Pages <= 0 || index < 0 || index >= f.Pages {
		return nil, fmt.Errorf("%w: frame %d of %d", ErrInvalidParam, index, f.Pages)
	}
	start, size := 0, f.Size
	if f.Pages > 1 {
		start = f.Offsets[index]
		size = f.Offsets[index+1] - start
	}
	if size <= 0 || start > f.Size {
		return nil, fmt.Errorf("%w: frame %d spans %d bytes at %d", ErrUnknown, index, size, start)
	}

	buf, err := f.alloc.Alloc(size)
	if err != nil {
		return nil, err
	}
	fr := &RawFrame{
		Index:       index,
		Transparent: -1,
		Delay:       100,
		LoopCount:   -1,
		buf:         buf,
		alloc:       f.alloc,
	}
	n, err := f.readAt(buf, start)
	if err == nil {
		err = fr.parse(buf[:n])
	}
	// Nothing downstream clips, so the rectangle has to fit before any
	// pixel buffer is sized from it.
	if err == nil && (fr.X+fr.Width > f.Width || fr.Y+fr.Height > f.Height) {
		err = fmt.Errorf("%w: %dx%d image at %d,%d outside %dx%d screen",
			ErrUnknown, fr.Width, fr.Height, fr.X, fr.Y, f.Width, f.Height)
	}
	if err != nil {
		fr.Release()
		return nil, fmt.Errorf("frame %d: %w", index, err)
	}
	return fr, nil
}

// Release returns the frame's buffers to the allocator. It is safe to call
// more than once.
func (fr *RawFrame) Release() {
	if fr == nil || fr.alloc == nil {
		return
	}
	fr.alloc.Free(fr.buf)
	freePalette(fr.alloc, fr.Palette)
	freePalette(fr.alloc, fr.LocalPalette)
	fr.buf, fr.Data, fr.Palette, fr.LocalPalette = nil, nil, nil, nil
}

// cursor walks a frame's bytes; every read is checked against the end.
type cursor struct {
	p   []byte
	off int
}

func (c *cursor) byte() (byte, bool) {
	if c.off >= len(c.p) {
		return 0, false
	}
	c.off++
	return c.p[c.off-1], true
}

func (c *cursor) next(n int) ([]byte, bool) {
	if n < 0 || c.off+n > len(c.p) {
		return nil, false
	}
	c.off += n
	return c.p[c.off-n : c.off], true
}

// subBlock reads one data sub-block. An empty block is the terminator.
func (c *cursor) subBlock() ([]byte, bool) {
	n, ok := c.byte()
	if !ok {
		return nil, false
	}
	return c.next(int(n))
}

func (c *cursor) skipBlocks() bool {
	for {
		b, ok := c.subBlock()
		if !ok {
			return false
		}
		if len(b) == 0 {
			return true
		}
	}
}

func (fr *RawFrame) parse(p []byte) error {
	c := &cursor{p: p}
	if fr.Index == 0 {
		if err := fr.readScreen(c); err != nil {
			return err
		}
	}

	for {
		b, ok := c.byte()
		if !ok {
			return fmt.Errorf("%w: no image descriptor", ErrBadHeader)
		}
		if b == sImageDescriptor {
			break
		}
		if b != sExtension {
			return fmt.Errorf("%w: unexpected byte %#02x at %d", ErrBadHeader, b, c.off-1)
		}
		if err := fr.readExtension(c); err != nil {
			return err
		}
	}

	desc, ok := c.next(9)
	if !ok {
		return fmt.Errorf("%w: truncated image descriptor", ErrBadHeader)
	}
	fr.X = le16(desc[0:])
	fr.Y = le16(desc[2:])
	fr.Width = le16(desc[4:])
	fr.Height = le16(desc[6:])
	flags := desc[8]
	fr.Interlaced = flags&fInterlace != 0
	if flags&fColorTable != 0 {
		table, ok := c.next(colorTableSize(flags))
		if !ok {
			return fmt.Errorf("%w: truncated local color table", ErrBadHeader)
		}
		pal, err := newPalette(fr.alloc, table)
		if err != nil {
			return err
		}
		// Frame 0 without a global table promotes its local one.
		if fr.Index == 0 && fr.Palette == nil {
			fr.Palette = pal
		} else {
			fr.LocalPalette = pal
		}
	}

	cs, ok := c.byte()
	if !ok || cs < 1 || int(cs) >= len(gifBits) {
		return fmt.Errorf("%w: LZW code size %d", ErrBadHeader, cs)
	}
	fr.CodeSize = int(cs)
	fr.Bpp = gifBits[cs]
	fr.Pitch = lzw.Pitch(fr.Width, fr.Bpp)

	// The packed payload never gets ahead of the cursor, so it can be
	// gathered at the front of the same buffer.
	n := 0
	for {
		blk, ok := c.subBlock()
		if !ok {
			return fmt.Errorf("%w: image data overruns frame at %d", ErrDecompression, c.off)
		}
		if len(blk) == 0 {
			break
		}
		n += copy(p[n:], blk)
	}
	fr.Data = p[:n]
	return nil
}

func (fr *RawFrame) readScreen(c *cursor) error {
	hdr, ok := c.next(headerLength)
	if !ok {
		return fmt.Errorf("%w: truncated logical screen descriptor", ErrBadHeader)
	}
	fr.ScreenWidth = le16(hdr[6:])
	fr.ScreenHeight = le16(hdr[8:])
	fr.Background = int(hdr[11])
	if flags := hdr[10]; flags&fColorTable != 0 {
		table, ok := c.next(colorTableSize(flags))
		if !ok {
			return fmt.Errorf("%w: truncated global color table", ErrBadHeader)
		}
		pal, err := newPalette(fr.alloc, table)
		if err != nil {
			return err
		}
		fr.Palette = pal
	}
	return nil
}

func (fr *RawFrame) readExtension(c *cursor) error {
	label, ok := c.byte()
	if !ok {
		return fmt.Errorf("%w: truncated extension", ErrBadHeader)
	}
	overrun := func() error {
		return fmt.Errorf("%w: extension %#02x overruns frame", ErrBadHeader, label)
	}

	var text *string
	switch label {
	case eGraphicControl:
		if c.off < len(c.p) && c.p[c.off] == 4 {
			blk, ok := c.subBlock()
			if !ok {
				return overrun()
			}
			fr.HasControl = true
			fr.Disposal = disposalOf(blk[0])
			fr.UserInput = blk[0]&2 != 0
			fr.Delay = le16(blk[1:]) * 10
			// 0-20ms frames play at 10fps.
			if fr.Delay < 30 {
				fr.Delay = 100
			}
			if blk[0]&1 != 0 {
				fr.Transparent = int(blk[3])
			}
		}
	case eApplication:
		netscape := false
		for {
			blk, ok := c.subBlock()
			if !ok {
				return overrun()
			}
			if len(blk) == 0 {
				return nil
			}
			switch {
			case len(blk) == 11:
				netscape = string(blk) == "NETSCAPE2.0"
			case netscape && len(blk) == 3 && blk[0] == 1:
				fr.LoopCount = le16(blk[1:])
				netscape = false
			}
		}
	case eComment:
		text = &fr.Comment
	case ePlainText:
		text = &fr.Text
	default:
		return fmt.Errorf("%w: unknown extension %#02x", ErrBadHeader, label)
	}

	if text != nil {
		blk, ok := c.subBlock()
		if !ok {
			return overrun()
		}
		if len(blk) == 0 {
			return nil
		}
		*text = clipText(blk)
	}
	if !c.skipBlocks() {
		return overrun()
	}
	return nil
}

// clipText keeps at most maxInfoLen bytes of a text block, cut at a NUL.
func clipText(b []byte) string {
	b = b[:min(len(b), maxInfoLen)]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
