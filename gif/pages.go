package gif

import "fmt"

// Block introducers.
const (
	sExtension       = 0x21
	sImageDescriptor = 0x2C
	sTrailer         = 0x3B
)

// Extension labels.
const (
	ePlainText      = 0x01
	eGraphicControl = 0xF9
	eComment        = 0xFE
	eApplication    = 0xFF
)

// Masks for the packed fields of the screen and image descriptors.
const (
	fColorTable         = 1 << 7
	fInterlace          = 1 << 6
	fColorTableBitsMask = 7
)

const (
	maxPages      = 1 << 14
	scanHighWater = 512
)

// gifBits maps the LZW code size onto the pixel depths frames are decoded to.
var gifBits = [9]int{1, 4, 4, 4, 8, 8, 8, 8, 8}

func colorTableSize(flags byte) int {
	return 3 << (flags&fColorTableBitsMask + 1)
}

// pageScanner gives bounds-checked access to the file by absolute offset.
// For streamed files it keeps a window of the file and slides it forward
// once a read crosses the high-water mark near its end.
type pageScanner struct {
	f    *File
	buf  []byte
	base int // file offset of buf[0]
	n    int // valid bytes in buf
	err  error
}

func (f *File) newScanner() (*pageScanner, error) {
	s := &pageScanner{f: f}
	if f.State == StateLoaded {
		s.buf = f.data
		s.n = len(f.data)
		return s, nil
	}
	size := min(f.bufSize, f.Size)
	buf, err := f.alloc.Alloc(max(size, headerLength))
	if err != nil {
		return nil, err
	}
	s.buf = buf
	s.fill(0)
	return s, nil
}

func (s *pageScanner) release() {
	if s.f.State == StateOpen {
		s.f.alloc.Free(s.buf)
	}
	s.buf = nil
}

func (s *pageScanner) fill(off int) {
	s.base = off
	s.n, s.err = s.f.readAt(s.buf, off)
}

// at returns the byte at file offset off; ok is false past the end of the
// data or after a read error.
func (s *pageScanner) at(off int) (byte, bool) {
	if off < 0 || off >= s.f.Size || s.err != nil {
		return 0, false
	}
	if s.f.State == StateOpen {
		rel := off - s.base
		high := max(len(s.buf)-scanHighWater, len(s.buf)/2)
		if rel < 0 || rel >= s.n || (rel > high && s.base+s.n < s.f.Size) {
			s.fill(off)
			if s.err != nil || s.n == 0 {
				return 0, false
			}
		}
	}
	return s.buf[off-s.base], true
}

// skipBlocks steps over a chain of data sub-blocks and its terminator.
func (s *pageScanner) skipBlocks(off int) (int, bool) {
	for {
		n, ok := s.at(off)
		if !ok {
			return off, false
		}
		off++
		if n == 0 {
			return off, true
		}
		off += int(n)
		if off > s.f.Size {
			return off, false
		}
	}
}

// CountPages scans the file and rebuilds the page table without decoding
// any image data. A structural problem in the tail of the file drops the
// frame it occurs in and ends the scan; only an unreadable logical screen
// descriptor is an error.
func (f *File) CountPages() error {
	s, err := f.newScanner()
	if err != nil {
		return err
	}
	defer s.release()

	var hdr [headerLength]byte
	for i := range hdr {
		b, ok := s.at(i)
		if !ok {
			return fmt.Errorf("%w: truncated logical screen descriptor", ErrBadHeader)
		}
		hdr[i] = b
	}
	f.Width = le16(hdr[6:])
	f.Height = le16(hdr[8:])
	flags := hdr[10]
	f.Bpp = gifBits[flags&fColorTableBitsMask]
	f.Background = int(hdr[11])

	off := headerLength
	if flags&fColorTable != 0 {
		off += colorTableSize(flags)
	}

	offsets := []int{0}
	pages := 1
	backOff := func(why string, at int) {
		pages--
		if s.err != nil {
			why = s.err.Error()
		}
		f.logf("gif: %s at offset %d, dropping frame %d", why, at, pages)
	}

scan:
	for pages < maxPages {
	blocks:
		for {
			c, ok := s.at(off)
			if !ok {
				backOff("unexpected end of data", off)
				break scan
			}
			switch c {
			case sTrailer:
				// The previous frame was the last one after all.
				pages--
				break scan
			case sExtension:
				if off, ok = s.skipBlocks(off + 2); !ok {
					backOff("extension overruns data", off)
					break scan
				}
			case sImageDescriptor:
				break blocks
			default:
				backOff(fmt.Sprintf("stray byte %#02x", c), off)
				break scan
			}
		}

		desc, ok := s.at(off + 9)
		if !ok {
			backOff("truncated image descriptor", off)
			break
		}
		off += 10
		if desc&fColorTable != 0 {
			off += colorTableSize(desc)
		}
		off++ // LZW code size
		if off, ok = s.skipBlocks(off); !ok {
			backOff("image data overruns data", off)
			break
		}

		if c, ok := s.at(off); !ok || c == sTrailer {
			break
		}
		offsets = append(offsets, off)
		pages++
	}

	f.Pages = max(pages, 0)
	f.Offsets = nil
	if f.Pages > 1 {
		f.Offsets = append(offsets[:f.Pages], f.Size)
	}
	return nil
}
