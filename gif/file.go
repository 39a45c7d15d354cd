// Package gif decodes GIF87a/89a files frame by frame and composites the
// frames onto a persistent canvas in a 16, 24 or 32 bit pixel format.
package gif

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/svanichkin/gifplay/lzw"
)

// State tells whether a File holds its bytes or reads them on demand.
type State int

const (
	StateLoaded State = iota // whole file in memory
	StateOpen                // streamed through an io.ReaderAt
)

const (
	sigLength       = 6
	screenDescLen   = 7
	headerLength    = sigLength + screenDescLen
	defaultScanSize = 1 << 20
)

// Options configures a File. The zero value is usable.
type Options struct {
	// Allocator supplies every buffer the file and its frames use. A fresh
	// Arena is created when nil.
	Allocator Allocator
	// Logger receives notes about recovered corruption. Nothing is logged
	// when nil.
	Logger *log.Logger
	// BufferSize is the working window of the streaming page scan.
	BufferSize int
}

// File is an opened GIF. Load and Open run the page scan, so the page table
// and logical screen fields are ready on return.
type File struct {
	State State
	Size  int

	Width      int
	Height     int
	Bpp        int
	Background int

	// Pages is the number of usable frames. Offsets holds Pages+1 entries,
	// the last one equal to Size, or is nil when there is a single frame.
	Pages   int
	Offsets []int

	data    []byte
	r       io.ReaderAt
	alloc   Allocator
	logger  *log.Logger
	bufSize int

	decoders [9]*lzw.Decoder
}

// Load wraps an in-memory GIF.
func Load(data []byte, opts *Options) (*File, error) {
	f := newFile(opts)
	f.State = StateLoaded
	f.data = data
	f.Size = len(data)
	if err := checkSignature(data); err != nil {
		return nil, err
	}
	if err := f.CountPages(); err != nil {
		return nil, err
	}
	return f, nil
}

// Open reads a GIF of the given size through r. Only the bytes of the frame
// being read are held in memory.
func Open(r io.ReaderAt, size int64, opts *Options) (*File, error) {
	if r == nil || size < 0 || size > int64(^uint32(0)>>1) {
		return nil, fmt.Errorf("%w: reader of size %d", ErrInvalidParam, size)
	}
	f := newFile(opts)
	f.State = StateOpen
	f.r = r
	f.Size = int(size)
	var hdr [headerLength]byte
	n, err := f.readAt(hdr[:], 0)
	if err != nil {
		return nil, err
	}
	if err := checkSignature(hdr[:n]); err != nil {
		return nil, err
	}
	if err := f.CountPages(); err != nil {
		return nil, err
	}
	return f, nil
}

func newFile(opts *Options) *File {
	if opts == nil {
		opts = &Options{}
	}
	f := &File{
		alloc:   allocatorOr(opts.Allocator),
		logger:  opts.Logger,
		bufSize: opts.BufferSize,
	}
	if f.bufSize <= 0 {
		f.bufSize = defaultScanSize
	}
	return f
}

func checkSignature(b []byte) error {
	if len(b) < headerLength {
		return fmt.Errorf("%w: %d bytes is shorter than a header", ErrBadHeader, len(b))
	}
	if sig := string(b[:sigLength]); sig != "GIF87a" && sig != "GIF89a" {
		return fmt.Errorf("%w: signature %q", ErrBadHeader, sig)
	}
	return nil
}

// readAt fills p from offset off and reports how many bytes were available.
// Running into the end of the file is not an error.
func (f *File) readAt(p []byte, off int) (int, error) {
	if off >= f.Size {
		return 0, nil
	}
	if rest := f.Size - off; len(p) > rest {
		p = p[:rest]
	}
	if f.State == StateLoaded {
		return copy(p, f.data[off:]), nil
	}
	n, err := f.r.ReadAt(p, int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("gif: read %d bytes at %d: %w", len(p), off, err)
	}
	return n, nil
}

// Allocator returns the allocator the file and its frames draw from.
func (f *File) Allocator() Allocator {
	return f.alloc
}

func (f *File) logf(format string, v ...any) {
	if f.logger != nil {
		f.logger.Printf(format, v...)
	}
}

// decoder returns the LZW decoder for a code size, reusing its tables
// across frames.
func (f *File) decoder(codeSize int) (*lzw.Decoder, error) {
	if codeSize < 1 || codeSize >= len(f.decoders) {
		return nil, fmt.Errorf("%w: code size %d", ErrBadHeader, codeSize)
	}
	if d := f.decoders[codeSize]; d != nil {
		return d, nil
	}
	d, err := lzw.NewDecoder(lzw.GIF, codeSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompression, err)
	}
	f.decoders[codeSize] = d
	return d, nil
}

func le16(b []byte) int {
	return int(b[0]) | int(b[1])<<8
}
