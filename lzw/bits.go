package lzw

import "encoding/binary"

// BitReader pulls variable-width codes out of a packed byte stream through a
// 64-bit look-ahead word. GIF streams are read LSB-first, TIFF streams
// MSB-first.
type BitReader struct {
	src    []byte
	off    int  // byte offset of word within src
	bitnum uint // bits of word already consumed
	word   uint64
	msb    bool
}

// NewBitReader returns a reader positioned at the first bit of src.
func NewBitReader(src []byte, msb bool) *BitReader {
	br := &BitReader{}
	br.Reset(src, msb)
	return br
}

// Reset rewinds the reader onto a new stream.
func (br *BitReader) Reset(src []byte, msb bool) {
	br.src = src
	br.off = 0
	br.bitnum = 0
	br.msb = msb
	br.load()
}

// load fills word from src[off:]; bytes past the end read as zero.
func (br *BitReader) load() {
	var tmp [8]byte
	b := tmp[:]
	if br.off+8 <= len(br.src) {
		b = br.src[br.off : br.off+8]
	} else if br.off < len(br.src) {
		copy(tmp[:], br.src[br.off:])
	}
	if br.msb {
		br.word = binary.BigEndian.Uint64(b)
	} else {
		br.word = binary.LittleEndian.Uint64(b)
	}
}

// Read returns the next width-bit code. width must be in 1..MaxWidth.
func (br *BitReader) Read(width uint) uint16 {
	if br.bitnum > 64-width {
		br.off += int(br.bitnum >> 3)
		br.bitnum &= 7
		br.load()
	}
	var code uint64
	if br.msb {
		code = br.word >> (64 - width - br.bitnum)
	} else {
		code = br.word >> br.bitnum
	}
	br.bitnum += width
	return uint16(code & (1<<width - 1))
}

// Consumed reports how many bits have been read.
func (br *BitReader) Consumed() int {
	return br.off*8 + int(br.bitnum)
}

// Exhausted reports whether the last code read ran past the end of the stream.
func (br *BitReader) Exhausted() bool {
	return br.Consumed() > len(br.src)*8
}
