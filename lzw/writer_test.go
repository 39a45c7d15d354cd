package lzw

import "bytes"

// codeWriter packs variable-width codes the way a GIF (LSB) or TIFF (MSB)
// encoder would.
type codeWriter struct {
	buf bytes.Buffer
	acc uint32
	n   uint
	msb bool
}

func (w *codeWriter) write(code uint16, width uint) {
	if w.msb {
		w.acc = w.acc<<width | uint32(code)
		w.n += width
		for w.n >= 8 {
			w.buf.WriteByte(byte(w.acc >> (w.n - 8)))
			w.n -= 8
		}
		return
	}
	w.acc |= uint32(code) << w.n
	w.n += width
	for w.n >= 8 {
		w.buf.WriteByte(byte(w.acc))
		w.acc >>= 8
		w.n -= 8
	}
}

func (w *codeWriter) flush() []byte {
	if w.n > 0 {
		if w.msb {
			w.buf.WriteByte(byte(w.acc << (8 - w.n)))
		} else {
			w.buf.WriteByte(byte(w.acc))
		}
		w.acc, w.n = 0, 0
	}
	return w.buf.Bytes()
}

// literalStream encodes px with 8-bit literals only, following the code
// width schedule of mode, framed by a clear code and an end code.
func literalStream(mode Mode, px []byte) []byte {
	return literalStreamThen(mode, px)
}

// literalStreamThen is literalStream with extra codes written just before the
// end code, at whatever width the literals left the stream.
func literalStreamThen(mode Mode, px []byte, extra ...uint16) []byte {
	w := &codeWriter{msb: mode == TIFF}
	delta := 0
	if mode == TIFF {
		delta = 1
	}
	width := uint(9)
	next := 258
	limit := 1<<width - delta
	w.write(256, width)
	for i, p := range px {
		w.write(uint16(p), width)
		if i == 0 {
			continue
		}
		next++
		if next >= limit && width < MaxWidth {
			width++
			limit = limit<<1 + delta
		}
	}
	for _, c := range extra {
		w.write(c, width)
	}
	w.write(257, width)
	return w.flush()
}
