package gif

import "fmt"

// Palette holds 256 color entries of three bytes each. Entries are kept in
// display byte order (blue, green, red): the red and blue bytes of the file's
// color table are swapped when it is read, so a 24-bit canvas takes the
// triple as it is.
type Palette [768]byte

// RGB returns entry i as red, green, blue.
func (p *Palette) RGB(i int) (r, g, b uint8) {
	return p[i*3+2], p[i*3+1], p[i*3]
}

// newPalette allocates a palette and fills it from a file color table.
func newPalette(alloc Allocator, table []byte) (*Palette, error) {
	if len(table) > len(Palette{}) {
		return nil, fmt.Errorf("%w: color table of %d bytes", ErrBadHeader, len(table))
	}
	b, err := alloc.Alloc(len(Palette{}))
	if err != nil {
		return nil, err
	}
	p := (*Palette)(b)
	copy(p[:], table)
	p.swapRB()
	return p, nil
}

func freePalette(alloc Allocator, p *Palette) {
	if p != nil {
		alloc.Free(p[:])
	}
}

func (p *Palette) swapRB() {
	for i := 0; i < len(p); i += 3 {
		p[i], p[i+2] = p[i+2], p[i]
	}
}

func (p *Palette) rgb565() (lut [256]uint16) {
	for i := range lut {
		lut[i] = uint16(p[i*3]>>3) | uint16(p[i*3+1]>>2)<<5 | uint16(p[i*3+2]>>3)<<11
	}
	return lut
}

func (p *Palette) argb() (lut [256]uint32) {
	for i := range lut {
		lut[i] = 0xff000000 | uint32(p[i*3+2])<<16 | uint32(p[i*3+1])<<8 | uint32(p[i*3])
	}
	return lut
}

// grayPalette is used when a file carries no color table at all. Its ramp
// step follows the frame depth so that every index of a 4-bit frame spans
// the full range.
func grayPalette(bpp int) *Palette {
	step := 0x3f
	switch bpp {
	case 8:
		step = 1
	case 4:
		step = 0x11
	}
	p := new(Palette)
	for i, v := 0, 0; i < 256; i, v = i+1, v+step {
		p[i*3] = byte(v)
		p[i*3+1] = byte(v)
		p[i*3+2] = byte(v)
	}
	return p
}
