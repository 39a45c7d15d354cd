package gif

import (
	"bytes"
	"compress/lzw"
	"image"
	"image/color"
	stdgif "image/gif"
	"testing"

	"github.com/stretchr/testify/require"
)

func testPalette(n int) color.Palette {
	p := make(color.Palette, n)
	for i := range p {
		p[i] = color.RGBA{uint8(i * 17), uint8(255 - i*9), uint8(i*5 + 3), 0xff}
	}
	return p
}

// pattern fills a paletted image with a value derived from x, y and seed.
func pattern(r image.Rectangle, pal color.Palette, seed int) *image.Paletted {
	img := image.NewPaletted(r, pal)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetColorIndex(x, y, uint8((x*3+y*5+seed)%len(pal)))
		}
	}
	return img
}

// animated builds an n-frame full-screen animation with a global palette.
func animated(t *testing.T, n, w, h, colors int) []byte {
	t.Helper()
	pal := testPalette(colors)
	g := &stdgif.GIF{
		Config:    image.Config{ColorModel: pal, Width: w, Height: h},
		LoopCount: 0,
	}
	for i := 0; i < n; i++ {
		g.Image = append(g.Image, pattern(image.Rect(0, 0, w, h), pal, i))
		g.Delay = append(g.Delay, 10)
		g.Disposal = append(g.Disposal, stdgif.DisposalNone)
	}
	return encode(t, g)
}

func encode(t *testing.T, g *stdgif.GIF) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, stdgif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func load(t *testing.T, data []byte) *File {
	t.Helper()
	f, err := Load(data, &Options{Allocator: NewArena(0)})
	require.NoError(t, err)
	return f
}

// gifBuilder assembles files byte by byte for cases the reference encoder
// cannot produce.
type gifBuilder struct {
	bytes.Buffer
}

func newGIFBuilder(w, h int, global color.Palette, background byte) *gifBuilder {
	b := &gifBuilder{}
	b.WriteString("GIF89a")
	b.le16(w)
	b.le16(h)
	if global == nil {
		b.Write([]byte{0, background, 0})
		return b
	}
	b.Write([]byte{fColorTable | tableBits(len(global)), background, 0})
	b.colorTable(global)
	return b
}

func tableBits(n int) byte {
	bits := byte(0)
	for 2<<bits < n {
		bits++
	}
	return bits
}

func (b *gifBuilder) le16(v int) {
	b.WriteByte(byte(v))
	b.WriteByte(byte(v >> 8))
}

func (b *gifBuilder) colorTable(p color.Palette) {
	size := 2 << tableBits(len(p))
	for i := 0; i < size; i++ {
		var r, g, bl uint32
		if i < len(p) {
			r, g, bl, _ = p[i].RGBA()
		}
		b.Write([]byte{byte(r >> 8), byte(g >> 8), byte(bl >> 8)})
	}
}

func (b *gifBuilder) blocks(data []byte) {
	for len(data) > 0 {
		n := min(len(data), 255)
		b.WriteByte(byte(n))
		b.Write(data[:n])
		data = data[n:]
	}
	b.WriteByte(0)
}

func (b *gifBuilder) control(packed byte, delay int, transparent byte) {
	b.Write([]byte{sExtension, eGraphicControl, 4, packed})
	b.le16(delay)
	b.Write([]byte{transparent, 0})
}

func (b *gifBuilder) extension(label byte, sub ...[]byte) {
	b.Write([]byte{sExtension, label})
	for _, s := range sub {
		b.WriteByte(byte(len(s)))
		b.Write(s)
	}
	b.WriteByte(0)
}

// image writes a descriptor, an optional local table and the LZW-coded
// rows, which must already be in stored order.
func (b *gifBuilder) image(t *testing.T, x, y, w, h int, flags byte, local color.Palette, litWidth int, px []byte) {
	t.Helper()
	b.imageData(x, y, w, h, flags, local, litWidth, lzwBytes(t, litWidth, px))
}

func (b *gifBuilder) imageData(x, y, w, h int, flags byte, local color.Palette, litWidth int, data []byte) {
	b.WriteByte(sImageDescriptor)
	b.le16(x)
	b.le16(y)
	b.le16(w)
	b.le16(h)
	if local != nil {
		flags |= fColorTable | tableBits(len(local))
	}
	b.WriteByte(flags)
	if local != nil {
		b.colorTable(local)
	}
	b.WriteByte(byte(litWidth))
	b.blocks(data)
}

func lzwBytes(t *testing.T, litWidth int, px []byte) []byte {
	t.Helper()
	var data bytes.Buffer
	lw := lzw.NewWriter(&data, lzw.LSB, litWidth)
	_, err := lw.Write(px)
	require.NoError(t, err)
	require.NoError(t, lw.Close())
	return data.Bytes()
}

func (b *gifBuilder) finish() []byte {
	b.WriteByte(sTrailer)
	return b.Bytes()
}
