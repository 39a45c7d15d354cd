package gif

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svanichkin/gifplay/lzw"
)

func rampPalette() *Palette {
	p := new(Palette)
	for i := 0; i < 256; i++ {
		p[i*3] = byte(i)
		p[i*3+1] = byte(i * 3)
		p[i*3+2] = byte(255 - i)
	}
	return p
}

func testFrame(x, y, w, h, bpp int, index func(x, y int) byte) *Frame {
	pitch := lzw.Pitch(w, bpp)
	pix := make([]byte, pitch*(h+1))
	for yy := 0; yy < h; yy++ {
		for xx := 0; xx < w; xx++ {
			v := index(xx, yy)
			if bpp == 4 {
				if xx&1 == 0 {
					pix[yy*pitch+xx/2] |= v << 4
				} else {
					pix[yy*pitch+xx/2] |= v & 0x0f
				}
			} else {
				pix[yy*pitch+xx] = v
			}
		}
	}
	return &Frame{X: x, Y: y, Width: w, Height: h, Bpp: bpp, Pitch: pitch, Pix: pix, Transparent: -1, Delay: 100}
}

func solid(v byte) func(x, y int) byte {
	return func(int, int) byte { return v }
}

func newTestCanvas(t *testing.T, w, h, bpp int, opts *CanvasOptions) *Canvas {
	t.Helper()
	c, err := NewCanvas(w, h, bpp, opts)
	require.NoError(t, err)
	c.SetPalette(rampPalette(), 3)
	t.Cleanup(func() { c.Release() })
	return c
}

func pixel(c *Canvas, x, y int) []byte {
	size := c.Bpp / 8
	o := y*c.Pitch + x*size
	return c.Pix[o : o+size]
}

// encoded returns the canvas bytes of palette entry i.
func encoded(p *Palette, bpp int, i byte) []byte {
	b0, b1, b2 := p[int(i)*3], p[int(i)*3+1], p[int(i)*3+2]
	switch bpp {
	case 16:
		v := uint16(b0>>3) | uint16(b1>>2)<<5 | uint16(b2>>3)<<11
		return []byte{byte(v), byte(v >> 8)}
	case 24:
		return []byte{b0, b1, b2}
	}
	return []byte{b0, b1, b2, 0xff}
}

func TestComposite4BitOn24(t *testing.T) {
	c := newTestCanvas(t, 7, 5, 24, nil)
	for i := range c.Pix {
		c.Pix[i] = 0x55
	}
	index := func(x, y int) byte { return byte(x*5+y) & 0x0f }
	fr := testFrame(2, 1, 5, 3, 4, index)
	fr.Transparent = 6
	require.NoError(t, c.Composite(fr))

	pal := rampPalette()
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			got := pixel(c, x, y)
			fx, fy := x-fr.X, y-fr.Y
			inside := fx >= 0 && fy >= 0 && fx < fr.Width && fy < fr.Height
			if !inside || index(fx, fy) == 6 {
				require.Equal(t, []byte{0x55, 0x55, 0x55}, got, "untouched at %d,%d", x, y)
				continue
			}
			i := int(index(fx, fy))
			require.Equal(t, pal[i*3:i*3+3], got, "at %d,%d", x, y)
		}
	}
	require.Equal(t, 100, c.Delay())
}

func TestCompositeDepths(t *testing.T) {
	pal := rampPalette()
	for _, bpp := range []int{16, 24, 32} {
		for _, src := range []int{4, 8} {
			c := newTestCanvas(t, 9, 4, bpp, nil)
			index := func(x, y int) byte { return byte(x + y*3) }
			require.NoError(t, c.Composite(testFrame(0, 0, 9, 4, src, index)))
			for y := 0; y < 4; y++ {
				for x := 0; x < 9; x++ {
					i := index(x, y)
					if src == 4 {
						i &= 0x0f
					}
					require.Equal(t, encoded(pal, bpp, i), pixel(c, x, y), "bpp %d src %d at %d,%d", bpp, src, x, y)
				}
			}
		}
	}
}

func TestCompositeLocalPalette(t *testing.T) {
	c := newTestCanvas(t, 2, 1, 24, nil)
	global := c.Palette
	fr := testFrame(0, 0, 2, 1, 8, func(x, _ int) byte { return byte(x) })
	fr.LocalPalette = new(Palette)
	copy(fr.LocalPalette[:], []byte{9, 8, 7, 6, 5, 4})
	require.NoError(t, c.Composite(fr))
	require.Equal(t, []byte{9, 8, 7}, pixel(c, 0, 0))
	require.Equal(t, []byte{6, 5, 4}, pixel(c, 1, 0))
	require.Equal(t, global, c.Palette)
}

func TestDisposeToBackground(t *testing.T) {
	pal := rampPalette()
	for _, bpp := range []int{16, 24, 32} {
		for _, transparent := range []int{3, -1, 4} {
			c := newTestCanvas(t, 6, 6, bpp, nil)
			require.NoError(t, c.Composite(testFrame(0, 0, 6, 6, 8, solid(1))))

			fr := testFrame(1, 2, 3, 2, 8, solid(7))
			fr.Disposal = RestoreBackground
			fr.Transparent = transparent
			require.NoError(t, c.Composite(fr))
			require.Equal(t, encoded(pal, bpp, 7), pixel(c, 2, 3))

			require.NoError(t, c.Composite(testFrame(5, 5, 1, 1, 8, solid(9))))

			fill := encoded(pal, bpp, 3)
			if transparent == 3 {
				fill = bytes.Repeat([]byte{0xff}, bpp/8)
			}
			for y := 0; y < 6; y++ {
				for x := 0; x < 6; x++ {
					want := encoded(pal, bpp, 1)
					switch {
					case x == 5 && y == 5:
						want = encoded(pal, bpp, 9)
					case x >= 1 && x < 4 && y >= 2 && y < 4:
						want = fill
					}
					require.Equal(t, want, pixel(c, x, y), "bpp %d transparent %d at %d,%d", bpp, transparent, x, y)
				}
			}
		}
	}
}

func TestDisposeToPrevious(t *testing.T) {
	stores := map[string]func(a Allocator) SnapshotStore{
		"raw": func(a Allocator) SnapshotStore { return NewRawSnapshots(a) },
		"zstd": func(Allocator) SnapshotStore {
			s, err := NewZstdSnapshots()
			require.NoError(t, err)
			return s
		},
	}
	for name, store := range stores {
		for _, bpp := range []int{16, 24, 32} {
			arena := NewArena(0)
			c := newTestCanvas(t, 8, 8, bpp, &CanvasOptions{Allocator: arena, Snapshots: store(arena)})
			require.NoError(t, c.Composite(testFrame(0, 0, 8, 8, 8, func(x, y int) byte { return byte((x + y) % 5) })))
			before := bytes.Clone(c.Pix)

			fr := testFrame(2, 2, 4, 3, 4, solid(9))
			fr.Disposal = RestorePrevious
			require.NoError(t, c.Composite(fr))
			require.NotEqual(t, before, c.Pix)

			require.NoError(t, c.Composite(testFrame(0, 0, 1, 1, 8, solid(11))))
			want := bytes.Clone(before)
			copy(want, encoded(rampPalette(), bpp, 11))
			require.Equal(t, want, c.Pix, "%s bpp %d", name, bpp)
		}
	}
}

func TestDisposeToPreviousWithoutSnapshot(t *testing.T) {
	c := newTestCanvas(t, 4, 4, 24, nil)
	c.prev = previous{x: 0, y: 0, w: 4, h: 4, disposal: RestorePrevious, transparent: -1}
	require.NoError(t, c.Composite(testFrame(0, 0, 1, 1, 8, solid(2))))
	require.Equal(t, make([]byte, 3), pixel(c, 3, 3))
}

type failingSnapshots struct{ saves int }

func (s *failingSnapshots) Save([]byte) error {
	s.saves++
	return ErrOutOfMemory
}
func (s *failingSnapshots) Load() ([]byte, error) { return nil, nil }
func (s *failingSnapshots) Close() error          { return nil }

func TestSnapshotFailureAfterDispose(t *testing.T) {
	pal := rampPalette()
	snaps := &failingSnapshots{}
	c := newTestCanvas(t, 4, 4, 24, &CanvasOptions{Snapshots: snaps})
	require.NoError(t, c.Composite(testFrame(0, 0, 4, 4, 8, solid(1))))
	cleared := testFrame(1, 1, 2, 2, 8, solid(2))
	cleared.Disposal = RestoreBackground
	require.NoError(t, c.Composite(cleared))

	kept := testFrame(0, 0, 1, 1, 8, solid(5))
	kept.Disposal = RestorePrevious
	require.ErrorIs(t, c.Composite(kept), ErrOutOfMemory)
	require.Equal(t, 1, snaps.saves)
	require.Equal(t, encoded(pal, 24, 3), pixel(c, 1, 1))
	require.Equal(t, encoded(pal, 24, 1), pixel(c, 0, 0))

	// Paint into the disposed rectangle; the next frame must not clear it again.
	copy(pixel(c, 2, 2), encoded(pal, 24, 8))
	require.NoError(t, c.Composite(testFrame(3, 3, 1, 1, 8, solid(6))))
	require.Equal(t, encoded(pal, 24, 8), pixel(c, 2, 2))
	require.Equal(t, encoded(pal, 24, 6), pixel(c, 3, 3))
}

func TestCompositeRejects(t *testing.T) {
	c := newTestCanvas(t, 4, 4, 24, nil)
	first := testFrame(0, 0, 4, 4, 8, solid(1))
	first.Disposal = RestoreBackground
	require.NoError(t, c.Composite(first))
	pix := bytes.Clone(c.Pix)
	prev := c.prev

	ok := func() *Frame { return testFrame(1, 1, 2, 2, 8, solid(2)) }
	cases := []struct {
		name  string
		frame func() *Frame
		want  error
	}{
		{"nil frame", func() *Frame { return nil }, ErrInvalidParam},
		{"no pixels", func() *Frame { f := ok(); f.Pix = nil; return f }, ErrInvalidParam},
		{"right edge", func() *Frame { f := ok(); f.X = 3; return f }, ErrInvalidParam},
		{"bottom edge", func() *Frame { f := ok(); f.Y = 3; return f }, ErrInvalidParam},
		{"negative", func() *Frame { f := ok(); f.X = -1; return f }, ErrInvalidParam},
		{"source depth", func() *Frame { f := ok(); f.Bpp = 2; return f }, ErrBitDepth},
		{"short pixels", func() *Frame { f := ok(); f.Pix = f.Pix[:3]; return f }, ErrUnknown},
	}
	for _, tc := range cases {
		require.ErrorIs(t, c.Composite(tc.frame()), tc.want, tc.name)
		require.Equal(t, pix, c.Pix, tc.name)
		require.Equal(t, prev, c.prev, tc.name)
	}

	c.Bpp = 15
	require.ErrorIs(t, c.Composite(ok()), ErrBitDepth)
	c.Bpp = 24
	c.HasPalette = false
	require.ErrorIs(t, c.Composite(ok()), ErrInvalidParam)
	require.Equal(t, pix, c.Pix)

	_, err := NewCanvas(4, 4, 8, nil)
	require.ErrorIs(t, err, ErrBitDepth)
	_, err = NewCanvas(0, 4, 24, nil)
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestCanvasRGBA(t *testing.T) {
	for _, bpp := range []int{16, 24, 32} {
		c := newTestCanvas(t, 3, 2, bpp, nil)
		require.NoError(t, c.Composite(testFrame(0, 0, 3, 2, 8, func(x, y int) byte { return byte(x*40 + y*100) })))
		img := c.RGBA()
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				r, g, b := c.Palette.RGB(x*40 + y*100)
				got := img.RGBAAt(x, y)
				if bpp == 16 {
					require.InDelta(t, r, got.R, 8)
					require.InDelta(t, g, got.G, 4)
					require.InDelta(t, b, got.B, 8)
				} else {
					require.Equal(t, [3]uint8{r, g, b}, [3]uint8{got.R, got.G, got.B})
				}
				require.Equal(t, uint8(0xff), got.A)
			}
		}
	}
}

func TestCanvasReleasesToArena(t *testing.T) {
	arena := NewArena(0)
	c, err := NewCanvas(10, 10, 32, &CanvasOptions{Allocator: arena})
	require.NoError(t, err)
	c.SetPalette(rampPalette(), 0)
	fr := testFrame(0, 0, 10, 10, 8, solid(4))
	fr.Disposal = RestorePrevious
	require.NoError(t, c.Composite(fr))
	require.Equal(t, int64(800), arena.Stats().Live)
	require.NoError(t, c.Release())
	require.Equal(t, int64(0), arena.Stats().Live)

	arena = NewArena(300)
	c, err = NewCanvas(10, 10, 32, &CanvasOptions{Allocator: arena})
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Nil(t, c)
}
