package lzw

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitReaderStraddlesWords(t *testing.T) {
	for _, msb := range []bool{false, true} {
		w := &codeWriter{msb: msb}
		var want []uint16
		var widths []uint
		for i := 0; i < 200; i++ {
			width := uint(3 + i%10)
			code := uint16(i*37) & (1<<width - 1)
			w.write(code, width)
			want = append(want, code)
			widths = append(widths, width)
		}
		src := w.flush()

		br := NewBitReader(src, msb)
		for i, width := range widths {
			require.Equal(t, want[i], br.Read(width), "msb=%v code %d", msb, i)
			require.False(t, br.Exhausted())
		}
		br.Read(MaxWidth)
		require.True(t, br.Exhausted(), "msb=%v", msb)
	}
}

func TestBitReaderZeroPadsPastEnd(t *testing.T) {
	br := NewBitReader([]byte{0xff}, false)
	require.Equal(t, uint16(0x0ff), br.Read(12))
	require.True(t, br.Exhausted())
	require.Equal(t, uint16(0), br.Read(12))
	require.Equal(t, 24, br.Consumed())
}

func TestBitReaderReset(t *testing.T) {
	br := NewBitReader([]byte{0x12, 0x34}, true)
	require.Equal(t, uint16(0x1), br.Read(4))
	br.Reset([]byte{0xab}, false)
	require.Equal(t, uint16(0xb), br.Read(4))
	require.Equal(t, uint16(0xa), br.Read(4))
	require.False(t, br.Exhausted())
}
