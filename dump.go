package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/svanichkin/gifplay/gif"
)

// Raw canvas dump.
// Layout: magic(4) + width(uint16) + height(uint16) + bpp(uint8), then one
// zstd stream of frame records: index(uint16) + delay ms(uint32) + pixels.

const (
	dumpMagic      = "GIFD"
	dumpHeaderSize = 9
)

var ErrInvalidMagic = errors.New("dump: invalid magic")

// -----------------------------------------------------------------------------
// Writer
// -----------------------------------------------------------------------------

type dumpWriter struct {
	out    io.WriteCloser
	enc    *zstd.Encoder
	frames int
}

func createDump(path string, width, height, bpp int) (*dumpWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	d, err := newDumpWriter(f, width, height, bpp)
	if err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

func newDumpWriter(out io.WriteCloser, width, height, bpp int) (*dumpWriter, error) {
	if width > 0xffff || height > 0xffff {
		return nil, fmt.Errorf("dump: canvas %dx%d too large", width, height)
	}
	b := &bytes.Buffer{}
	b.WriteString(dumpMagic)
	if err := binary.Write(b, binary.BigEndian, uint16(width)); err != nil {
		return nil, err
	}
	if err := binary.Write(b, binary.BigEndian, uint16(height)); err != nil {
		return nil, err
	}
	b.WriteByte(byte(bpp))
	if _, err := out.Write(b.Bytes()); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(out)
	if err != nil {
		return nil, err
	}
	return &dumpWriter{out: out, enc: enc}, nil
}

// WriteFrame appends the canvas after a frame of the first pass.
func (d *dumpWriter) WriteFrame(pass int, info gif.FrameInfo, c *gif.Canvas) error {
	if pass > 0 {
		return nil
	}
	var rec [6]byte
	binary.BigEndian.PutUint16(rec[:2], uint16(info.Index))
	binary.BigEndian.PutUint32(rec[2:], uint32(info.Delay))
	if _, err := d.enc.Write(rec[:]); err != nil {
		return err
	}
	if _, err := d.enc.Write(c.Pix); err != nil {
		return err
	}
	d.frames++
	return nil
}

func (d *dumpWriter) Close() error {
	err := d.enc.Close()
	if cerr := d.out.Close(); err == nil {
		err = cerr
	}
	return err
}

// -----------------------------------------------------------------------------
// Reader
// -----------------------------------------------------------------------------

type dumpFrame struct {
	Index int
	Delay int
	Pix   []byte
}

type dump struct {
	Width, Height, Bpp int
	Frames             []dumpFrame
}

// readDump decodes data produced by dumpWriter.
func readDump(data []byte) (*dump, error) {
	if len(data) < dumpHeaderSize {
		return nil, fmt.Errorf("dump: truncated header")
	}
	if string(data[:4]) != dumpMagic {
		return nil, ErrInvalidMagic
	}
	d := &dump{
		Width:  int(binary.BigEndian.Uint16(data[4:])),
		Height: int(binary.BigEndian.Uint16(data[6:])),
		Bpp:    int(data[8]),
	}
	frameSize := d.Width * d.Height * d.Bpp / 8

	dec, err := zstd.NewReader(bytes.NewReader(data[dumpHeaderSize:]))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	plain, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}

	for len(plain) > 0 {
		if len(plain) < 6+frameSize {
			return nil, fmt.Errorf("dump: truncated frame %d", len(d.Frames))
		}
		d.Frames = append(d.Frames, dumpFrame{
			Index: int(binary.BigEndian.Uint16(plain)),
			Delay: int(binary.BigEndian.Uint32(plain[2:])),
			Pix:   plain[6 : 6+frameSize],
		})
		plain = plain[6+frameSize:]
	}
	return d, nil
}

func isDump(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(dumpMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return string(head) == dumpMagic
}
