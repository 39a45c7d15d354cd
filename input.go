package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/svanichkin/gifplay/gif"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// input is an opened GIF. Streamed files keep their descriptor open until
// Close.
type input struct {
	File *gif.File
	Size int64
	src  *os.File
}

func (in *input) Close() error {
	if in.src != nil {
		return in.src.Close()
	}
	return nil
}

// openInput opens path as a GIF, transparently decompressing .gif.zst files.
// With stream set, plain files are read on demand instead of loaded whole.
func openInput(path string, stream bool, opts *gif.Options) (*input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	head := make([]byte, len(zstdMagic))
	n, _ := io.ReadFull(f, head)
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zstdMagic):
		defer f.Close()
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		data, err := decompress(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		logDebug("%s: %d compressed bytes expand to %d", path, st.Size(), len(data))
		gf, err := gif.Load(data, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &input{File: gf, Size: int64(len(data))}, nil

	case stream:
		gf, err := gif.Open(f, st.Size(), opts)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &input{File: gf, Size: st.Size(), src: f}, nil
	}

	defer f.Close()
	data := make([]byte, st.Size())
	if _, err := f.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}
	gf, err := gif.Load(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &input{File: gf, Size: st.Size()}, nil
}

func decompress(r io.Reader) ([]byte, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
