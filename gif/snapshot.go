package gif

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// SnapshotStore keeps the canvas as it was before a frame with
// RestorePrevious disposal, so the next composite can put it back.
type SnapshotStore interface {
	// Save replaces the stored snapshot with a copy of pix.
	Save(pix []byte) error
	// Load returns the last snapshot, or nil if none was saved. The slice
	// is only valid until the next Save or Load.
	Load() ([]byte, error)
	Close() error
}

// rawSnapshots keeps one uncompressed copy, allocated on first use.
type rawSnapshots struct {
	alloc Allocator
	buf   []byte
	saved bool
}

// NewRawSnapshots returns a store that keeps a plain copy of the canvas.
func NewRawSnapshots(alloc Allocator) SnapshotStore {
	return &rawSnapshots{alloc: allocatorOr(alloc)}
}

func (s *rawSnapshots) Save(pix []byte) error {
	if len(s.buf) != len(pix) {
		s.alloc.Free(s.buf)
		s.buf = nil
		b, err := s.alloc.Alloc(len(pix))
		if err != nil {
			s.saved = false
			return err
		}
		s.buf = b
	}
	copy(s.buf, pix)
	s.saved = true
	return nil
}

func (s *rawSnapshots) Load() ([]byte, error) {
	if !s.saved {
		return nil, nil
	}
	return s.buf, nil
}

func (s *rawSnapshots) Close() error {
	s.alloc.Free(s.buf)
	s.buf = nil
	s.saved = false
	return nil
}

// zstdSnapshots keeps the snapshot zstd-compressed, reusing its buffers
// between frames.
type zstdSnapshots struct {
	enc   *zstd.Encoder
	dec   *zstd.Decoder
	comp  []byte
	plain []byte
	saved bool
}

// NewZstdSnapshots returns a store that compresses each snapshot.
func NewZstdSnapshots() (SnapshotStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("gif: snapshot encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("gif: snapshot decoder: %w", err)
	}
	return &zstdSnapshots{enc: enc, dec: dec}, nil
}

func (s *zstdSnapshots) Save(pix []byte) error {
	s.comp = s.enc.EncodeAll(pix, s.comp[:0])
	s.saved = true
	return nil
}

func (s *zstdSnapshots) Load() ([]byte, error) {
	if !s.saved {
		return nil, nil
	}
	plain, err := s.dec.DecodeAll(s.comp, s.plain[:0])
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %w", ErrUnknown, err)
	}
	s.plain = plain
	return plain, nil
}

func (s *zstdSnapshots) Close() error {
	s.dec.Close()
	return s.enc.Close()
}
