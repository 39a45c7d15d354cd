package gif

import (
	"fmt"
	"io"
)

// FrameInfo describes the frame an Animation step just drew.
type FrameInfo struct {
	Index               int
	X, Y, Width, Height int
	Delay               int // milliseconds
	Disposal            Disposal
	Transparent         int
	Interlaced          bool
	Comment             string
	Text                string
}

type AnimationOptions struct {
	Decode DecodeOptions
	// Snapshots is handed to the canvas; see CanvasOptions.
	Snapshots SnapshotStore
}

// Animation composites the frames of a File in order onto one Canvas.
type Animation struct {
	file   *File
	canvas *Canvas
	opts   DecodeOptions

	next      int
	loopCount int
}

// NewAnimation creates a canvas of the file's logical screen size at bpp
// bits per pixel.
func NewAnimation(f *File, bpp int, opts *AnimationOptions) (*Animation, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil file", ErrInvalidParam)
	}
	if opts == nil {
		opts = &AnimationOptions{}
	}
	c, err := NewCanvas(f.Width, f.Height, bpp, &CanvasOptions{
		Allocator: f.alloc,
		Snapshots: opts.Snapshots,
	})
	if err != nil {
		return nil, err
	}
	return &Animation{file: f, canvas: c, opts: opts.Decode, loopCount: -1}, nil
}

func (a *Animation) Canvas() *Canvas { return a.canvas }

// Len returns the number of frames in one pass.
func (a *Animation) Len() int { return a.file.Pages }

// LoopCount is the NETSCAPE2.0 repeat count seen with frame 0: 0 means loop
// forever, -1 means the file has none. It is known once frame 0 is drawn.
func (a *Animation) LoopCount() int { return a.loopCount }

// Next decodes and draws the next frame. It returns io.EOF once every frame
// of the pass has been drawn; Rewind starts another pass over the same
// canvas. A frame that fails is passed over, so calling Next again moves on
// to the one after it.
func (a *Animation) Next() (FrameInfo, error) {
	if a.next >= a.file.Pages {
		return FrameInfo{}, io.EOF
	}
	idx := a.next
	a.next++
	raw, err := a.file.ReadFrame(idx)
	if err != nil {
		return FrameInfo{}, err
	}
	defer raw.Release()

	fr, err := a.file.DecodeFrame(raw, a.opts)
	if err != nil {
		return FrameInfo{}, err
	}
	defer fr.Release()

	if idx == 0 {
		a.loopCount = fr.LoopCount
		if !a.canvas.HasPalette {
			pal := fr.Palette
			if pal == nil {
				pal = grayPalette(fr.Bpp)
			}
			a.canvas.SetPalette(pal, a.file.Background)
		}
	}
	if err := a.canvas.Composite(fr); err != nil {
		return FrameInfo{}, fmt.Errorf("frame %d: %w", fr.Index, err)
	}
	return FrameInfo{
		Index:       fr.Index,
		X:           fr.X,
		Y:           fr.Y,
		Width:       fr.Width,
		Height:      fr.Height,
		Delay:       fr.Delay,
		Disposal:    fr.Disposal,
		Transparent: fr.Transparent,
		Interlaced:  fr.Interlaced,
		Comment:     fr.Comment,
		Text:        fr.Text,
	}, nil
}

// Rewind restarts from frame 0 without clearing the canvas.
func (a *Animation) Rewind() { a.next = 0 }

func (a *Animation) Close() error {
	return a.canvas.Release()
}
