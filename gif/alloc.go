package gif

import (
	"fmt"
	"sync/atomic"
)

// Allocator hands out the byte buffers a decode needs: frame copies,
// palettes, rasters, canvases and snapshots. Free must receive the slice
// Alloc returned.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Free(b []byte)
}

// Arena is an Allocator backed by the Go heap that keeps usage counters and
// optionally refuses to go above Limit live bytes. It is safe for concurrent
// use; each animation or test can own its own.
type Arena struct {
	Limit int64 // 0 means unlimited

	live   atomic.Int64
	peak   atomic.Int64
	allocs atomic.Int64
	frees  atomic.Int64
}

// ArenaStats is a snapshot of an Arena's counters.
type ArenaStats struct {
	Live   int64
	Peak   int64
	Allocs int64
	Frees  int64
}

func NewArena(limit int64) *Arena {
	return &Arena{Limit: limit}
}

func (a *Arena) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: allocation of %d bytes", ErrInvalidParam, n)
	}
	live := a.live.Add(int64(n))
	if a.Limit > 0 && live > a.Limit {
		a.live.Add(-int64(n))
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrOutOfMemory, n, live-int64(n), a.Limit)
	}
	for {
		p := a.peak.Load()
		if live <= p || a.peak.CompareAndSwap(p, live) {
			break
		}
	}
	a.allocs.Add(1)
	return make([]byte, n), nil
}

func (a *Arena) Free(b []byte) {
	if b == nil {
		return
	}
	a.live.Add(-int64(cap(b)))
	a.frees.Add(1)
}

func (a *Arena) Stats() ArenaStats {
	return ArenaStats{
		Live:   a.live.Load(),
		Peak:   a.peak.Load(),
		Allocs: a.allocs.Load(),
		Frees:  a.frees.Load(),
	}
}

func allocatorOr(a Allocator) Allocator {
	if a == nil {
		return NewArena(0)
	}
	return a
}
