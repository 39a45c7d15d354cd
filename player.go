package main

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/svanichkin/gifplay/gif"
)

// player drives an Animation through its passes, handing each composited
// canvas to the sinks and pacing frames by their delay.
type player struct {
	anim    *gif.Animation
	loops   int // 0 follows the file
	noSleep bool
	limiter *rate.Limiter
	sinks   []frameSink

	frames  int
	skipped int
	played  time.Duration
}

func newPlayer(anim *gif.Animation, cfg settings, noSleep bool, sinks ...frameSink) *player {
	p := &player{anim: anim, loops: cfg.Loops, noSleep: noSleep, sinks: sinks}
	if cfg.MaxFPS > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.MaxFPS), 1)
	}
	return p
}

// passes returns how many times to run the animation, 0 meaning forever.
// fileLoops is the repeat count stored in the file, -1 when absent.
func passes(loops, fileLoops int) int {
	switch {
	case loops > 0:
		return loops
	case fileLoops < 0:
		return 1
	case fileLoops == 0:
		return 0
	}
	return fileLoops + 1
}

func (p *player) run(ctx context.Context) error {
	total := 1
	for pass := 0; total == 0 || pass < total; pass++ {
		if pass > 0 {
			p.anim.Rewind()
		}
		drawn := 0
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			info, err := p.anim.Next()
			if err == io.EOF {
				break
			}
			if errors.Is(err, gif.ErrInvalidParam) || errors.Is(err, gif.ErrUnknown) {
				logWarn("skipping %v", err)
				p.skipped++
				continue
			}
			if err != nil {
				return err
			}
			drawn++
			if pass == 0 && info.Index == 0 {
				total = passes(p.loops, p.anim.LoopCount())
				logDebug("playing %d frames, %d passes (file loop count %d)", p.anim.Len(), total, p.anim.LoopCount())
			}
			for _, s := range p.sinks {
				if err := s.WriteFrame(pass, info, p.anim.Canvas()); err != nil {
					return err
				}
			}
			p.frames++
			if err := p.wait(ctx, info.Delay, time.Since(start)); err != nil {
				return err
			}
		}
		if drawn == 0 {
			break
		}
	}
	return nil
}

// wait sleeps out what is left of the frame delay after spent.
func (p *player) wait(ctx context.Context, delayMS int, spent time.Duration) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	d := time.Duration(delayMS) * time.Millisecond
	p.played += d
	if p.noSleep || spent >= d {
		return nil
	}
	t := time.NewTimer(d - spent)
	select {
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	case <-t.C:
	}
	return nil
}
