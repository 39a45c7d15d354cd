package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/svanichkin/gifplay/gif"
)

type job struct {
	path    string
	info    bool
	outDir  string
	dump    string
	stream  bool
	noSleep bool
}

func main() {
	var (
		cfgPath = flag.String("config", "", "JSON settings file")
		info    = flag.Bool("info", false, "print the page table and exit")
		outDir  = flag.String("out", "", "export composited frames into this directory")
		dump    = flag.String("dump", "", "write raw composited canvases to this zstd dump")
		stream  = flag.Bool("stream", false, "read the file on demand instead of loading it")
		noSleep = flag.Bool("nosleep", false, "do not wait for frame delays")
		debug   = flag.Bool("debug", false, "verbose/debug logging")

		bpp     = flag.Int("bpp", gsdef.Bpp, "canvas bits per pixel: 16, 24 or 32")
		loops   = flag.Int("loop", 0, "passes to play; 0 follows the file's loop count")
		format  = flag.String("format", gsdef.Format, "export format: png, qoi or bmp")
		scale   = flag.Float64("scale", gsdef.Scale, "export scale factor")
		workers = flag.Int("workers", gsdef.Workers, "parallel frame encoders")
		maxFPS  = flag.Float64("maxfps", 0, "cap playback frame rate")
		compact = flag.Bool("compact", false, "compress restore-previous snapshots")
		ignore  = flag.Bool("ignore-errors", false, "keep partially decoded frames")
		mem     = flag.Int64("mem", 0, "decoder memory limit in bytes")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage:\n  gifplay [flags] <input.gif|input.gif.zst>\n  gifplay -info <input.gifd>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	setupLogging(*debug, os.Stderr)

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadSettings(*cfgPath)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bpp":
			cfg.Bpp = *bpp
		case "loop":
			cfg.Loops = *loops
		case "format":
			cfg.Format = *format
		case "scale":
			cfg.Scale = *scale
		case "workers":
			cfg.Workers = *workers
		case "maxfps":
			cfg.MaxFPS = *maxFPS
		case "compact":
			cfg.Compact = *compact
		case "ignore-errors":
			cfg.IgnoreErrors = *ignore
		case "mem":
			cfg.MemoryLimit = *mem
		}
	})
	if err := cfg.validate(); err != nil {
		logError("%v", err)
		os.Exit(2)
	}

	j := job{
		path:    flag.Arg(0),
		info:    *info,
		outDir:  *outDir,
		dump:    *dump,
		stream:  *stream,
		noSleep: *noSleep,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, j, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logError("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, j job, cfg settings) error {
	if j.info && isDump(j.path) {
		return describeDump(w, j.path)
	}

	arena := gif.NewArena(cfg.MemoryLimit)
	opts := &gif.Options{
		Allocator:  arena,
		Logger:     errorLogger,
		BufferSize: cfg.BufferSize,
	}
	start := time.Now()
	in, err := openInput(j.path, j.stream, opts)
	if err != nil {
		return err
	}
	defer in.Close()
	logDebug("%s: %d pages counted in %s", j.path, in.File.Pages, time.Since(start))

	if j.info {
		return printInfo(w, j.path, in)
	}

	animOpts := &gif.AnimationOptions{Decode: gif.DecodeOptions{IgnoreErrors: cfg.IgnoreErrors}}
	if cfg.Compact {
		snaps, err := gif.NewZstdSnapshots()
		if err != nil {
			return err
		}
		animOpts.Snapshots = snaps
	}
	anim, err := gif.NewAnimation(in.File, cfg.Bpp, animOpts)
	if err != nil {
		if animOpts.Snapshots != nil {
			animOpts.Snapshots.Close()
		}
		return err
	}

	var sinks []frameSink
	closeSinks := func() error {
		var first error
		for _, s := range sinks {
			if err := s.Close(); err != nil && first == nil {
				first = err
			}
		}
		sinks = nil
		return first
	}
	defer closeSinks()

	if j.outDir != "" {
		s, err := newDirSink(j.outDir, cfg)
		if err != nil {
			anim.Close()
			return err
		}
		sinks = append(sinks, s)
	}
	if j.dump != "" {
		d, err := createDump(j.dump, in.File.Width, in.File.Height, cfg.Bpp)
		if err != nil {
			anim.Close()
			return err
		}
		sinks = append(sinks, d)
	}
	exporting := len(sinks) > 0
	if !exporting {
		sinks = append(sinks, &progress{w: w, total: in.File.Pages})
	}
	if exporting && cfg.Loops == 0 {
		cfg.Loops = 1
	}

	p := newPlayer(anim, cfg, j.noSleep || exporting, sinks...)
	err = p.run(ctx)
	if cerr := closeSinks(); err == nil {
		err = cerr
	}
	if cerr := anim.Close(); err == nil {
		err = cerr
	}

	st := arena.Stats()
	logDebug("%d frames (%d skipped), %s of animation, peak memory %s, %d allocations", p.frames, p.skipped,
		formatDuration(p.played), humanize.Bytes(uint64(st.Peak)), st.Allocs)
	if st.Live != 0 {
		logWarn("%s still allocated after close", humanize.Bytes(uint64(st.Live)))
	}
	return err
}

// progress reports each frame on the terminal when nothing is exported.
type progress struct {
	w     io.Writer
	total int
}

func (p *progress) WriteFrame(pass int, info gif.FrameInfo, c *gif.Canvas) error {
	_, err := fmt.Fprintf(p.w, "\rpass %d frame %d/%d %dx%d+%d+%d %dms ", pass+1, info.Index+1, p.total,
		info.Width, info.Height, info.X, info.Y, info.Delay)
	return err
}

func (p *progress) Close() error {
	_, err := fmt.Fprintln(p.w)
	return err
}
