package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return durafmt.Parse(d).LimitFirstN(2).Format(shortUnits)
}

// printInfo writes the screen description and one line per page.
func printInfo(w io.Writer, name string, in *input) error {
	f := in.File
	fmt.Fprintf(w, "%s (%s)\n", name, humanize.Bytes(uint64(in.Size)))
	fmt.Fprintf(w, "screen %dx%d, %d bpp, background %d, %d pages\n", f.Width, f.Height, f.Bpp, f.Background, f.Pages)

	var total time.Duration
	for i := 0; i < f.Pages; i++ {
		raw, err := f.ReadFrame(i)
		if err != nil {
			return err
		}
		if i == 0 {
			switch raw.LoopCount {
			case -1:
				fmt.Fprintln(w, "loop: once")
			case 0:
				fmt.Fprintln(w, "loop: forever")
			default:
				fmt.Fprintf(w, "loop: %d repeats\n", raw.LoopCount)
			}
		}
		offset := 0
		if f.Offsets != nil {
			offset = f.Offsets[i]
		}
		fmt.Fprintf(w, "#%-4d @%-8d %dx%d+%d+%d %2dbpp %5dms %-10s", i, offset,
			raw.Width, raw.Height, raw.X, raw.Y, raw.Bpp, raw.Delay, raw.Disposal)
		if raw.Transparent >= 0 {
			fmt.Fprintf(w, " transparent=%d", raw.Transparent)
		}
		if raw.LocalPalette != nil {
			fmt.Fprint(w, " local-palette")
		}
		if raw.Interlaced {
			fmt.Fprint(w, " interlaced")
		}
		if raw.Comment != "" {
			fmt.Fprintf(w, " comment=%q", raw.Comment)
		}
		if raw.Text != "" {
			fmt.Fprintf(w, " text=%q", raw.Text)
		}
		fmt.Fprintln(w)
		total += time.Duration(raw.Delay) * time.Millisecond
		raw.Release()
	}
	fmt.Fprintf(w, "duration %s\n", formatDuration(total))
	return nil
}

func describeDump(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	d, err := readDump(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	var total time.Duration
	for _, fr := range d.Frames {
		total += time.Duration(fr.Delay) * time.Millisecond
	}
	fmt.Fprintf(w, "%s (%s): canvas dump %dx%d, %d bpp, %d frames, %s\n", path,
		humanize.Bytes(uint64(len(data))), d.Width, d.Height, d.Bpp, len(d.Frames), formatDuration(total))
	return nil
}
