package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
)

const settingsVersion = 1

type settings struct {
	Version int

	Bpp          int     // canvas depth: 16, 24 or 32
	Loops        int     // passes to play; 0 follows the file's loop count
	Format       string  // png, qoi or bmp
	Scale        float64 // export scale factor
	Workers      int     // parallel frame encoders
	MaxFPS       float64 // 0 means no cap
	Compact      bool    // zstd-compressed restore-previous snapshots
	IgnoreErrors bool
	BufferSize   int   // page scan window when streaming
	MemoryLimit  int64 // decoder arena limit in bytes, 0 for none
}

var gsdef = settings{
	Version: settingsVersion,

	Bpp:        24,
	Format:     "png",
	Scale:      1,
	Workers:    runtime.NumCPU(),
	BufferSize: 1 << 20,
}

// loadSettings returns the defaults overlaid with the JSON file at path.
// A file written for another settings version is ignored.
func loadSettings(path string) (settings, error) {
	if path == "" {
		return gsdef, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return gsdef, err
	}
	tmp := gsdef
	if err := json.Unmarshal(data, &tmp); err != nil {
		return gsdef, fmt.Errorf("settings %s: %w", path, err)
	}
	if tmp.Version != settingsVersion {
		logWarn("settings %s: version %d, want %d; using defaults", path, tmp.Version, settingsVersion)
		return gsdef, nil
	}
	return tmp, nil
}

func (s *settings) validate() error {
	switch s.Bpp {
	case 16, 24, 32:
	default:
		return fmt.Errorf("bpp must be 16, 24 or 32, not %d", s.Bpp)
	}
	s.Format = strings.ToLower(s.Format)
	if _, ok := encoders[s.Format]; !ok {
		return fmt.Errorf("unknown export format %q", s.Format)
	}
	if s.Scale <= 0 {
		return fmt.Errorf("scale must be positive, not %g", s.Scale)
	}
	if s.Loops < 0 {
		return fmt.Errorf("loop count must not be negative")
	}
	if s.Workers < 1 {
		s.Workers = 1
	}
	return nil
}
