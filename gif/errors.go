package gif

import "errors"

// Error kinds returned by this package. Callers match them with errors.Is;
// the returned errors wrap one of these with position and cause details.
var (
	ErrInvalidParam  = errors.New("gif: invalid parameter")
	ErrBadHeader     = errors.New("gif: bad header")
	ErrDecompression = errors.New("gif: decompression failed")
	ErrOutOfMemory   = errors.New("gif: out of memory")
	ErrBitDepth      = errors.New("gif: unsupported bit depth")
	ErrUnknown       = errors.New("gif: frame geometry inconsistent")
)
