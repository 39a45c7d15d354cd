package gif

import "fmt"

// Disposal says what happens to a frame's rectangle before the next frame
// is drawn.
type Disposal uint8

const (
	NoneOrUnspecified Disposal = iota
	DoNotDispose
	RestoreBackground
	RestorePrevious
)

// disposalOf extracts the disposal method from the packed field of a graphic
// control extension. The reserved values 4-7 act as unspecified.
func disposalOf(packed byte) Disposal {
	d := Disposal(packed >> 2 & 7)
	if d > RestorePrevious {
		return NoneOrUnspecified
	}
	return d
}

func (d Disposal) String() string {
	switch d {
	case NoneOrUnspecified:
		return "none"
	case DoNotDispose:
		return "keep"
	case RestoreBackground:
		return "background"
	case RestorePrevious:
		return "previous"
	}
	return fmt.Sprintf("Disposal(%d)", uint8(d))
}
