package lzw

// MaxWidth is the widest code either format allows.
const MaxWidth = 12

const (
	maxCodes = 1 << MaxWidth

	// link markers; both sit above any real code so a chain walk stops on them.
	unassigned uint16 = 0x1717
	terminal   uint16 = 0x1718
)

// table is the code dictionary: three parallel arrays keyed by code. A string
// is recovered by following link from the code back to a singleton and
// collecting last along the way.
type table struct {
	link  [maxCodes]uint16
	first [maxCodes]uint16
	last  [maxCodes]uint16
}

// init installs the singleton codes below cc.
func (t *table) init(cc uint16) {
	for i := uint16(0); i < cc; i++ {
		t.first[i] = i
		t.last[i] = i
		t.link[i] = terminal
	}
}

// reset forgets every code from cc upward.
func (t *table) reset(cc uint16) {
	for i := int(cc); i < maxCodes; i++ {
		t.link[i] = unassigned
	}
}

// add defines next as old's string extended by the first pixel of code. When
// code is not yet known (the KwKwK case) the extension is old's own first pixel.
func (t *table) add(next, old, code uint16) {
	t.link[next] = old
	t.first[next] = t.first[old]
	if t.link[code] == unassigned {
		t.last[next] = t.first[old]
	} else {
		t.last[next] = t.first[code]
	}
}

// resolve writes the string for code into the tail of scratch and returns it
// in forward order. A chain longer than scratch means the links form a cycle,
// which the decoder's code checks keep a stream from building.
func (t *table) resolve(code uint16, scratch []byte) ([]byte, error) {
	i := len(scratch)
	for code < maxCodes {
		if i == 0 {
			return nil, ErrChainOverflow
		}
		i--
		scratch[i] = byte(t.last[code])
		code = t.link[code]
	}
	return scratch[i:], nil
}
