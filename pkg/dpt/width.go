package dpt

import "strconv"

// Code is a KNX datapoint main type number (the "X" in "X.YYY").
type Code int

// DefaultWidth is the bit width assumed for unmapped type codes.
const DefaultWidth = 32

// widths maps main type numbers to their payload width in bits.
var widths = map[Code]int{
	1:   1,  // boolean
	2:   2,  // 1-bit controlled
	3:   4,  // 3-bit controlled
	4:   8,  // character
	5:   8,  // 8-bit unsigned
	6:   8,  // 8-bit signed
	7:   16, // 2-byte unsigned
	8:   16, // 2-byte signed
	9:   16, // 2-byte float
	10:  24, // time of day
	11:  24, // date
	12:  32, // 4-byte unsigned
	13:  32, // 4-byte signed
	14:  32, // 4-byte float
	15:  32, // access data
	16:  112,
	17:  8, // scene number
	18:  8, // scene control
	19:  64,
	20:  8,
	21:  8,
	22:  16,
	23:  2,
	26:  8,
	27:  32,
	29:  64,
	232: 24, // RGB
	251: 48, // RGBW
}

// Width returns the declared bit width of the type code.
func (c Code) Width() int {
	if w, ok := widths[c]; ok {
		return w
	}
	return DefaultWidth
}

// Known reports whether the code has an entry in the width table.
func (c Code) Known() bool {
	_, ok := widths[c]
	return ok
}

// String returns the code in "DPT X" form.
func (c Code) String() string {
	return "DPT " + strconv.Itoa(int(c))
}

// Bounds returns the inclusive range a value of the given width may take.
// One-bit types carry booleans, so their range is {0, 1}; wider types use
// the signed range -2^(w-1) .. 2^(w-1)-1, saturated to int64.
func Bounds(width int) (lo, hi int64) {
	switch {
	case width <= 1:
		return 0, 1
	case width >= 64:
		return -1 << 63, 1<<63 - 1
	default:
		return -(1 << (width - 1)), 1<<(width-1) - 1
	}
}
