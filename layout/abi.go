package layout

import "math"

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// IsAligned reports whether addr satisfies align (a power of two).
func IsAligned(addr uint64, align uint32) bool {
	if align <= 1 {
		return true
	}
	return addr&uint64(align-1) == 0
}

// IsPowerOfTwo reports whether v is a positive power of two.
func IsPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

// DiscriminantSize returns the tag width in bytes for an enum with the given
// number of cases.
func DiscriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}

func SafeMulU32(a, b uint32) (uint32, bool) {
	if b != 0 && a > math.MaxUint32/b {
		return 0, false
	}
	return a * b, true
}

func SafeAddU32(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}
