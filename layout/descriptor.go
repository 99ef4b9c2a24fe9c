package layout

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a descriptor's shape.
type Kind uint8

const (
	// KindPrimitive is a numeric scalar: size equals alignment, every bit
	// pattern is a valid instance.
	KindPrimitive Kind = iota
	// KindEnum is a bare discriminant with no payload: a tag of 1, 2 or 4
	// bytes and a set of legal tag values.
	KindEnum
	// KindComposite covers structs, tuples, arrays, unions and slices.
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindEnum:
		return "enum"
	case KindComposite:
		return "composite"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Span is one entry of a concrete layout: a contiguous byte range holding
// either a sub-descriptor or undefined bytes (Elem == nil). Undefined spans
// cover padding and unfilled variant storage.
type Span struct {
	Elem   *Descriptor // nil marks undefined bytes
	Name   string      // field name when known, "" otherwise
	Offset uint32
	Size   uint32
}

// Undefined reports whether the span holds no defined value.
func (s Span) Undefined() bool {
	return s.Elem == nil
}

// Concrete is one specific byte arrangement a type may take. Plain structs
// and arrays have exactly one; union-like types have one per variant.
type Concrete struct {
	spans []Span
	// must[i] is true when byte i holds a defined value in every nested
	// variant; may[i] when it does in at least one.
	must []bool
	may  []bool
}

// Spans returns the ordered span sequence. Callers must not mutate it.
func (c Concrete) Spans() []Span {
	return c.spans
}

// SpanAt returns the defined span starting exactly at offset.
func (c Concrete) SpanAt(offset uint32) (Span, bool) {
	for _, s := range c.spans {
		if s.Offset == offset && !s.Undefined() {
			return s, true
		}
		if s.Offset > offset {
			break
		}
	}
	return Span{}, false
}

// Defined reports whether every byte in [lo, hi) surely holds a defined
// value in this concrete layout.
func (c Concrete) Defined(lo, hi uint32) bool {
	if hi > uint32(len(c.must)) {
		return false
	}
	for i := lo; i < hi; i++ {
		if !c.must[i] {
			return false
		}
	}
	return true
}

// Descriptor is the canonical, immutable description of a type's memory
// shape. Construct one with the package builders; never mutate it after.
type Descriptor struct {
	name     string
	kind     Kind
	size     uint32
	align    uint32
	unsized  bool
	elem     *Descriptor // slice element
	variants []Concrete

	// enum-like only
	tagWidth uint32
	tagFull  bool
	tagVals  []uint64 // sorted

	// aggregated initialization masks over all variants
	allInit []bool
	anyInit []bool
}

// Name returns the type name the descriptor was built with.
func (d *Descriptor) Name() string { return d.name }

// Kind returns the descriptor's shape class.
func (d *Descriptor) Kind() Kind { return d.kind }

// Size returns the static byte size. For unsized descriptors it returns the
// element stride; check Unsized first.
func (d *Descriptor) Size() uint32 { return d.size }

// Unsized reports whether the size is only known dynamically (slice-like).
func (d *Descriptor) Unsized() bool { return d.unsized }

// Align returns the required address alignment, always a power of two.
func (d *Descriptor) Align() uint32 { return d.align }

// Elem returns the element descriptor of an unsized slice, or nil.
func (d *Descriptor) Elem() *Descriptor { return d.elem }

// Variants returns every concrete layout this type may take.
func (d *Descriptor) Variants() []Concrete { return d.variants }

// TagWidth returns the discriminant width in bytes for enum-like
// descriptors, 0 otherwise.
func (d *Descriptor) TagWidth() uint32 { return d.tagWidth }

// TagFullRange reports whether every bit pattern of the tag bytes is a legal
// discriminant.
func (d *Descriptor) TagFullRange() bool { return d.tagFull }

// TagValues returns the sorted set of legal discriminants. Nil when the full
// range is legal.
func (d *Descriptor) TagValues() []uint64 { return d.tagVals }

// HasTagValue reports whether v is a legal discriminant.
func (d *Descriptor) HasTagValue(v uint64) bool {
	if d.tagFull {
		return v < uint64(1)<<(8*d.tagWidth)
	}
	i := sort.Search(len(d.tagVals), func(i int) bool { return d.tagVals[i] >= v })
	return i < len(d.tagVals) && d.tagVals[i] == v
}

// TagSubsetOf reports whether every legal discriminant of d is also legal
// for other. Both must be enum-like.
func (d *Descriptor) TagSubsetOf(other *Descriptor) bool {
	if d.kind != KindEnum || other.kind != KindEnum {
		return false
	}
	if other.tagFull {
		// Everything other's width can hold is legal; d cannot be wider.
		return d.tagWidth <= other.tagWidth
	}
	if d.tagFull {
		// d produces every pattern of its width; other enumerates.
		max := uint64(1) << (8 * d.tagWidth)
		if uint64(len(other.tagVals)) < max {
			return false
		}
		for v := uint64(0); v < max; v++ {
			if !other.HasTagValue(v) {
				return false
			}
		}
		return true
	}
	for _, v := range d.tagVals {
		if !other.HasTagValue(v) {
			return false
		}
	}
	return true
}

// SurelyInitialized reports whether every byte in [lo, hi) holds a defined
// value in every concrete layout of d. For unsized descriptors the element
// pattern repeats.
func (d *Descriptor) SurelyInitialized(lo, hi uint32) bool {
	if d.unsized {
		stride := d.elem.size
		if stride == 0 {
			return false
		}
		for i := lo; i < hi; i++ {
			if !d.elem.allInit[i%stride] {
				return false
			}
		}
		return true
	}
	if hi > d.size {
		return false
	}
	for i := lo; i < hi; i++ {
		if !d.allInit[i] {
			return false
		}
	}
	return true
}

// MaybeInitialized reports whether byte off holds a defined value in at
// least one concrete layout of d.
func (d *Descriptor) MaybeInitialized(off uint32) bool {
	if d.unsized {
		stride := d.elem.size
		if stride == 0 {
			return false
		}
		return d.elem.anyInit[off%stride]
	}
	if off >= d.size {
		return false
	}
	return d.anyInit[off]
}

// AdmitsAnyBits reports whether an arbitrary bit pattern of d's size is
// always a valid instance of d. This is the escape hatch that lets target
// padding or dont-care fields legitimately overlay arbitrary source bytes.
func (d *Descriptor) AdmitsAnyBits() bool {
	switch d.kind {
	case KindPrimitive:
		return true
	case KindEnum:
		return d.tagFull
	case KindComposite:
		if d.unsized {
			return d.elem.AdmitsAnyBits()
		}
		for _, v := range d.variants {
			for _, s := range v.spans {
				if !s.Undefined() && !s.Elem.AdmitsAnyBits() {
					return false
				}
			}
		}
		return true
	}
	return false
}

func (d *Descriptor) String() string {
	var b strings.Builder
	b.WriteString(d.kind.String())
	b.WriteByte(' ')
	b.WriteString(d.name)
	if d.unsized {
		fmt.Fprintf(&b, " (stride %d, align %d, unsized)", d.size, d.align)
	} else {
		fmt.Fprintf(&b, " (size %d, align %d)", d.size, d.align)
	}
	return b.String()
}

// buildConcrete normalizes spans into a concrete layout of the given size:
// sorts by offset, fills every gap with an explicit undefined span, and
// computes the per-byte initialization masks.
func buildConcrete(spans []Span, size uint32) Concrete {
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	full := make([]Span, 0, len(sorted)+2)
	cursor := uint32(0)
	for _, s := range sorted {
		if s.Offset > cursor {
			full = append(full, Span{Offset: cursor, Size: s.Offset - cursor})
		}
		full = append(full, s)
		cursor = s.Offset + s.Size
	}
	if cursor < size {
		full = append(full, Span{Offset: cursor, Size: size - cursor})
	}

	must := make([]bool, size)
	may := make([]bool, size)
	for _, s := range full {
		if s.Undefined() {
			continue
		}
		for i := uint32(0); i < s.Size; i++ {
			must[s.Offset+i] = s.Elem.allInit[i]
			may[s.Offset+i] = s.Elem.anyInit[i]
		}
	}
	return Concrete{spans: full, must: must, may: may}
}

// aggregateMasks computes the descriptor-level masks from the variants.
func aggregateMasks(variants []Concrete, size uint32) (allInit, anyInit []bool) {
	allInit = make([]bool, size)
	anyInit = make([]bool, size)
	for i := range allInit {
		allInit[i] = true
	}
	if len(variants) == 0 {
		for i := range allInit {
			allInit[i] = false
		}
		return allInit, anyInit
	}
	for _, v := range variants {
		for i := uint32(0); i < size; i++ {
			allInit[i] = allInit[i] && v.must[i]
			anyInit[i] = anyInit[i] || v.may[i]
		}
	}
	return allInit, anyInit
}
