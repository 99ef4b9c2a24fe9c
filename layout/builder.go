package layout

import (
	"fmt"
	"sort"

	"github.com/wippyai/recast/errors"
)

func newPrimitive(name string, size uint32) *Descriptor {
	init := make([]bool, size)
	for i := range init {
		init[i] = true
	}
	d := &Descriptor{
		name:    name,
		kind:    KindPrimitive,
		size:    size,
		align:   size,
		allInit: init,
		anyInit: init,
	}
	d.variants = []Concrete{{
		spans: []Span{{Elem: d, Offset: 0, Size: size}},
		must:  init,
		may:   init,
	}}
	return d
}

var (
	boolDesc = newPrimitive("bool", 1)
	u8Desc   = newPrimitive("u8", 1)
	s8Desc   = newPrimitive("s8", 1)
	u16Desc  = newPrimitive("u16", 2)
	s16Desc  = newPrimitive("s16", 2)
	u32Desc  = newPrimitive("u32", 4)
	s32Desc  = newPrimitive("s32", 4)
	f32Desc  = newPrimitive("f32", 4)
	charDesc = newPrimitive("char", 4)
	u64Desc  = newPrimitive("u64", 8)
	s64Desc  = newPrimitive("s64", 8)
	f64Desc  = newPrimitive("f64", 8)
)

// Primitive descriptors are shared singletons: size equals alignment, every
// bit pattern is a valid instance.
func Bool() *Descriptor { return boolDesc }
func U8() *Descriptor   { return u8Desc }
func S8() *Descriptor   { return s8Desc }
func U16() *Descriptor  { return u16Desc }
func S16() *Descriptor  { return s16Desc }
func U32() *Descriptor  { return u32Desc }
func S32() *Descriptor  { return s32Desc }
func F32() *Descriptor  { return f32Desc }
func Char() *Descriptor { return charDesc }
func U64() *Descriptor  { return u64Desc }
func S64() *Descriptor  { return s64Desc }
func F64() *Descriptor  { return f64Desc }

// StructBuilder lays fields out in declaration order with explicit padding,
// per the platform-fixed layout rule.
type StructBuilder struct {
	name   string
	fields []Span
	err    error
}

// NewStruct starts a struct layout with the given type name.
func NewStruct(name string) *StructBuilder {
	return &StructBuilder{name: name}
}

// Field appends a field. Unsized elements are rejected at Build.
func (b *StructBuilder) Field(name string, elem *Descriptor) *StructBuilder {
	if b.err != nil {
		return b
	}
	if elem == nil {
		b.err = errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Path(b.name, name).
			Detail("nil field descriptor").
			Build()
		return b
	}
	if elem.Unsized() {
		b.err = errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Path(b.name, name).
			Detail("unsized field in struct").
			Build()
		return b
	}
	b.fields = append(b.fields, Span{Elem: elem, Name: name})
	return b
}

// Build computes offsets and returns the immutable descriptor.
func (b *StructBuilder) Build() (*Descriptor, error) {
	if b.err != nil {
		return nil, b.err
	}

	maxAlign := uint32(1)
	offset := uint32(0)
	spans := make([]Span, 0, len(b.fields))

	for _, f := range b.fields {
		offset = AlignTo(offset, f.Elem.Align())
		f.Offset = offset
		f.Size = f.Elem.Size()
		spans = append(spans, f)

		if f.Elem.Align() > maxAlign {
			maxAlign = f.Elem.Align()
		}

		next, ok := SafeAddU32(offset, f.Size)
		if !ok {
			return nil, errors.New(errors.PhaseRegister, errors.KindOverflow).
				Path(b.name, f.Name).
				Detail("struct size overflows u32").
				Build()
		}
		offset = next
	}

	size := AlignTo(offset, maxAlign)
	concrete := buildConcrete(spans, size)
	d := &Descriptor{
		name:     b.name,
		kind:     KindComposite,
		size:     size,
		align:    maxAlign,
		variants: []Concrete{concrete},
	}
	d.allInit, d.anyInit = aggregateMasks(d.variants, size)
	return d, nil
}

// MustBuild is Build for layouts known correct at init time.
func (b *StructBuilder) MustBuild() *Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

// Tuple builds an unnamed struct over the given element sequence.
func Tuple(elems ...*Descriptor) (*Descriptor, error) {
	b := NewStruct("tuple")
	for i, e := range elems {
		b.Field(fmt.Sprintf("%d", i), e)
	}
	return b.Build()
}

// Array builds a fixed-length run of elem. The element stride is elem's
// size, which builders already round up to its alignment.
func Array(elem *Descriptor, n uint32) (*Descriptor, error) {
	if elem == nil || elem.Unsized() {
		return nil, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Detail("array element must be a sized descriptor").
			Build()
	}
	size, ok := SafeMulU32(elem.Size(), n)
	if !ok {
		return nil, errors.New(errors.PhaseRegister, errors.KindOverflow).
			Detail("array size overflows u32").
			Build()
	}
	spans := make([]Span, 0, n)
	for i := uint32(0); i < n; i++ {
		spans = append(spans, Span{
			Elem:   elem,
			Name:   fmt.Sprintf("%d", i),
			Offset: i * elem.Size(),
			Size:   elem.Size(),
		})
	}
	concrete := buildConcrete(spans, size)
	d := &Descriptor{
		name:     fmt.Sprintf("[%d]%s", n, elem.Name()),
		kind:     KindComposite,
		size:     size,
		align:    elem.Align(),
		variants: []Concrete{concrete},
	}
	d.allInit, d.anyInit = aggregateMasks(d.variants, size)
	return d, nil
}

// Slice builds an unsized run of elem. Size is only known dynamically; the
// descriptor records the element stride.
func Slice(elem *Descriptor) (*Descriptor, error) {
	if elem == nil || elem.Unsized() || elem.Size() == 0 {
		return nil, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Detail("slice element must be a sized, non-empty descriptor").
			Build()
	}
	return &Descriptor{
		name:    "[]" + elem.Name(),
		kind:    KindComposite,
		size:    elem.Size(),
		align:   elem.Align(),
		unsized: true,
		elem:    elem,
	}, nil
}

// EnumBuilder describes an enum-like type: a bare discriminant with
// no-payload variants.
type EnumBuilder struct {
	name  string
	width uint32
	vals  []uint64
	full  bool
}

// NewEnum starts an enum layout with the given tag width in bytes (1, 2 or 4).
func NewEnum(name string, width uint32) *EnumBuilder {
	return &EnumBuilder{name: name, width: width}
}

// Values declares the legal discriminants.
func (b *EnumBuilder) Values(vs ...uint64) *EnumBuilder {
	b.vals = append(b.vals, vs...)
	return b
}

// FullRange declares every bit pattern of the tag legal.
func (b *EnumBuilder) FullRange() *EnumBuilder {
	b.full = true
	return b
}

// Build validates the tag set and returns the immutable descriptor.
func (b *EnumBuilder) Build() (*Descriptor, error) {
	switch b.width {
	case 1, 2, 4:
	default:
		return nil, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Path(b.name).
			Detail("enum tag width must be 1, 2 or 4 bytes, got %d", b.width).
			Build()
	}
	if !b.full && len(b.vals) == 0 {
		return nil, errors.New(errors.PhaseRegister, errors.KindInvalidEnum).
			Path(b.name).
			Detail("enum needs at least one legal discriminant").
			Build()
	}

	vals := b.vals
	if !b.full {
		limit := uint64(1) << (8 * b.width)
		seen := make(map[uint64]struct{}, len(vals))
		dedup := make([]uint64, 0, len(vals))
		for _, v := range vals {
			if v >= limit {
				return nil, errors.InvalidDiscriminant(errors.PhaseRegister, []string{b.name}, v, b.width)
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			dedup = append(dedup, v)
		}
		vals = dedup
		sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
		if uint64(len(vals)) == limit {
			// Enumerated the whole range.
			b.full = true
			vals = nil
		}
	} else {
		vals = nil
	}

	init := make([]bool, b.width)
	for i := range init {
		init[i] = true
	}
	d := &Descriptor{
		name:     b.name,
		kind:     KindEnum,
		size:     b.width,
		align:    b.width,
		tagWidth: b.width,
		tagFull:  b.full,
		tagVals:  vals,
		allInit:  init,
		anyInit:  init,
	}
	d.variants = []Concrete{{
		spans: []Span{{Elem: d, Offset: 0, Size: b.width}},
		must:  init,
		may:   init,
	}}
	return d, nil
}

// MustBuild is Build for layouts known correct at init time.
func (b *EnumBuilder) MustBuild() *Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

// UnionBuilder describes overlapping storage: every variant occupies the
// same bytes, so the result carries one concrete layout per variant.
type UnionBuilder struct {
	name     string
	variants []*Descriptor
	err      error
}

// NewUnion starts a union layout with the given type name.
func NewUnion(name string) *UnionBuilder {
	return &UnionBuilder{name: name}
}

// Variant appends one overlapping alternative.
func (b *UnionBuilder) Variant(d *Descriptor) *UnionBuilder {
	if b.err != nil {
		return b
	}
	if d == nil || d.Unsized() {
		b.err = errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Path(b.name).
			Detail("union variant must be a sized descriptor").
			Build()
		return b
	}
	b.variants = append(b.variants, d)
	return b
}

// Build pads every variant to the common size and returns the descriptor.
func (b *UnionBuilder) Build() (*Descriptor, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.variants) == 0 {
		return nil, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Path(b.name).
			Detail("union needs at least one variant").
			Build()
	}

	maxAlign := uint32(1)
	maxSize := uint32(0)
	for _, v := range b.variants {
		if v.Align() > maxAlign {
			maxAlign = v.Align()
		}
		if v.Size() > maxSize {
			maxSize = v.Size()
		}
	}
	size := AlignTo(maxSize, maxAlign)

	concretes := make([]Concrete, 0, len(b.variants))
	for _, v := range b.variants {
		// A variant that is itself multi-layout contributes each of its
		// concrete layouts, padded to the union size.
		for _, vc := range v.Variants() {
			spans := make([]Span, len(vc.Spans()))
			copy(spans, vc.Spans())
			concretes = append(concretes, buildConcrete(spans, size))
		}
	}

	d := &Descriptor{
		name:     b.name,
		kind:     KindComposite,
		size:     size,
		align:    maxAlign,
		variants: concretes,
	}
	d.allInit, d.anyInit = aggregateMasks(d.variants, size)
	return d, nil
}

// MustBuild is Build for layouts known correct at init time.
func (b *UnionBuilder) MustBuild() *Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

// Raw assembles a descriptor from pre-placed spans, for callers that
// already know their offsets (extraction from an external layout authority,
// manual certification workflows). Gaps become explicit undefined spans.
func Raw(name string, size, align uint32, spans []Span) (*Descriptor, error) {
	if !IsPowerOfTwo(align) {
		return nil, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Path(name).
			Detail("alignment %d is not a power of two", align).
			Build()
	}
	cursor := uint32(0)
	for _, s := range spans {
		if s.Offset < cursor {
			return nil, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
				Path(name, s.Name).
				Detail("overlapping span at offset %d", s.Offset).
				Build()
		}
		if s.Elem == nil || s.Elem.Unsized() || s.Elem.Size() != s.Size {
			return nil, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
				Path(name, s.Name).
				Detail("span at offset %d does not match its descriptor size", s.Offset).
				Build()
		}
		cursor = s.Offset + s.Size
	}
	if cursor > size {
		return nil, errors.OutOfBounds(errors.PhaseRegister, []string{name}, int(cursor), int(size))
	}
	concrete := buildConcrete(spans, size)
	d := &Descriptor{
		name:     name,
		kind:     KindComposite,
		size:     size,
		align:    align,
		variants: []Concrete{concrete},
	}
	d.allInit, d.anyInit = aggregateMasks(d.variants, size)
	return d, nil
}
