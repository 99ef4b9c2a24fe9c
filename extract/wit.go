package extract

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/recast/errors"
	"github.com/wippyai/recast/layout"
)

// WITExtractor converts WIT types into layout descriptors following the
// component model's Canonical ABI rules. Descriptors for the same *TypeDef
// are computed once and shared, so identity comparisons inside the relation
// engine see one descriptor per type.
type WITExtractor struct {
	cache      map[*wit.TypeDef]*layout.Descriptor
	inProgress map[*wit.TypeDef]bool
}

// NewWITExtractor creates an extractor with an empty memo.
func NewWITExtractor() *WITExtractor {
	return &WITExtractor{
		cache:      make(map[*wit.TypeDef]*layout.Descriptor),
		inProgress: make(map[*wit.TypeDef]bool),
	}
}

// WIT extracts a single type with a throwaway extractor.
func WIT(t wit.Type) (*layout.Descriptor, error) {
	return NewWITExtractor().Extract(t)
}

// Extract produces the layout descriptor for t, or a layout-undefined error
// for types whose byte representation is not fixed by the Canonical ABI
// (resource handles, streams, futures).
func (x *WITExtractor) Extract(t wit.Type) (*layout.Descriptor, error) {
	switch typ := t.(type) {
	case wit.Bool:
		return layout.Bool(), nil
	case wit.U8:
		return layout.U8(), nil
	case wit.S8:
		return layout.S8(), nil
	case wit.U16:
		return layout.U16(), nil
	case wit.S16:
		return layout.S16(), nil
	case wit.U32:
		return layout.U32(), nil
	case wit.S32:
		return layout.S32(), nil
	case wit.F32:
		return layout.F32(), nil
	case wit.Char:
		return layout.Char(), nil
	case wit.U64:
		return layout.U64(), nil
	case wit.S64:
		return layout.S64(), nil
	case wit.F64:
		return layout.F64(), nil
	case wit.String:
		// In-memory representation: [ptr: u32, len: u32].
		return stringDesc, nil
	case *wit.TypeDef:
		return x.extractTypeDef(typ)
	default:
		return nil, errors.LayoutUndefined(errors.PhaseExtract,
			fmt.Sprintf("%T", t), "no canonical byte representation")
	}
}

var stringDesc = layout.NewStruct("string").
	Field("ptr", layout.U32()).
	Field("len", layout.U32()).
	MustBuild()

func (x *WITExtractor) extractTypeDef(t *wit.TypeDef) (*layout.Descriptor, error) {
	if d, ok := x.cache[t]; ok {
		return d, nil
	}
	if x.inProgress[t] {
		return nil, errors.LayoutUndefined(errors.PhaseExtract, "typedef",
			"recursive type has no finite layout")
	}
	x.inProgress[t] = true
	defer delete(x.inProgress, t)

	var d *layout.Descriptor
	var err error
	switch kind := t.Kind.(type) {
	case *wit.Record:
		d, err = x.extractRecord(kind)
	case *wit.Tuple:
		d, err = x.extractTuple(kind)
	case *wit.Enum:
		d, err = enumDesc("enum", len(kind.Cases))
	case *wit.Flags:
		d, err = flagsDesc(kind)
	case *wit.Variant:
		d, err = x.extractVariant("variant", variantCases(kind))
	case *wit.Option:
		d, err = x.extractVariant("option", []caseShape{
			{name: "none"},
			{name: "some", payload: kind.Type},
		})
	case *wit.Result:
		d, err = x.extractVariant("result", []caseShape{
			{name: "ok", payload: kind.OK},
			{name: "err", payload: kind.Err},
		})
	case *wit.List:
		d, err = x.extractList(kind)
	case wit.Type:
		// Type alias; layout is the aliased type's.
		d, err = x.Extract(kind)
	default:
		err = errors.LayoutUndefined(errors.PhaseExtract,
			fmt.Sprintf("%T", kind), "no canonical byte representation")
	}
	if err != nil {
		return nil, err
	}
	x.cache[t] = d
	return d, nil
}

func (x *WITExtractor) extractRecord(r *wit.Record) (*layout.Descriptor, error) {
	b := layout.NewStruct("record")
	for _, f := range r.Fields {
		fd, err := x.Extract(f.Type)
		if err != nil {
			return nil, err
		}
		b.Field(f.Name, fd)
	}
	return b.Build()
}

func (x *WITExtractor) extractTuple(t *wit.Tuple) (*layout.Descriptor, error) {
	elems := make([]*layout.Descriptor, len(t.Types))
	for i, tt := range t.Types {
		d, err := x.Extract(tt)
		if err != nil {
			return nil, err
		}
		elems[i] = d
	}
	return layout.Tuple(elems...)
}

func (x *WITExtractor) extractList(l *wit.List) (*layout.Descriptor, error) {
	elem, err := x.Extract(l.Type)
	if err != nil {
		return nil, err
	}
	return layout.Slice(elem)
}

// enumDesc builds the discriminant type for n no-payload cases: tags are
// the dense range [0, n).
func enumDesc(name string, n int) (*layout.Descriptor, error) {
	if n == 0 {
		return nil, errors.New(errors.PhaseExtract, errors.KindInvalidEnum).
			Path(name).
			Detail("enum with no cases").
			Build()
	}
	b := layout.NewEnum(name, layout.DiscriminantSize(n))
	vals := make([]uint64, n)
	for i := range vals {
		vals[i] = uint64(i)
	}
	return b.Values(vals...).Build()
}

// flagsDesc models a flags type as a discriminant whose valid values are
// every combination of its n bits. When n fills the storage exactly, any
// bit pattern is valid; otherwise the combinations are enumerated, which is
// only tractable for narrow sets.
func flagsDesc(f *wit.Flags) (*layout.Descriptor, error) {
	n := len(f.Flags)
	if n == 0 {
		return nil, errors.New(errors.PhaseExtract, errors.KindInvalidEnum).
			Path("flags").
			Detail("flags with no named bits").
			Build()
	}
	var width uint32
	switch {
	case n <= 8:
		width = 1
	case n <= 16:
		width = 2
	case n <= 32:
		width = 4
	default:
		return nil, errors.Unsupported(errors.PhaseExtract,
			fmt.Sprintf("flags with %d bits", n))
	}
	if n == int(width)*8 {
		return layout.NewEnum("flags", width).FullRange().Build()
	}
	if n > 16 {
		// 2^n valid patterns cannot be enumerated; the sound sparse model
		// is out of reach at this width.
		return nil, errors.Unsupported(errors.PhaseExtract,
			fmt.Sprintf("sparse flags with %d bits", n))
	}
	vals := make([]uint64, 1<<n)
	for i := range vals {
		vals[i] = uint64(i)
	}
	return layout.NewEnum("flags", width).Values(vals...).Build()
}

type caseShape struct {
	name    string
	payload wit.Type
}

func variantCases(v *wit.Variant) []caseShape {
	cases := make([]caseShape, len(v.Cases))
	for i, c := range v.Cases {
		cases[i] = caseShape{name: c.Name, payload: c.Type}
	}
	return cases
}

// extractVariant lays out a tagged union: discriminant at offset 0, payload
// at the first offset aligned for every case, one concrete layout per case.
// Bytes between tag and payload, and past a short payload, stay undefined.
func (x *WITExtractor) extractVariant(name string, cases []caseShape) (*layout.Descriptor, error) {
	if len(cases) == 0 {
		return nil, errors.New(errors.PhaseExtract, errors.KindInvalidEnum).
			Path(name).
			Detail("variant with no cases").
			Build()
	}
	disc, err := enumDesc(name+".tag", len(cases))
	if err != nil {
		return nil, err
	}
	discSize := disc.Size()

	payloads := make([]*layout.Descriptor, len(cases))
	maxAlign := discSize
	maxSize := uint32(0)
	for i, c := range cases {
		if c.payload == nil {
			continue
		}
		pd, err := x.Extract(c.payload)
		if err != nil {
			return nil, err
		}
		if pd.Unsized() {
			return nil, errors.LayoutUndefined(errors.PhaseExtract, cases[i].name,
				"variant payload must be sized")
		}
		payloads[i] = pd
		if pd.Align() > maxAlign {
			maxAlign = pd.Align()
		}
		if pd.Size() > maxSize {
			maxSize = pd.Size()
		}
	}
	payloadOff := layout.AlignTo(discSize, maxAlign)
	total := layout.AlignTo(payloadOff+maxSize, maxAlign)

	b := layout.NewUnion(name)
	for i, c := range cases {
		spans := []layout.Span{{Elem: disc, Name: "tag", Offset: 0, Size: discSize}}
		if payloads[i] != nil {
			spans = append(spans, layout.Span{
				Elem:   payloads[i],
				Name:   c.name,
				Offset: payloadOff,
				Size:   payloads[i].Size(),
			})
		}
		cd, err := layout.Raw(name+"."+c.name, total, maxAlign, spans)
		if err != nil {
			return nil, err
		}
		b.Variant(cd)
	}
	return b.Build()
}
