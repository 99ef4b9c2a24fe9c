package extract

import (
	"reflect"

	"github.com/wippyai/recast/errors"
	"github.com/wippyai/recast/layout"
)

// GoExtractor converts Go types into layout descriptors using the running
// program's own layout authority, package reflect. Field offsets come from
// reflect.StructField.Offset; bytes no field covers become explicit padding.
type GoExtractor struct {
	cache map[reflect.Type]*layout.Descriptor
}

// NewGoExtractor creates an extractor with an empty memo.
func NewGoExtractor() *GoExtractor {
	return &GoExtractor{cache: make(map[reflect.Type]*layout.Descriptor)}
}

// Go extracts a single type with a throwaway extractor.
func Go(t reflect.Type) (*layout.Descriptor, error) {
	return NewGoExtractor().Extract(t)
}

// GoOf extracts the layout of v's dynamic type.
func GoOf(v any) (*layout.Descriptor, error) {
	return Go(reflect.TypeOf(v))
}

// Extract produces the layout descriptor for t. Types whose representation
// embeds pointers (pointers, maps, chans, funcs, interfaces, slices,
// strings) have no stable byte meaning and yield a layout-undefined error.
func (x *GoExtractor) Extract(t reflect.Type) (*layout.Descriptor, error) {
	if t == nil {
		return nil, errors.LayoutUndefined(errors.PhaseExtract, "nil", "no type")
	}
	if d, ok := x.cache[t]; ok {
		return d, nil
	}

	var d *layout.Descriptor
	var err error
	switch t.Kind() {
	case reflect.Bool:
		d = layout.Bool()
	case reflect.Uint8:
		d = layout.U8()
	case reflect.Int8:
		d = layout.S8()
	case reflect.Uint16:
		d = layout.U16()
	case reflect.Int16:
		d = layout.S16()
	case reflect.Uint32:
		d = layout.U32()
	case reflect.Int32:
		d = layout.S32()
	case reflect.Float32:
		d = layout.F32()
	case reflect.Uint64:
		d = layout.U64()
	case reflect.Int64:
		d = layout.S64()
	case reflect.Float64:
		d = layout.F64()
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		d, err = wordDesc(t)
	case reflect.Complex64:
		d, err = layout.Tuple(layout.F32(), layout.F32())
	case reflect.Complex128:
		d, err = layout.Tuple(layout.F64(), layout.F64())
	case reflect.Array:
		d, err = x.extractArray(t)
	case reflect.Struct:
		d, err = x.extractStruct(t)
	default:
		err = errors.LayoutUndefined(errors.PhaseExtract, t.String(),
			"representation embeds pointers or is not fixed")
	}
	if err != nil {
		return nil, err
	}
	x.cache[t] = d
	return d, nil
}

// wordDesc maps the platform-word integers. Their width is fixed per build,
// not per type definition, so the descriptor follows the running platform.
func wordDesc(t reflect.Type) (*layout.Descriptor, error) {
	signed := t.Kind() == reflect.Int
	switch t.Size() {
	case 4:
		if signed {
			return layout.S32(), nil
		}
		return layout.U32(), nil
	case 8:
		if signed {
			return layout.S64(), nil
		}
		return layout.U64(), nil
	}
	return nil, errors.LayoutUndefined(errors.PhaseExtract, t.String(),
		"unexpected platform word size")
}

func (x *GoExtractor) extractArray(t reflect.Type) (*layout.Descriptor, error) {
	elem, err := x.Extract(t.Elem())
	if err != nil {
		return nil, err
	}
	return layout.Array(elem, uint32(t.Len()))
}

func (x *GoExtractor) extractStruct(t reflect.Type) (*layout.Descriptor, error) {
	spans := make([]layout.Span, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fd, err := x.Extract(f.Type)
		if err != nil {
			return nil, err
		}
		if fd.Size() == 0 {
			// Zero-size fields occupy no bytes.
			continue
		}
		spans = append(spans, layout.Span{
			Elem:   fd,
			Name:   f.Name,
			Offset: uint32(f.Offset),
			Size:   fd.Size(),
		})
	}
	align := uint32(t.Align())
	if align == 0 {
		align = 1
	}
	return layout.Raw(t.String(), uint32(t.Size()), align, spans)
}
