package extract

import (
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/recast/errors"
	"github.com/wippyai/recast/layout"
)

func TestExtractPrimitives(t *testing.T) {
	tests := []struct {
		name  string
		typ   wit.Type
		size  uint32
		align uint32
	}{
		{"bool", wit.Bool{}, 1, 1},
		{"u8", wit.U8{}, 1, 1},
		{"s16", wit.S16{}, 2, 2},
		{"u32", wit.U32{}, 4, 4},
		{"char", wit.Char{}, 4, 4},
		{"f64", wit.F64{}, 8, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := WIT(tt.typ)
			if err != nil {
				t.Fatal(err)
			}
			if d.Size() != tt.size {
				t.Errorf("size: got %d, want %d", d.Size(), tt.size)
			}
			if d.Align() != tt.align {
				t.Errorf("align: got %d, want %d", d.Align(), tt.align)
			}
			if d.Kind() != layout.KindPrimitive {
				t.Errorf("kind: got %v, want primitive", d.Kind())
			}
		})
	}
}

func TestExtractString(t *testing.T) {
	d, err := WIT(wit.String{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Size() != 8 || d.Align() != 4 {
		t.Errorf("string: got size %d align %d, want 8/4", d.Size(), d.Align())
	}
}

func TestExtractRecord(t *testing.T) {
	record := &wit.TypeDef{
		Kind: &wit.Record{
			Fields: []wit.Field{
				{Name: "a", Type: wit.U8{}},
				{Name: "b", Type: wit.U32{}},
			},
		},
	}

	d, err := WIT(record)
	if err != nil {
		t.Fatal(err)
	}
	if d.Size() != 8 {
		t.Errorf("size: got %d, want 8", d.Size())
	}
	if d.Align() != 4 {
		t.Errorf("align: got %d, want 4", d.Align())
	}
	// Offsets 1..3 are padding before the aligned u32.
	if d.SurelyInitialized(1, 2) {
		t.Error("offset 1 must be padding")
	}
	if !d.SurelyInitialized(4, 8) {
		t.Error("field b must be initialized")
	}
}

func TestExtractTuple(t *testing.T) {
	tuple := &wit.TypeDef{
		Kind: &wit.Tuple{Types: []wit.Type{wit.U16{}, wit.U16{}}},
	}
	d, err := WIT(tuple)
	if err != nil {
		t.Fatal(err)
	}
	if d.Size() != 4 || d.Align() != 2 {
		t.Errorf("tuple: got size %d align %d, want 4/2", d.Size(), d.Align())
	}
}

func TestExtractEnum(t *testing.T) {
	tests := []struct {
		name     string
		numCases int
		width    uint32
	}{
		{"small", 3, 1},
		{"byte_boundary", 256, 1},
		{"two_bytes", 257, 2},
		{"four_bytes", 70000, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cases := make([]wit.EnumCase, tt.numCases)
			for i := range cases {
				cases[i].Name = "c"
			}
			d, err := WIT(&wit.TypeDef{Kind: &wit.Enum{Cases: cases}})
			if err != nil {
				t.Fatal(err)
			}
			if d.Kind() != layout.KindEnum {
				t.Fatalf("kind: got %v, want enum", d.Kind())
			}
			if d.TagWidth() != tt.width {
				t.Errorf("width: got %d, want %d", d.TagWidth(), tt.width)
			}
			if !d.HasTagValue(uint64(tt.numCases-1)) {
				t.Error("last case must be a valid tag")
			}
			if d.HasTagValue(uint64(tt.numCases)) && tt.numCases != 256 {
				t.Error("tag past the last case must be invalid")
			}
		})
	}
}

func TestExtractFlags(t *testing.T) {
	mk := func(n int) *wit.TypeDef {
		flags := make([]wit.Flag, n)
		for i := range flags {
			flags[i].Name = "f"
		}
		return &wit.TypeDef{Kind: &wit.Flags{Flags: flags}}
	}

	d, err := WIT(mk(8))
	if err != nil {
		t.Fatal(err)
	}
	if !d.TagFullRange() {
		t.Error("8 bits in one byte: every pattern valid")
	}

	d, err = WIT(mk(3))
	if err != nil {
		t.Fatal(err)
	}
	if d.TagFullRange() {
		t.Error("3 bits: high patterns invalid")
	}
	if !d.HasTagValue(7) || d.HasTagValue(8) {
		t.Error("valid patterns are exactly [0, 8)")
	}

	if _, err := WIT(mk(20)); !errors.IsUnsupported(err) {
		t.Errorf("20 sparse bits: got %v, want unsupported", err)
	}
}

func TestExtractVariant(t *testing.T) {
	variant := &wit.TypeDef{
		Kind: &wit.Variant{Cases: []wit.Case{
			{Name: "none"},
			{Name: "word", Type: wit.U32{}},
			{Name: "byte", Type: wit.U8{}},
		}},
	}

	d, err := WIT(variant)
	if err != nil {
		t.Fatal(err)
	}
	// 1-byte tag, payload aligned to 4, total 8.
	if d.Size() != 8 || d.Align() != 4 {
		t.Fatalf("variant: got size %d align %d, want 8/4", d.Size(), d.Align())
	}
	if len(d.Variants()) != 3 {
		t.Fatalf("concrete layouts: got %d, want 3", len(d.Variants()))
	}
	// The tag byte is initialized in every case; the payload bytes only in
	// some, so they must not be surely initialized.
	if !d.SurelyInitialized(0, 1) {
		t.Error("tag byte must be initialized in every case")
	}
	if d.SurelyInitialized(4, 8) {
		t.Error("payload bytes are undefined in the none case")
	}
}

func TestExtractOptionAndResult(t *testing.T) {
	opt := &wit.TypeDef{Kind: &wit.Option{Type: wit.U16{}}}
	d, err := WIT(opt)
	if err != nil {
		t.Fatal(err)
	}
	if d.Size() != 4 || d.Align() != 2 {
		t.Errorf("option<u16>: got size %d align %d, want 4/2", d.Size(), d.Align())
	}

	res := &wit.TypeDef{Kind: &wit.Result{OK: wit.U64{}}}
	d, err = WIT(res)
	if err != nil {
		t.Fatal(err)
	}
	if d.Size() != 16 || d.Align() != 8 {
		t.Errorf("result<u64, _>: got size %d align %d, want 16/8", d.Size(), d.Align())
	}
}

func TestExtractList(t *testing.T) {
	list := &wit.TypeDef{Kind: &wit.List{Type: wit.U16{}}}
	d, err := WIT(list)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Unsized() {
		t.Fatal("list extracts as an unsized element sequence")
	}
	if d.Size() != 2 {
		t.Errorf("stride: got %d, want 2", d.Size())
	}
}

func TestExtractResourceHandle(t *testing.T) {
	own := &wit.TypeDef{Kind: &wit.Own{}}
	if _, err := WIT(own); !errors.IsLayoutUndefined(err) {
		t.Errorf("own handle: got %v, want layout undefined", err)
	}
}

func TestExtractMemoization(t *testing.T) {
	inner := &wit.TypeDef{
		Kind: &wit.Record{Fields: []wit.Field{{Name: "v", Type: wit.U32{}}}},
	}
	outer := &wit.TypeDef{
		Kind: &wit.Record{Fields: []wit.Field{
			{Name: "a", Type: inner},
			{Name: "b", Type: inner},
		}},
	}

	x := NewWITExtractor()
	d, err := x.Extract(outer)
	if err != nil {
		t.Fatal(err)
	}
	if d.Size() != 8 {
		t.Errorf("size: got %d, want 8", d.Size())
	}
	d1, _ := x.Extract(inner)
	d2, _ := x.Extract(inner)
	if d1 != d2 {
		t.Error("same TypeDef must yield the same descriptor")
	}
}
