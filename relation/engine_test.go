package relation

import (
	"testing"

	"github.com/wippyai/recast/errors"
	"github.com/wippyai/recast/layout"
	"github.com/wippyai/recast/stable"
)

type fixture struct {
	reg    *stable.Registry
	engine *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	reg := stable.NewRegistry()
	return &fixture{reg: reg, engine: NewEngine(reg, opts...)}
}

func (f *fixture) register(t *testing.T, name string, d *layout.Descriptor, opts ...stable.RegisterOption) stable.TypeID {
	t.Helper()
	id, err := f.reg.Register(name, d, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// paddedSource is struct{u8 a; _pad; u16 b; u16 c}: size 6, one undefined
// byte at offset 1.
func paddedSource(t *testing.T) *layout.Descriptor {
	t.Helper()
	return layout.NewStruct("padded-source").
		Field("a", layout.U8()).
		Field("b", layout.U16()).
		Field("c", layout.U16()).
		MustBuild()
}

func u16x2(t *testing.T) *layout.Descriptor {
	t.Helper()
	d, err := layout.Array(layout.U16(), 2)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestReflexivity(t *testing.T) {
	f := newFixture(t)
	sl, err := layout.Slice(layout.U16())
	if err != nil {
		t.Fatal(err)
	}
	union := layout.NewUnion("word").Variant(layout.U32()).Variant(layout.U8()).MustBuild()

	descs := map[string]*layout.Descriptor{
		"u8":     layout.U8(),
		"struct": paddedSource(t),
		"enum":   layout.NewEnum("state", 1).Values(0, 1).MustBuild(),
		"union":  union,
		"slice":  sl,
	}

	for name, d := range descs {
		t.Run(name, func(t *testing.T) {
			// No opt-in: reflexivity must hold even for unflagged types.
			id := f.register(t, "reflexive-"+name, d)
			cert, err := f.engine.Relate(id, id)
			if err != nil {
				t.Fatal(err)
			}
			if !cert.FromBytes || !cert.AlignedTo {
				t.Errorf("every type relates to itself: %v", cert)
			}
			if !cert.Unconditional() {
				t.Error("identity reinterpretation needs no runtime check")
			}
		})
	}
}

func TestConcreteScenarioCompatibleTarget(t *testing.T) {
	// Source: struct{u8 a; _; u16 b; u16 c}, target: struct{u8 a; u16[2] b}.
	// Both size 6 with padding at offset 1: compatible.
	f := newFixture(t)
	arr := u16x2(t)
	f.register(t, "[2]u16", arr, stable.OptIn())

	src := f.register(t, "source", paddedSource(t), stable.OptIn())
	dst := f.register(t, "target", layout.NewStruct("target").
		Field("a", layout.U8()).
		Field("b", arr).
		MustBuild(), stable.OptIn())

	cert, err := f.engine.Relate(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !cert.FromBytes {
		t.Error("padding overlays padding; pair is byte-compatible")
	}
	if !cert.Unconditional() {
		t.Error("both sized: no runtime condition")
	}
	if !cert.AlignedTo {
		t.Error("equal alignment is compatible")
	}
	if cert.Regime != BothSized {
		t.Errorf("regime = %v, want both-sized", cert.Regime)
	}
}

func TestConcreteScenarioFillerTarget(t *testing.T) {
	// Target': struct{u8 a; u8 filler; u16[2] b}: offset 1 is meaningful in
	// the target but undefined in the source. Must be rejected.
	f := newFixture(t)
	arr := u16x2(t)
	f.register(t, "[2]u16", arr, stable.OptIn())

	src := f.register(t, "source", paddedSource(t), stable.OptIn())
	dst := f.register(t, "target-filler", layout.NewStruct("target-filler").
		Field("a", layout.U8()).
		Field("filler", layout.U8()).
		Field("b", arr).
		MustBuild(), stable.OptIn())

	cert, err := f.engine.Relate(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if cert.FromBytes {
		t.Error("offset 1 is uninitialized in source but required by target")
	}

	// The reverse direction reads only defined bytes and must hold.
	back, err := f.engine.Relate(dst, src)
	if err != nil {
		t.Fatal(err)
	}
	if !back.FromBytes {
		t.Error("fully defined source may overlay target padding")
	}
}

func TestPaddingOverwritePolicy(t *testing.T) {
	// Same filler pair, but with the padding-overwrite policy on the
	// undefined source byte may back a meaningful target byte.
	f := newFixture(t, WithPaddingOverwrite(true))
	arr := u16x2(t)
	f.register(t, "[2]u16", arr, stable.OptIn())

	src := f.register(t, "source", paddedSource(t), stable.OptIn())
	dst := f.register(t, "target-filler", layout.NewStruct("target-filler").
		Field("a", layout.U8()).
		Field("filler", layout.U8()).
		Field("b", arr).
		MustBuild(), stable.OptIn())

	cert, err := f.engine.Relate(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !cert.FromBytes {
		t.Error("padding-overwrite policy accepts the filler overlay")
	}
}

func TestStabilityGate(t *testing.T) {
	// Structurally identical pair, but the source never opted in: automatic
	// derivation must defer to manual certification regardless of layout.
	f := newFixture(t)
	src := f.register(t, "private", layout.NewStruct("private").
		Field("x", layout.U32()).
		MustBuild())
	dst := f.register(t, "public", layout.NewStruct("public").
		Field("x", layout.U32()).
		MustBuild(), stable.OptIn())

	_, err := f.engine.Relate(src, dst)
	if err == nil {
		t.Fatal("unflagged source must not derive automatically")
	}
	if !errors.IsUnsupported(err) {
		t.Errorf("want a definitive unsupported result, got %v", err)
	}

	if _, err := f.engine.Relate(dst, src); err == nil {
		t.Fatal("unflagged target must not derive automatically")
	}
}

func TestManualCertification(t *testing.T) {
	f := newFixture(t)
	src := f.register(t, "private-a", layout.NewStruct("private-a").
		Field("x", layout.U32()).
		MustBuild())
	dst := f.register(t, "private-b", layout.NewStruct("private-b").
		Field("x", layout.U32()).
		MustBuild())

	if _, err := f.engine.Relate(src, dst); !errors.IsUnsupported(err) {
		t.Fatalf("precondition: pair fails the gate, got %v", err)
	}

	err := f.engine.Certify(&Certificate{
		Source:    src,
		Target:    dst,
		FromBytes: true,
		AlignedTo: true,
		Regime:    BothSized,
	})
	if err != nil {
		t.Fatal(err)
	}

	cert, err := f.engine.Relate(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !cert.FromBytes || !cert.Manual {
		t.Errorf("manual certificate must be trusted as ground truth: %v", cert)
	}
}

func TestUnsizedPairs(t *testing.T) {
	f := newFixture(t)
	slU16, _ := layout.Slice(layout.U16())
	slU8, _ := layout.Slice(layout.U8())
	a := f.register(t, "[]u16", slU16, stable.OptIn())
	b := f.register(t, "[]u8", slU8, stable.OptIn())

	_, err := f.engine.Relate(a, b)
	if err == nil {
		t.Fatal("unsized/unsized must fail closed")
	}
	var e *errors.Error
	if !asEngineErr(err, &e) || e.Kind != errors.KindUnsizedPair {
		t.Errorf("kind = %v, want unsized_pair", err)
	}
}

func TestUnsizedSourceSizedTarget(t *testing.T) {
	f := newFixture(t)
	sl, _ := layout.Slice(layout.U16())
	src := f.register(t, "[]u16", sl, stable.OptIn())
	dst := f.register(t, "triple", layout.NewStruct("triple").
		Field("a", layout.U16()).
		Field("b", layout.U16()).
		Field("c", layout.U16()).
		MustBuild(), stable.OptIn())

	cert, err := f.engine.Relate(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !cert.FromBytes {
		t.Error("fully defined element run covers the target")
	}
	if cert.FromBytesCond != SizeChecked {
		t.Error("dynamic source length demands a runtime size check")
	}
	if cert.Regime != SourceUnsized {
		t.Errorf("regime = %v, want source-unsized", cert.Regime)
	}
}

func TestSizedSourceUnsizedTarget(t *testing.T) {
	f := newFixture(t)
	arr, err := layout.Array(layout.U16(), 3)
	if err != nil {
		t.Fatal(err)
	}
	sl, _ := layout.Slice(layout.U16())
	src := f.register(t, "[3]u16", arr, stable.OptIn())
	dst := f.register(t, "[]u16", sl, stable.OptIn())

	cert, err := f.engine.Relate(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !cert.FromBytes || cert.Regime != TargetUnsized {
		t.Errorf("array reinterprets as a slice of its element: %v", cert)
	}

	// A source that does not split into whole elements is rejected.
	odd := f.register(t, "odd", layout.NewStruct("odd").
		Field("a", layout.U16()).
		Field("b", layout.U8()).
		MustBuild(), stable.OptIn())
	cert, err = f.engine.Relate(odd, dst)
	if err != nil {
		t.Fatal(err)
	}
	if cert.FromBytes {
		t.Error("4 bytes with tail padding is not a whole number of defined u16s")
	}
}

func TestEnumSoundness(t *testing.T) {
	f := newFixture(t)
	full := f.register(t, "full-tag", layout.NewEnum("full-tag", 1).FullRange().MustBuild(), stable.OptIn())
	sparse := f.register(t, "sparse-tag", layout.NewEnum("sparse-tag", 1).Values(0, 1, 2).MustBuild(), stable.OptIn())
	smaller := f.register(t, "smaller-tag", layout.NewEnum("smaller-tag", 1).Values(0, 1).MustBuild(), stable.OptIn())
	wide := f.register(t, "wide-tag", layout.NewEnum("wide-tag", 2).FullRange().MustBuild(), stable.OptIn())
	byteID := f.register(t, "u8", layout.U8(), stable.OptIn())

	t.Run("arbitrary_bytes_into_full_range", func(t *testing.T) {
		cert, err := f.engine.Relate(byteID, full)
		if err != nil {
			t.Fatal(err)
		}
		if !cert.FromBytes {
			t.Error("full-range tag accepts every byte pattern")
		}
	})

	t.Run("arbitrary_bytes_into_sparse", func(t *testing.T) {
		cert, err := f.engine.Relate(byteID, sparse)
		if err != nil {
			t.Fatal(err)
		}
		if cert.FromBytes {
			t.Error("a byte can be 3; sparse tag must reject arbitrary patterns")
		}
	})

	t.Run("subset_enum_to_enum", func(t *testing.T) {
		cert, err := f.engine.Relate(smaller, sparse)
		if err != nil {
			t.Fatal(err)
		}
		if !cert.FromBytes {
			t.Error("{0,1} into {0,1,2} holds")
		}
	})

	t.Run("superset_rejected", func(t *testing.T) {
		cert, err := f.engine.Relate(sparse, smaller)
		if err != nil {
			t.Fatal(err)
		}
		if cert.FromBytes {
			t.Error("tag 2 has no meaning in the target")
		}
	})

	t.Run("width_mismatch_rejected", func(t *testing.T) {
		cert, err := f.engine.Relate(full, wide)
		if err != nil {
			t.Fatal(err)
		}
		if cert.FromBytes {
			t.Error("1-byte tag bytes cannot be read as a 2-byte tag")
		}
	})

	t.Run("enum_into_primitive", func(t *testing.T) {
		cert, err := f.engine.Relate(sparse, byteID)
		if err != nil {
			t.Fatal(err)
		}
		if !cert.FromBytes {
			t.Error("a tag byte is always a defined byte")
		}
	})
}

func TestUnionSource(t *testing.T) {
	f := newFixture(t)
	halves := layout.NewStruct("halves").
		Field("lo", layout.U16()).
		Field("hi", layout.U16()).
		MustBuild()
	f.register(t, "halves", halves, stable.OptIn())

	dense := layout.NewUnion("dense").Variant(layout.U32()).Variant(halves).MustBuild()
	ragged := layout.NewUnion("ragged").Variant(layout.U32()).Variant(layout.U8()).MustBuild()
	denseID := f.register(t, "dense", dense, stable.OptIn())
	raggedID := f.register(t, "ragged", ragged, stable.OptIn())
	wordID := f.register(t, "u32", layout.U32(), stable.OptIn())

	t.Run("all_variants_defined", func(t *testing.T) {
		cert, err := f.engine.Relate(denseID, wordID)
		if err != nil {
			t.Fatal(err)
		}
		if !cert.FromBytes {
			t.Error("every dense variant fills all four bytes")
		}
	})

	t.Run("short_variant_rejected", func(t *testing.T) {
		cert, err := f.engine.Relate(raggedID, wordID)
		if err != nil {
			t.Fatal(err)
		}
		if cert.FromBytes {
			t.Error("the u8 variant leaves bytes 1..4 undefined")
		}
	})
}

func TestAlignmentCompatibility(t *testing.T) {
	f := newFixture(t)
	u8ID := f.register(t, "u8", layout.U8(), stable.OptIn())
	u16ID := f.register(t, "u16", layout.U16(), stable.OptIn())
	u64ID := f.register(t, "u64", layout.U64(), stable.OptIn())

	tests := []struct {
		name     string
		src, dst stable.TypeID
		want     bool
	}{
		{"same", u16ID, u16ID, true},
		{"tighter_source", u64ID, u16ID, true},
		{"looser_source", u8ID, u16ID, false},
		{"widest_gap", u8ID, u64ID, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cert, err := f.engine.Relate(tc.src, tc.dst)
			if err != nil {
				t.Fatal(err)
			}
			if cert.AlignedTo != tc.want {
				t.Errorf("AlignedTo = %v, want %v", cert.AlignedTo, tc.want)
			}
		})
	}
}

func TestSizedTargetSizeRules(t *testing.T) {
	f := newFixture(t)
	quad := f.register(t, "quad", layout.NewStruct("quad").
		Field("lo", layout.U32()).
		Field("hi", layout.U32()).
		MustBuild(), stable.OptIn())
	pair := f.register(t, "pair", layout.NewStruct("pair").
		Field("a", layout.U16()).
		Field("b", layout.U16()).
		MustBuild(), stable.OptIn())
	word := f.register(t, "u32", layout.U32(), stable.OptIn())

	t.Run("composite_prefix_accepted", func(t *testing.T) {
		// A smaller composite target reads a prefix of the source.
		cert, err := f.engine.Derive(quad, pair)
		if err != nil {
			t.Fatal(err)
		}
		if !cert.FromBytes || cert.FromBytesCond != Unconditional {
			t.Errorf("frombytes = %v/%s, want unconditional prefix reinterpretation",
				cert.FromBytes, cert.FromBytesCond)
		}
	})

	t.Run("primitive_requires_exact_size", func(t *testing.T) {
		// A primitive is read as one whole value; no prefix reading.
		cert, err := f.engine.Derive(quad, word)
		if err != nil {
			t.Fatal(err)
		}
		if cert.FromBytes {
			t.Error("8 source bytes must not coerce to a 4-byte primitive")
		}
		if cert.Reason == nil {
			t.Error("rejection must carry its reasons")
		}
	})
}

func TestNegativeNotCached(t *testing.T) {
	f := newFixture(t)
	// u8 -> u64: neither relation holds (size and alignment both fail), so
	// nothing may enter the cache for the pair.
	u8ID := f.register(t, "u8", layout.U8(), stable.OptIn())
	u64ID := f.register(t, "u64", layout.U64(), stable.OptIn())

	cert, err := f.engine.Relate(u8ID, u64ID)
	if err != nil {
		t.Fatal(err)
	}
	if cert.FromBytes || cert.AlignedTo {
		t.Fatalf("precondition: pair must be fully negative, got %v", cert)
	}
	if _, cached := f.engine.Cache().Get(u8ID, u64ID); cached {
		t.Error("negative results are re-derived, never cached")
	}
}

func TestDeriveMatchesRelate(t *testing.T) {
	f := newFixture(t)
	arr := u16x2(t)
	f.register(t, "[2]u16", arr, stable.OptIn())
	src := f.register(t, "source", paddedSource(t), stable.OptIn())
	dst := f.register(t, "target", layout.NewStruct("target").
		Field("a", layout.U8()).
		Field("b", arr).
		MustBuild(), stable.OptIn())

	direct, err := f.engine.Derive(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	cached, err := f.engine.Relate(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if direct.FromBytes != cached.FromBytes ||
		direct.FromBytesCond != cached.FromBytesCond ||
		direct.AlignedTo != cached.AlignedTo {
		t.Errorf("direct %v disagrees with cached %v", direct, cached)
	}
}

func asEngineErr(err error, target **errors.Error) bool {
	e, ok := err.(*errors.Error)
	if ok {
		*target = e
	}
	return ok
}
