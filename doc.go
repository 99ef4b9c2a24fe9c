// Package recast verifies layout compatibility between memory
// representations and builds safe zero-copy reinterpretation on top of the
// verified relations.
//
// Given structural descriptions of two types, the engine decides whether the
// raw bytes of one can be reinterpreted as the other without copying and
// without reading padding or producing invalid enum discriminants. The
// decision is sound: an approved reinterpretation never observes an
// undefined byte and never fabricates an out-of-range discriminant.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	recast/          Root package with the linear Memory interface
//	├── layout/      Descriptors: size, alignment, per-byte init status
//	├── stable/      Type registry and the layout-stability gate
//	├── relation/    Byte/alignment compatibility engine, closure, cache
//	├── coerce/      Checked and unchecked coercions over verified pairs
//	├── extract/     Layout extraction from WIT types and Go reflect
//	└── errors/      Structured error types for debugging
//
// # Quick Start
//
// Register two struct layouts and coerce a byte view:
//
//	reg := stable.NewRegistry()
//	src, _ := reg.Register("word", layout.NewStruct("word").
//	    Field("w", layout.U32()).
//	    MustBuild(), stable.OptIn())
//	dst, _ := reg.Register("pair", layout.NewStruct("pair").
//	    Field("a", layout.U16()).
//	    Field("b", layout.U16()).
//	    MustBuild(), stable.OptIn())
//
//	c := coerce.New(reg)
//	view, ok := c.Ref(src, dst, data)
//
// Relations are derived once, cached, and closed transitively; repeated
// queries for the same ordered pair return the cached certificate.
package recast
