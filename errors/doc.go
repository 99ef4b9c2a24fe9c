// Package errors provides structured error types for the recast library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: element path, source and
// target type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDerive, errors.KindIncompatible).
//		Path("pair", "b").
//		Source("padded-pair").
//		Target("dense-pair").
//		Detail("offset 1 is undefined in the source").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotStable("user-record")
//	err := errors.UnsizedPair("byte-stream", "str")
//
// All errors implement the standard error interface and support errors.Is/As.
// The Kind taxonomy distinguishes definitive negative results (unsupported,
// unsized_pair, not_stable — callers branch on errors.IsUnsupported) from
// actual failures such as layout_undefined.
package errors
