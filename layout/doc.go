// Package layout models the memory shape of a type: size, alignment, and the
// initialization status of every byte.
//
// A Descriptor is pure data, immutable once built. It carries one or more
// concrete layouts — ordered span sequences where each span is either a
// sub-descriptor or undefined bytes (padding, unfilled variant storage).
// Ordinary structs and arrays have exactly one concrete layout; union-like
// types with overlapping storage have one per variant. Padding is always
// recorded explicitly, never inferred, because the soundness of relation
// derivation depends on the undefined-byte map being exhaustive.
//
// # Layout Rules
//
// Builders follow the platform-fixed layout rule:
//   - Primitives: size equals alignment (u8=1, u32=4, u64=8, etc.)
//   - Structs: fields laid out in order with explicit padding for alignment,
//     total size rounded up to the largest field alignment
//   - Enums: a bare discriminant of 1, 2 or 4 bytes with a declared set of
//     valid tag values
//   - Unions: one concrete layout per variant, padded to the common size
//   - Slices: an unsized run of a fixed element layout
//
// # Usage
//
//	desc, err := layout.NewStruct("header").
//	    Field("tag", layout.U8()).
//	    Field("len", layout.U16()).
//	    Build()
//	// desc.Size() == 4, desc.Align() == 2, explicit padding at offset 1
package layout
