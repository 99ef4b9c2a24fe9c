// Package extract converts external type descriptions into layout
// descriptors: WIT types per the component model's Canonical ABI, and Go
// types through package reflect. It is the input boundary of the library;
// everything downstream reasons only over the descriptors produced here.
//
// Types whose byte representation is not fixed (resource handles, Go
// pointers and pointer-bearing kinds) fail with a layout-undefined error
// rather than getting a guessed layout.
package extract
