// Package coerce is the application-facing surface of the library: checked
// byte reinterpretation between registered types, backed by relation
// certificates. It never exposes descriptors or raw certificates.
//
// Three checked operations exist, each with a distinct precondition set:
//
//   - Value: by-value copy; needs byte compatibility from source to target.
//   - Ref: read-only aliasing view; additionally needs alignment
//     compatibility.
//   - MutRef: writable aliasing view; additionally needs byte compatibility
//     in the reverse direction, because a written-back target value must
//     still be a valid source value.
//
// Checked operations report failed runtime preconditions through an absence
// indicator rather than an error. The unchecked variants in unchecked.go
// skip the runtime checks entirely and are not part of the safe surface.
package coerce
