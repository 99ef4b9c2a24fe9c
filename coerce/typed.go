package coerce

import "unsafe"

// Typed bridge between verified byte views and Go values. All unsafe use in
// the package lives here. These helpers check only the mechanical facts a
// byte slice carries (length, base address alignment); whether the bytes
// form a valid T is established by the Coercer before the view is handed
// over.

// As reinterprets a coerced view as a *T, aliasing the view's storage. It
// fails when the view is shorter than T or its base address does not
// satisfy T's alignment.
func As[T any](view []byte) (*T, bool) {
	var zero T
	if uintptr(len(view)) < unsafe.Sizeof(zero) {
		return nil, false
	}
	p := unsafe.Pointer(unsafe.SliceData(view))
	if uintptr(p)%unsafe.Alignof(zero) != 0 {
		return nil, false
	}
	return (*T)(p), true
}

// ValueAs copies a coerced view into a fresh T. Unlike As it has no
// alignment requirement on the view.
func ValueAs[T any](view []byte) (T, bool) {
	var v T
	if uintptr(len(view)) < unsafe.Sizeof(v) {
		return v, false
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v))
	copy(dst, view)
	return v, true
}

// Bytes exposes the storage of v as a byte slice, suitable as coercion
// input for a type registered with v's layout.
func Bytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}
