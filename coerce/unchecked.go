package coerce

import "github.com/wippyai/recast/stable"

// The operations in this file skip every runtime precondition: no
// certificate lookup, no size condition, no alignment check. They exist for
// call sites that have already discharged the preconditions out of band,
// e.g. through build-time verification. Violating a precondition is not a
// reportable error; the resulting view is simply wrong. Keep uses of these
// grep-able and rare.

// UncheckedValue copies data into a fresh value of the target type without
// verifying any relation. The caller is responsible for data being a valid
// source value of a pair byte-compatible with dst.
func (c *Coercer) UncheckedValue(dst stable.TypeID, data []byte) []byte {
	view := c.uncheckedView(dst, data)
	out := make([]byte, len(view))
	copy(out, view)
	return out
}

// UncheckedRef returns data as a read-only view of the target type without
// verifying byte or alignment compatibility.
func (c *Coercer) UncheckedRef(dst stable.TypeID, data []byte) []byte {
	return c.uncheckedView(dst, data)
}

// UncheckedMutRef returns data as a writable view of the target type
// without verifying either direction of byte compatibility. Writes through
// the view may leave the underlying source value invalid.
func (c *Coercer) UncheckedMutRef(dst stable.TypeID, data []byte) []byte {
	return c.uncheckedView(dst, data)
}

func (c *Coercer) uncheckedView(dst stable.TypeID, data []byte) []byte {
	t, err := c.reg.Descriptor(dst)
	if err != nil || t.Unsized() || uint32(len(data)) < t.Size() {
		return data
	}
	return data[:t.Size()]
}
