package relation

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/recast/errors"
	"github.com/wippyai/recast/layout"
	"github.com/wippyai/recast/stable"
)

// Engine derives relation certificates over a type registry. Derivation is
// pure computation over immutable descriptors; the certificate cache is the
// only shared mutable state.
type Engine struct {
	reg    *stable.Registry
	cache  *Cache
	logger *zap.Logger

	// paddingOverwrite relaxes the source-padding rule: a target span that
	// admits any bit pattern may overlay undefined source bytes even where
	// the target considers them meaningful. Off by default; turning it on
	// accepts that coerced writes may put defined data where the source had
	// padding.
	paddingOverwrite bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPaddingOverwrite toggles the padding-overwrite policy described on
// Engine. Leave it off unless every participating type tolerates defined
// data appearing in its padding.
func WithPaddingOverwrite(v bool) Option {
	return func(e *Engine) { e.paddingOverwrite = v }
}

// NewEngine creates an engine over the given registry.
func NewEngine(reg *stable.Registry, opts ...Option) *Engine {
	e := &Engine{
		reg:   reg,
		cache: NewCache(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = Logger()
	}
	return e
}

// Cache exposes the engine's certificate cache.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// Relate returns the certificate for the ordered pair, from cache when
// present, deriving and closing transitively otherwise.
func (e *Engine) Relate(src, dst stable.TypeID) (*Certificate, error) {
	if cert, ok := e.cache.Get(src, dst); ok {
		e.logger.Debug("relation cache hit", zap.Stringer("cert", cert))
		return cert, nil
	}
	cert, err := e.Derive(src, dst)
	if err != nil {
		return nil, err
	}
	if cert.FromBytes || cert.AlignedTo {
		cert = e.insertAndClose(cert)
	}
	return cert, nil
}

// Certify accepts a hand-verified certificate for a pair that fails the
// stability gate. The engine trusts it without re-verification and applies
// it in closure computation exactly like a derived one.
func (e *Engine) Certify(cert *Certificate) error {
	if cert == nil {
		return errors.New(errors.PhaseDerive, errors.KindInvalidInput).
			Detail("nil certificate").
			Build()
	}
	if _, err := e.reg.Descriptor(cert.Source); err != nil {
		return err
	}
	if _, err := e.reg.Descriptor(cert.Target); err != nil {
		return err
	}
	manual := *cert
	manual.Manual = true
	e.insertAndClose(&manual)
	e.logger.Debug("manual certificate accepted", zap.Stringer("cert", &manual))
	return nil
}

// Derive computes both relations structurally for the ordered pair. It does
// not consult or fill the cache; Relate does. Automatic derivation requires
// both types to pass the stability gate.
func (e *Engine) Derive(src, dst stable.TypeID) (*Certificate, error) {
	s, err := e.reg.Descriptor(src)
	if err != nil {
		return nil, err
	}
	t, err := e.reg.Descriptor(dst)
	if err != nil {
		return nil, err
	}

	// Reflexivity: identity reinterpretation is trivially sound for any
	// type, stability-flagged or not.
	if src == dst || s == t {
		regime := BothSized
		if s.Unsized() {
			regime = SourceUnsized
		}
		return &Certificate{
			Source:    src,
			Target:    dst,
			FromBytes: true,
			AlignedTo: true,
			Regime:    regime,
		}, nil
	}

	if !e.reg.IsStable(src) {
		return nil, errors.NotStable(e.reg.Name(src))
	}
	if !e.reg.IsStable(dst) {
		return nil, errors.NotStable(e.reg.Name(dst))
	}

	if s.Unsized() && t.Unsized() {
		return nil, errors.UnsizedPair(e.reg.Name(src), e.reg.Name(dst))
	}
	regime := BothSized
	switch {
	case s.Unsized():
		regime = SourceUnsized
	case t.Unsized():
		regime = TargetUnsized
	}

	d := &deriver{engine: e}
	fb, cond := d.fromBytes(s, t)

	cert := &Certificate{
		Source:        src,
		Target:        dst,
		FromBytes:     fb,
		FromBytesCond: cond,
		AlignedTo:     t.Align() <= s.Align(),
		Regime:        regime,
	}
	if !fb && len(d.reasons) > 0 {
		cert.Reason = multierr.Combine(d.reasons...)
		e.logger.Debug("byte compatibility rejected",
			zap.String("source", e.reg.Name(src)),
			zap.String("target", e.reg.Name(dst)),
			zap.Error(cert.Reason),
		)
	}
	e.logger.Debug("relation derived", zap.Stringer("cert", cert))
	return cert, nil
}

type pairMemo struct {
	ok   bool
	cond Cond
}

// deriver runs one structural derivation. The memo keeps the walk linear in
// the number of distinct sub-pairs; reasons collects why variants were
// rejected, surfaced as the certificate's Reason.
type deriver struct {
	engine  *Engine
	memo    map[[2]*layout.Descriptor]pairMemo
	reasons []error
}

// fromBytes decides whether source bytes always form a valid target
// instance, case-split by target kind.
func (d *deriver) fromBytes(s, t *layout.Descriptor) (bool, Cond) {
	if s == t {
		return true, Unconditional
	}
	key := [2]*layout.Descriptor{s, t}
	if d.memo != nil {
		if m, ok := d.memo[key]; ok {
			return m.ok, m.cond
		}
	}

	var ok bool
	var cond Cond
	switch t.Kind() {
	case layout.KindPrimitive:
		ok, cond = d.primitiveTarget(s, t)
	case layout.KindEnum:
		ok, cond = d.enumTarget(s, t)
	case layout.KindComposite:
		ok, cond = d.compositeTarget(s, t)
	}

	if d.memo == nil {
		d.memo = make(map[[2]*layout.Descriptor]pairMemo)
	}
	d.memo[key] = pairMemo{ok: ok, cond: cond}
	return ok, cond
}

// primitiveTarget: every concrete source layout must have no undefined byte
// within the target's extent, and sizes must match unless the source length
// is a runtime fact.
func (d *deriver) primitiveTarget(s, t *layout.Descriptor) (bool, Cond) {
	n := t.Size()
	if !s.SurelyInitialized(0, n) {
		d.reject("undefined byte within the first %d bytes of %s", n, s.Name())
		return false, Unconditional
	}
	if s.Unsized() {
		return true, SizeChecked
	}
	if s.Size() != n {
		d.reject("size mismatch: %s is %d bytes, %s needs %d", s.Name(), s.Size(), t.Name(), n)
		return false, Unconditional
	}
	return true, Unconditional
}

// enumTarget: an enum source must produce only discriminants legal for the
// target; any other source must have a fully defined tag range, and the
// target must accept every bit pattern of that range.
func (d *deriver) enumTarget(s, t *layout.Descriptor) (bool, Cond) {
	if s.Kind() == layout.KindEnum {
		if s.TagWidth() != t.TagWidth() {
			d.reject("tag width mismatch: %s is %d bytes, %s is %d", s.Name(), s.TagWidth(), t.Name(), t.TagWidth())
			return false, Unconditional
		}
		if !s.TagSubsetOf(t) {
			d.reject("%s can produce discriminants invalid for %s", s.Name(), t.Name())
			return false, Unconditional
		}
		return true, Unconditional
	}

	w := t.TagWidth()
	if !t.TagFullRange() {
		// An arbitrary source pattern could land outside the valid set.
		d.reject("target %s does not accept every %d-byte pattern as a tag", t.Name(), w)
		return false, Unconditional
	}
	if !s.SurelyInitialized(0, w) {
		d.reject("undefined byte in the tag range of %s", s.Name())
		return false, Unconditional
	}
	if s.Unsized() {
		return true, SizeChecked
	}
	if s.Size() != t.Size() {
		d.reject("size mismatch: %s is %d bytes, %s needs %d", s.Name(), s.Size(), t.Name(), t.Size())
		return false, Unconditional
	}
	return true, Unconditional
}

// compositeTarget walks every concrete layout of the target and checks each
// defined span against every concrete layout of the source.
func (d *deriver) compositeTarget(s, t *layout.Descriptor) (bool, Cond) {
	if t.Unsized() {
		return d.unsizedTarget(s, t)
	}

	cond := Unconditional
	if s.Unsized() {
		cond = SizeChecked
	} else if t.Size() > s.Size() {
		d.reject("target %s (%d bytes) extends past source %s (%d bytes)", t.Name(), t.Size(), s.Name(), s.Size())
		return false, Unconditional
	}

	for _, tc := range t.Variants() {
		for _, span := range tc.Spans() {
			if span.Undefined() {
				// Target padding constrains nothing.
				continue
			}
			if !d.spanOK(s, span.Offset, span.Elem) {
				return false, Unconditional
			}
		}
	}
	return true, cond
}

// unsizedTarget handles a sized source against a slice-like target: the
// source must split evenly into element-sized chunks, each a valid element.
func (d *deriver) unsizedTarget(s, t *layout.Descriptor) (bool, Cond) {
	stride := t.Size()
	if s.Size()%stride != 0 {
		d.reject("source %s (%d bytes) is not a whole number of %s elements (stride %d)",
			s.Name(), s.Size(), t.Name(), stride)
		return false, Unconditional
	}
	for off := uint32(0); off < s.Size(); off += stride {
		if !d.spanOK(s, off, t.Elem()) {
			return false, Unconditional
		}
	}
	return true, Unconditional
}

// spanOK checks one defined target span at offset o against every concrete
// layout of the source. For each source layout, either a source element sits
// at the same offset and is itself byte-compatible with the span's type, or
// the span type admits any bit pattern and no byte the target considers
// meaningful overlays an undefined source byte.
func (d *deriver) spanOK(s *layout.Descriptor, o uint32, te *layout.Descriptor) bool {
	if s.Unsized() {
		stride := s.Size()
		rel := o % stride
		if rel+te.Size() > stride {
			// Crosses an element boundary; only the escape hatch applies,
			// checked against the repeating element pattern.
			return d.anyBitsOverlay(te, func(i uint32) bool {
				return s.SurelyInitialized(o+i, o+i+1)
			})
		}
		for _, sc := range s.Elem().Variants() {
			if !d.spanOKConcrete(sc, rel, te, s, o) {
				return false
			}
		}
		return true
	}

	for _, sc := range s.Variants() {
		if !d.spanOKConcrete(sc, o, te, s, o) {
			return false
		}
	}
	return true
}

func (d *deriver) spanOKConcrete(sc layout.Concrete, rel uint32, te *layout.Descriptor, s *layout.Descriptor, absOff uint32) bool {
	if se, found := sc.SpanAt(rel); found && se.Size == te.Size() {
		if ok, _ := d.fromBytes(se.Elem, te); ok {
			return true
		}
	}
	if d.anyBitsOverlay(te, func(i uint32) bool {
		return sc.Defined(rel+i, rel+i+1)
	}) {
		return true
	}
	d.reject("no source element at offset %d of %s is compatible with %s", absOff, s.Name(), te.Name())
	return false
}

// anyBitsOverlay is the escape hatch: the target span accepts arbitrary
// bytes, and unless the padding-overwrite policy is on, no byte the target
// may initialize overlays an undefined source byte. sourceDefined reports
// definedness at an offset relative to the span start.
func (d *deriver) anyBitsOverlay(te *layout.Descriptor, sourceDefined func(uint32) bool) bool {
	if !te.AdmitsAnyBits() {
		return false
	}
	if d.engine.paddingOverwrite {
		return true
	}
	for i := uint32(0); i < te.Size(); i++ {
		if te.MaybeInitialized(i) && !sourceDefined(i) {
			return false
		}
	}
	return true
}

func (d *deriver) reject(format string, args ...any) {
	d.reasons = append(d.reasons, errors.New(errors.PhaseDerive, errors.KindIncompatible).
		Detail(format, args...).
		Build())
}
