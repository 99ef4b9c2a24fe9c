package coerce

import (
	"go.uber.org/zap"

	recast "github.com/wippyai/recast"
	"github.com/wippyai/recast/errors"
	"github.com/wippyai/recast/layout"
	"github.com/wippyai/recast/relation"
	"github.com/wippyai/recast/stable"
)

// Coercer performs checked reinterpretation between registered types. It is
// safe for concurrent use; certificates are derived on first demand and
// served from the engine's cache afterwards.
type Coercer struct {
	reg    *stable.Registry
	engine *relation.Engine
	logger *zap.Logger
}

// Option configures a Coercer.
type Option func(*Coercer)

// WithEngine supplies a pre-built relation engine, e.g. one configured with
// a padding-overwrite policy or preloaded with manual certificates. Defaults
// to a fresh engine over the registry.
func WithEngine(e *relation.Engine) Option {
	return func(c *Coercer) { c.engine = e }
}

// WithLogger sets the coercer's logger. Defaults to the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coercer) { c.logger = l }
}

// New creates a Coercer over the given registry.
func New(reg *stable.Registry, opts ...Option) *Coercer {
	c := &Coercer{reg: reg}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = relation.NewEngine(reg)
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	return c
}

// Engine exposes the underlying relation engine, e.g. for submitting manual
// certificates.
func (c *Coercer) Engine() *relation.Engine {
	return c.engine
}

// Value reinterprets data, a source value, as a fresh target value. The
// returned slice is a copy and does not alias data.
func (c *Coercer) Value(src, dst stable.TypeID, data []byte) ([]byte, error) {
	cert, s, t, err := c.relate(src, dst)
	if err != nil {
		return nil, err
	}
	n, ok := viewLen(cert, s, t, uint32(len(data)))
	if !ok {
		return nil, errors.New(errors.PhaseCoerce, errors.KindPreconditionFailed).
			Source(c.reg.Name(src)).
			Target(c.reg.Name(dst)).
			Detail("%d input bytes do not satisfy the size condition", len(data)).
			Build()
	}
	out := make([]byte, n)
	copy(out, data)
	return out, nil
}

// Ref returns a read-only view of data reinterpreted as the target type, or
// false when the pair is not compatible or a runtime size condition fails.
// The view aliases data; callers must not write through it.
func (c *Coercer) Ref(src, dst stable.TypeID, data []byte) ([]byte, bool) {
	cert, s, t, err := c.relate(src, dst)
	if err != nil {
		c.logger.Debug("ref coercion rejected", zap.Error(err))
		return nil, false
	}
	if !cert.AlignedTo {
		return nil, false
	}
	n, ok := viewLen(cert, s, t, uint32(len(data)))
	if !ok {
		return nil, false
	}
	return data[:n:n], true
}

// MutRef returns a writable view of data reinterpreted as the target type.
// On top of Ref's preconditions it requires byte compatibility in the
// reverse direction: any target value written through the view must remain
// a valid source value.
func (c *Coercer) MutRef(src, dst stable.TypeID, data []byte) ([]byte, bool) {
	view, ok := c.Ref(src, dst, data)
	if !ok {
		return nil, false
	}
	rev, err := c.engine.Relate(dst, src)
	if err != nil || !rev.FromBytes {
		c.logger.Debug("mutable coercion rejected: reverse direction does not hold",
			zap.String("source", c.reg.Name(src)),
			zap.String("target", c.reg.Name(dst)),
		)
		return nil, false
	}
	return view, true
}

// RefAt returns a read-only view of the target type at ptr inside a linear
// memory. Bounds come from the memory itself and the alignment requirement
// is checked against the concrete address, so a pair whose static alignment
// relation fails can still coerce at a sufficiently aligned pointer.
func (c *Coercer) RefAt(mem recast.Memory, ptr uint32, src, dst stable.TypeID) ([]byte, bool) {
	cert, s, t, err := c.relate(src, dst)
	if err != nil {
		c.logger.Debug("region coercion rejected", zap.Error(err))
		return nil, false
	}
	if !layout.IsAligned(uint64(ptr), t.Align()) {
		return nil, false
	}

	need, view := s.Size(), t.Size()
	switch cert.Regime {
	case relation.SourceUnsized:
		// Dynamic source length; the bounds check below is the size check.
		need = t.Size()
	case relation.TargetUnsized:
		view = need
	}
	buf, ok := mem.Read(ptr, need)
	if !ok {
		return nil, false
	}
	return buf[:view:view], true
}

// relate resolves the certificate and both descriptors, rejecting pairs
// without byte compatibility.
func (c *Coercer) relate(src, dst stable.TypeID) (*relation.Certificate, *layout.Descriptor, *layout.Descriptor, error) {
	cert, err := c.engine.Relate(src, dst)
	if err != nil {
		return nil, nil, nil, err
	}
	if !cert.FromBytes {
		return nil, nil, nil, errors.New(errors.PhaseCoerce, errors.KindIncompatible).
			Source(c.reg.Name(src)).
			Target(c.reg.Name(dst)).
			Detail("bytes of the source do not form a valid target value").
			Cause(cert.Reason).
			Build()
	}
	s, err := c.reg.Descriptor(src)
	if err != nil {
		return nil, nil, nil, err
	}
	t, err := c.reg.Descriptor(dst)
	if err != nil {
		return nil, nil, nil, err
	}
	return cert, s, t, nil
}

// viewLen resolves the byte length of the coerced view and discharges the
// certificate's size condition against the input length. The input must be
// a whole source value; the view covers the target's extent.
func viewLen(cert *relation.Certificate, s, t *layout.Descriptor, have uint32) (uint32, bool) {
	switch cert.Regime {
	case relation.SourceUnsized:
		// Input is some number of source elements; the target needs its
		// full extent out of them.
		if s.Size() == 0 || have%s.Size() != 0 || have < t.Size() {
			return 0, false
		}
		return t.Size(), true
	case relation.TargetUnsized:
		if have != s.Size() {
			return 0, false
		}
		return have, true
	default:
		if have != s.Size() {
			return 0, false
		}
		return t.Size(), true
	}
}
