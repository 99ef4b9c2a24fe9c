package stable

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/recast/errors"
	"github.com/wippyai/recast/layout"
)

// TypeID is an opaque handle to a registered type.
// TypeID 0 is reserved and always invalid.
type TypeID uint32

// Policy decides whether a descriptor's representation rule qualifies for
// stability flagging. The default accepts every descriptor the layout
// builders produce, all of which follow the platform-fixed layout rule.
type Policy func(*layout.Descriptor) bool

type entry struct {
	desc  *layout.Descriptor
	name  string
	optIn bool
}

// Registry maps type handles to layout descriptors and computes the
// stability flag. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	policy Policy
	logger *zap.Logger

	entries []entry // index = TypeID - 1
	byName  map[string]TypeID
	byDesc  map[*layout.Descriptor]TypeID
	stable  map[TypeID]bool // memoized fixed point
}

// Option configures a Registry.
type Option func(*Registry)

// WithPolicy replaces the representation-policy predicate.
func WithPolicy(p Policy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithLogger sets the registry's logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty type registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		policy: func(*layout.Descriptor) bool { return true },
		logger: zap.NewNop(),
		byName: make(map[string]TypeID),
		byDesc: make(map[*layout.Descriptor]TypeID),
		stable: make(map[TypeID]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterOption configures one registration.
type RegisterOption func(*entry)

// OptIn declares that the type's layout is part of its public contract.
// Without it the type can never be stability-flagged.
func OptIn() RegisterOption {
	return func(e *entry) { e.optIn = true }
}

// Register adds a type and returns its handle. Names are unique; the
// descriptor must be non-nil.
func (r *Registry) Register(name string, desc *layout.Descriptor, opts ...RegisterOption) (TypeID, error) {
	if desc == nil {
		return 0, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Path(name).
			Detail("nil descriptor").
			Build()
	}

	e := entry{desc: desc, name: name}
	for _, opt := range opts {
		opt(&e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byName[name]; dup {
		return 0, errors.New(errors.PhaseRegister, errors.KindRegistration).
			Path(name).
			Detail("type name already registered").
			Build()
	}

	r.entries = append(r.entries, e)
	id := TypeID(len(r.entries))
	r.byName[name] = id
	if _, ok := r.byDesc[desc]; !ok {
		r.byDesc[desc] = id
	}
	// Stability memos depend on the registered set; drop them.
	r.stable = make(map[TypeID]bool)

	r.logger.Debug("type registered",
		zap.String("name", name),
		zap.Uint32("id", uint32(id)),
		zap.Bool("opt_in", e.optIn),
		zap.Stringer("layout", desc),
	)
	return id, nil
}

// Descriptor returns the layout for a handle.
func (r *Registry) Descriptor(id TypeID) (*layout.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.desc, nil
}

// Name returns the registered name for a handle, or "" if unknown.
func (r *Registry) Name(id TypeID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookup(id)
	if err != nil {
		return ""
	}
	return e.name
}

// ByName returns the handle registered under name.
func (r *Registry) ByName(name string) (TypeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// IsStable reports whether the type's layout is stability-flagged: opted in,
// representation policy qualifies, and every constituent layout is stable.
// Pure predicate; results are memoized until the next registration.
func (r *Registry) IsStable(id TypeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.stable[id]; ok {
		return v
	}
	e, err := r.lookup(id)
	if err != nil {
		return false
	}
	v := e.optIn && r.stableDesc(e.desc)
	r.stable[id] = v
	return v
}

// stableDesc is the bottom-up fixed point over the descriptor tree.
// Callers hold r.mu.
func (r *Registry) stableDesc(d *layout.Descriptor) bool {
	switch d.Kind() {
	case layout.KindPrimitive, layout.KindEnum:
		// Fixed-shape layouts; stable constituents by construction.
		return true
	}
	if !r.policy(d) {
		return false
	}
	if d.Unsized() {
		return r.stableConstituent(d.Elem())
	}
	for _, v := range d.Variants() {
		for _, s := range v.Spans() {
			if s.Undefined() {
				continue
			}
			if !r.stableConstituent(s.Elem) {
				return false
			}
		}
	}
	return true
}

func (r *Registry) stableConstituent(d *layout.Descriptor) bool {
	switch d.Kind() {
	case layout.KindPrimitive, layout.KindEnum:
		return true
	}
	id, ok := r.byDesc[d]
	if !ok {
		return false
	}
	if v, memo := r.stable[id]; memo {
		return v
	}
	e := r.entries[id-1]
	v := e.optIn && r.stableDesc(e.desc)
	r.stable[id] = v
	return v
}

func (r *Registry) lookup(id TypeID) (entry, error) {
	if id == 0 || int(id) > len(r.entries) {
		return entry{}, errors.NotFound(errors.PhaseRegister, "unknown type id")
	}
	return r.entries[id-1], nil
}
