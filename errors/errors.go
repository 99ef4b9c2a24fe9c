package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseExtract  Phase = "extract"  // layout extraction
	PhaseRegister Phase = "register" // type registration
	PhaseDerive   Phase = "derive"   // relation derivation
	PhaseCompose  Phase = "compose"  // closure composition
	PhaseCoerce   Phase = "coerce"   // coercion operations
)

// Kind categorizes the error
type Kind string

const (
	KindLayoutUndefined     Kind = "layout_undefined"
	KindUnsupported         Kind = "unsupported"
	KindUnsizedPair         Kind = "unsized_pair"
	KindNotStable           Kind = "not_stable"
	KindInvalidEnum         Kind = "invalid_enum"
	KindInvalidInput        Kind = "invalid_input"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindOverflow            Kind = "overflow"
	KindPreconditionFailed  Kind = "precondition_failed"
	KindNotFound            Kind = "not_found"
	KindRegistration        Kind = "registration"
	KindIncompatible        Kind = "incompatible"
)

// Error is the structured error type used throughout the engine
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	SourceType string
	TargetType string
	Detail     string
	Path       []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.SourceType != "" || e.TargetType != "" {
		b.WriteString(": ")
		if e.SourceType != "" && e.TargetType != "" {
			b.WriteString("source ")
			b.WriteString(e.SourceType)
			b.WriteString(", target ")
			b.WriteString(e.TargetType)
		} else if e.SourceType != "" {
			b.WriteString("source ")
			b.WriteString(e.SourceType)
		} else {
			b.WriteString("target ")
			b.WriteString(e.TargetType)
		}
	}

	if e.Detail != "" {
		if e.SourceType != "" || e.TargetType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Source sets the source type name
func (b *Builder) Source(t string) *Builder {
	b.err.SourceType = t
	return b
}

// Target sets the target type name
func (b *Builder) Target(t string) *Builder {
	b.err.TargetType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// LayoutUndefined reports a type without a statically fixed representation.
func LayoutUndefined(phase Phase, typeName, reason string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindLayoutUndefined,
		SourceType: typeName,
		Detail:     reason,
	}
}

// Unsupported reports a relation query that is structurally out of scope.
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// UnsizedPair reports a relation query where neither side has a static size.
func UnsizedPair(source, target string) *Error {
	return &Error{
		Phase:      PhaseDerive,
		Kind:       KindUnsizedPair,
		SourceType: source,
		TargetType: target,
		Detail:     "neither side has a statically known size",
	}
}

// NotStable reports automatic derivation attempted on an unflagged type.
func NotStable(typeName string) *Error {
	return &Error{
		Phase:      PhaseDerive,
		Kind:       KindNotStable,
		SourceType: typeName,
		Detail:     "layout is not stability-flagged; requires manual certification",
	}
}

// InvalidDiscriminant reports an enum tag value outside the valid set.
func InvalidDiscriminant(phase Phase, path []string, disc uint64, width uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEnum,
		Path:   path,
		Detail: fmt.Sprintf("discriminant %d does not fit tag width %d bytes", disc, width),
		Value:  disc,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// NotFound reports a lookup of an unregistered type handle.
func NotFound(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: what,
	}
}

// IsLayoutUndefined reports whether err is a layout_undefined error.
func IsLayoutUndefined(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindLayoutUndefined
}

// IsUnsupported reports whether err is a definitive negative relation result
// (unsupported, unsized pair, or stability-gate rejection). Callers branch on
// this rather than treating it as exceptional.
func IsUnsupported(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindUnsupported, KindUnsizedPair, KindNotStable:
		return true
	}
	return false
}
