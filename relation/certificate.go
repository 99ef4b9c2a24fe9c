package relation

import (
	"fmt"

	"github.com/wippyai/recast/stable"
)

// Cond says whether a from-bytes relation holds outright or only once a
// runtime size check passes.
type Cond uint8

const (
	Unconditional Cond = iota
	SizeChecked
)

func (c Cond) String() string {
	if c == SizeChecked {
		return "size-checked"
	}
	return "unconditional"
}

// Regime identifies which size pairing applied to a certificate. Pairs where
// neither side has a static size are rejected outright and never get one.
type Regime uint8

const (
	BothSized Regime = iota
	SourceUnsized
	TargetUnsized
)

func (r Regime) String() string {
	switch r {
	case SourceUnsized:
		return "source-unsized"
	case TargetUnsized:
		return "target-unsized"
	}
	return "both-sized"
}

// Certificate records the engine's verdict for one ordered type pair.
// Immutable once produced; safe to share across goroutines.
type Certificate struct {
	Source stable.TypeID
	Target stable.TypeID

	// FromBytes reports byte compatibility: source bytes reinterpreted as
	// target bytes. FromBytesCond qualifies it.
	FromBytes     bool
	FromBytesCond Cond

	// AlignedTo reports that the target's alignment requirement does not
	// exceed the source's. Always an unconditional static fact.
	AlignedTo bool

	Regime Regime

	// Manual marks a hand-certified pair: trusted without re-verification,
	// soundness responsibility rests with the submitter.
	Manual bool

	// Reason aggregates why derivation rejected byte compatibility. Nil
	// when FromBytes is true or the certificate was composed or certified.
	Reason error
}

// Unconditional reports whether byte compatibility holds with no runtime
// precondition.
func (c *Certificate) Unconditional() bool {
	return c.FromBytes && c.FromBytesCond == Unconditional
}

func (c *Certificate) String() string {
	return fmt.Sprintf("cert(%d->%d frombytes=%v/%s aligned=%v regime=%s manual=%v)",
		c.Source, c.Target, c.FromBytes, c.FromBytesCond, c.AlignedTo, c.Regime, c.Manual)
}

// compose chains (A,B) with (B,C) into an (A,C) candidate. A conditional
// from-bytes on either side keeps the composition conditional; it is never
// upgraded to unconditional. Returns false when the size regimes cannot
// chain (the composed pair would be unsized on both ends).
func compose(ab, bc *Certificate) (*Certificate, bool) {
	if ab.Target != bc.Source {
		return nil, false
	}
	regime, ok := composeRegime(ab.Regime, bc.Regime)
	if !ok {
		return nil, false
	}

	cond := Unconditional
	if ab.FromBytesCond == SizeChecked || bc.FromBytesCond == SizeChecked {
		cond = SizeChecked
	}
	return &Certificate{
		Source:        ab.Source,
		Target:        bc.Target,
		FromBytes:     ab.FromBytes && bc.FromBytes,
		FromBytesCond: cond,
		AlignedTo:     ab.AlignedTo && bc.AlignedTo,
		Regime:        regime,
		Manual:        ab.Manual || bc.Manual,
	}, true
}

func composeRegime(ab, bc Regime) (Regime, bool) {
	srcUnsized := ab == SourceUnsized
	dstUnsized := bc == TargetUnsized
	switch {
	case srcUnsized && dstUnsized:
		// Unsized on both ends of the composition; out of scope.
		return 0, false
	case srcUnsized:
		return SourceUnsized, true
	case dstUnsized:
		return TargetUnsized, true
	}
	return BothSized, true
}
