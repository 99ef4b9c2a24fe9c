package relation

import "go.uber.org/zap"

// maxClosureWork bounds the composition worklist per insertion. The type
// universe any one program touches is small; hitting the bound only costs
// closure completeness, never correctness, since Relate falls back to direct
// derivation on a cache miss.
const maxClosureWork = 4096

// insertAndClose inserts cert and opportunistically composes it with every
// cached certificate it chains with, inserting the compositions in turn.
// Returns the certificate that won the insertion race for cert's own pair.
func (e *Engine) insertAndClose(cert *Certificate) *Certificate {
	winner, inserted := e.cache.putIfAbsent(cert)
	if !inserted {
		return winner
	}

	work := []*Certificate{winner}
	budget := maxClosureWork
	for len(work) > 0 {
		if budget--; budget < 0 {
			e.logger.Warn("closure worklist bound reached",
				zap.Int("cached", e.cache.Len()))
			break
		}
		ab := work[0]
		work = work[1:]

		// (A,B) + cached (B,C) => (A,C)
		for _, bc := range e.cache.from(ab.Target) {
			work = e.composeInto(ab, bc, work)
		}
		// cached (X,A) + (A,B) => (X,B)
		for _, xa := range e.cache.to(ab.Source) {
			work = e.composeInto(xa, ab, work)
		}
	}
	return winner
}

func (e *Engine) composeInto(ab, bc *Certificate, work []*Certificate) []*Certificate {
	if ab.Source == bc.Target {
		// Reflexive pairs are trivially derivable; composing them in adds
		// nothing.
		return work
	}
	composed, ok := compose(ab, bc)
	if !ok {
		return work
	}
	if !composed.FromBytes {
		// A chain that only carries alignment proves nothing about byte
		// compatibility of the endpoints; caching it would shadow direct
		// derivation. Alignment-only facts are cheap to re-derive.
		return work
	}
	// Alignment compatibility is a fact about the endpoints alone; derive
	// it directly so closure results agree with direct derivation even when
	// the middle type's alignment breaks the chain.
	if sDesc, err := e.reg.Descriptor(composed.Source); err == nil {
		if tDesc, err := e.reg.Descriptor(composed.Target); err == nil {
			composed.AlignedTo = tDesc.Align() <= sDesc.Align()
		}
	}
	if _, exists := e.cache.Get(composed.Source, composed.Target); exists {
		return work
	}
	if winner, inserted := e.cache.putIfAbsent(composed); inserted {
		e.logger.Debug("closure composed", zap.Stringer("cert", winner))
		work = append(work, winner)
	}
	return work
}
