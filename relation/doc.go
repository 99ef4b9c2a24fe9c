// Package relation decides, for an ordered pair of registered types, whether
// byte reinterpretation is sound in each of the two supported senses, and
// maintains the transitive closure of the results.
//
// Two relations are computed per pair:
//
//   - from-bytes: the source's bytes always form a valid instance of the
//     target. Directional, and conditional when the source's size is only
//     known at runtime.
//   - aligned-to: any address satisfying the source's alignment also
//     satisfies the target's. Always a static fact.
//
// Derivation is structural over layout descriptors: primitive targets need a
// fully defined prefix of matching size, enum targets need every producible
// tag pattern to be legal, and composite targets are checked span by span
// against every concrete layout of the source. Results are certificates, cached for the
// engine's lifetime and composed transitively through a bounded worklist.
// Negative outcomes are never cached; absence is re-derived.
//
// Automatic derivation is gated on both types being stability-flagged in the
// registry. Manually certified pairs bypass the gate and are trusted as
// ground truth, including in closure composition.
package relation
