// Package stable is the layout-stability gate: a registry of type layouts
// with a per-type flag saying whether the layout is part of the type's
// public contract.
//
// A type is stability-flagged only when all three hold: it explicitly opted
// in at registration, its representation policy qualifies (pluggable
// predicate; the default accepts the platform-fixed layouts the layout
// builders produce), and every constituent field or element layout is itself
// stability-flagged. The last condition makes the flag a bottom-up fixed
// point over the composite structure. Primitive and enum layouts have a
// fixed shape by construction and count as stable constituents without
// registration.
//
// Relation derivation consults this gate before any automatic derivation;
// manual certification bypasses it, shifting the soundness burden to the
// certifier.
package stable
