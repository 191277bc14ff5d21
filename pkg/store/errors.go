package store

import "errors"

// WrongKind is returned when a payload accessor is called against an Entry
// whose discriminant does not match the accessed variant. It is a
// programming error at the call site, surfaced so the command layer can
// respond with a protocol-level type error (e.g. Redis' WRONGTYPE).
var WrongKind = errors.New("WRONGTYPE operation against a key holding the wrong kind of value")

// InvalidPredicate is returned by InsertIf when both nx and xx are set; the
// two are mutually exclusive and the call is rejected before any mutation.
var InvalidPredicate = errors.New("invalid predicate: nx and xx cannot both be set")

// AllocationFailure names a failed entry or bucket allocation. No code path
// in this package returns it: Allocator.Get has no error result, and neither
// inserts nor rehashes detect a failed allocation.
var AllocationFailure = errors.New("allocation failure")

// MissingReleaser is returned (and also raised as a fatal invariant) when
// Sweep is invoked before a releaser callback has been registered on the
// facade via RegisterReleaser.
var MissingReleaser = errors.New("sweep invoked without a registered expired-entry releaser")
