// Package snapshot provides the emission-gated callback storage used by msgbus.
//
// A Cache holds reference-counted entries in insertion order and hands out a
// materialized, ordered slice of values for one emission. A Buckets value groups
// caches by integer priority and hands out the caches in ascending priority order.
//
// # Emission Stability
//
// Ordered(e) returns the same slice for every call made while emission e is being
// served, unless the backing entries changed. Rebuilding always allocates a new
// slice, so a caller still ranging over an earlier result is never disturbed:
//
//	for _, fn := range cache.Ordered(e) {
//	    fn() // fn may Add or release entries; this loop is unaffected
//	}
//
// When a Clock is supplied, the first mutation made while an emission is in
// flight pins the pre-mutation contents for that emission. Buckets that have
// not been reached yet in the current pass then still observe the state the
// pass started with, and the mutation becomes visible from the next emission.
//
// # Reference Counting
//
// Adding a key that is already present increments its count instead of adding a
// second entry. Every Add returns its own release function; the entry is removed
// once every release has run. Release functions are idempotent.
//
// # Removal Policy
//
// Buckets supports two policies for a priority whose cache became empty:
// DeleteEmpty drops the priority key, KeepEmpty keeps the empty cache addressable
// so a later registration at that priority reuses it.
//
// None of the types are safe for concurrent use. They are driven from the single
// thread that owns the bus.
package snapshot
