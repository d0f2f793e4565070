// Package typeid assigns stable integer ids to message types.
//
// msgbus keys every table by a dense, zero-based ID instead of by runtime type
// identity. Ids are assigned either ahead of time with Assign, or lazily the
// first time a type is registered against a bus.
//
// # Startup Assignment
//
// Assign sorts the given types by qualified name before numbering them, so the
// same set of types always produces the same ids:
//
//	typeid.Default.Assign(
//	    reflect.TypeFor[game.Damage](),
//	    reflect.TypeFor[game.Heal](),
//	)
//
// # First Use
//
// Of assigns on first use and is what registration calls. LookupOf never
// assigns; emitting a type that has no id therefore finds no handlers instead
// of growing the keyspace:
//
//	id := typeid.Of[game.Damage](typeid.Default)
//	if id, ok := typeid.LookupOf[game.Heal](typeid.Default); ok {
//	    // some handler was ever registered for Heal
//	}
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use.
package typeid
