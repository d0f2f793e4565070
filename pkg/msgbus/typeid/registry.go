package typeid

import (
	"reflect"
	"sort"
	"sync"
)

// ID is a dense, zero-based message type identifier.
type ID int32

// Unassigned is reported for types that never received an id.
const Unassigned ID = -1

// Registry assigns ids to message types. It uses sync.RWMutex because
// lookups vastly outnumber assignments.
type Registry struct {
	mu    sync.RWMutex
	ids   map[reflect.Type]ID
	types []reflect.Type
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		ids: make(map[reflect.Type]ID),
	}
}

// Default is the process-wide registry used by buses that are not given one.
var Default = New()

// Assign gives ids to every type not yet registered, in lexicographic order of
// their qualified names, which makes the resulting keyspace deterministic for a
// fixed set of types. Already registered types keep their ids.
func (r *Registry) Assign(types ...reflect.Type) {
	pending := make([]reflect.Type, 0, len(types))
	seen := make(map[reflect.Type]struct{}, len(types))
	for _, t := range types {
		if t == nil {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		pending = append(pending, t)
	}
	sort.Slice(pending, func(i, j int) bool {
		return Name(pending[i]) < Name(pending[j])
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range pending {
		if _, ok := r.ids[t]; ok {
			continue
		}
		r.ids[t] = ID(len(r.types))
		r.types = append(r.types, t)
	}
}

// ID returns the id for t, assigning the next free id on first use.
func (r *Registry) ID(t reflect.Type) ID {
	// Fast path: already assigned
	r.mu.RLock()
	id, ok := r.ids[t]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if id, ok := r.ids[t]; ok {
		return id
	}
	id = ID(len(r.types))
	r.ids[t] = id
	r.types = append(r.types, t)
	return id
}

// Lookup returns the id for t without assigning one.
func (r *Registry) Lookup(t reflect.Type) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[t]
	if !ok {
		return Unassigned, false
	}
	return id, true
}

// Type returns the type registered under id.
func (r *Registry) Type(id ID) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || int(id) >= len(r.types) {
		return nil, false
	}
	return r.types[id], true
}

// Len returns the number of assigned ids.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Types returns every registered type indexed by id.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, len(r.types))
	copy(out, r.types)
	return out
}

// Of returns the id for T in r, assigning one on first use.
func Of[T any](r *Registry) ID {
	return r.ID(reflect.TypeFor[T]())
}

// LookupOf returns the id for T in r without assigning one.
func LookupOf[T any](r *Registry) (ID, bool) {
	return r.Lookup(reflect.TypeFor[T]())
}

// Name returns the qualified name used for ordering: import path and type name
// for named types, the reflect string otherwise.
func Name(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
