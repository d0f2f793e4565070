package snapshot

// EmissionID identifies one emission on a bus. Ids increase monotonically.
type EmissionID = uint64

// Clock reports which emissions are currently being dispatched.
type Clock interface {
	// InFlight returns the innermost in-flight emission.
	InFlight() (EmissionID, bool)
	// Active reports whether e is anywhere on the in-flight stack.
	Active(e EmissionID) bool
}

// pin is the list frozen for one in-flight emission.
type pin[T any] struct {
	emission EmissionID
	list     []T
}

// view is the materialized side of a versioned collection. It keeps at most
// one pin per in-flight emission, ordered by emission id.
type view[T any] struct {
	list   []T
	built  uint64
	served EmissionID
	pins   []pin[T]
}

// get returns the list to serve for emission e.
func (v *view[T]) get(e EmissionID, version uint64, build func() []T) []T {
	v.served = e
	for i := len(v.pins) - 1; i >= 0; i-- {
		if v.pins[i].emission == e {
			return v.pins[i].list
		}
	}
	return v.current(version, build)
}

func (v *view[T]) current(version uint64, build func() []T) []T {
	if v.built != version {
		v.list = build()
		v.built = version
	}
	return v.list
}

// freeze pins the current contents for the innermost in-flight emission, if
// any, and drops pins of emissions that have finished. It must run before
// every structural change.
func (v *view[T]) freeze(clock Clock, version uint64, build func() []T) {
	if clock == nil {
		return
	}
	live := v.pins[:0]
	for _, p := range v.pins {
		if clock.Active(p.emission) {
			live = append(live, p)
		}
	}
	clear(v.pins[len(live):])
	v.pins = live

	e, ok := clock.InFlight()
	if !ok {
		return
	}
	if n := len(v.pins); n > 0 && v.pins[n-1].emission == e {
		return
	}
	v.pins = append(v.pins, pin[T]{emission: e, list: v.current(version, build)})
}

type entry[K comparable, V any] struct {
	key   K
	value V
	count int
}

// Cache is a reference-counted, insertion-ordered set of values keyed by identity.
type Cache[K comparable, V any] struct {
	clock   Clock
	index   map[K]int
	entries []entry[K, V]
	version uint64
	view    view[V]
}

// NewCache creates an empty cache. clock may be nil, in which case no
// mid-emission pinning takes place.
func NewCache[K comparable, V any](clock Clock) *Cache[K, V] {
	return &Cache[K, V]{
		clock: clock,
		index: make(map[K]int),
	}
}

// Add retains key, storing value on first sight, and returns a release function.
// Re-adding a present key only increments its count; the stored value is kept.
func (c *Cache[K, V]) Add(key K, value V) func() {
	c.Retain(key, value)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		c.Release(key)
	}
}

// Retain increments the count for key, inserting value if key is new.
func (c *Cache[K, V]) Retain(key K, value V) {
	if i, ok := c.index[key]; ok {
		c.entries[i].count++
		return
	}
	c.view.freeze(c.clock, c.version, c.materialize)
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, entry[K, V]{key: key, value: value, count: 1})
	c.version++
}

// Release decrements the count for key and reports whether the entry was removed.
// Releasing an absent key is a no-op.
func (c *Cache[K, V]) Release(key K) bool {
	i, ok := c.index[key]
	if !ok {
		return false
	}
	if c.entries[i].count > 1 {
		c.entries[i].count--
		return false
	}

	c.view.freeze(c.clock, c.version, c.materialize)
	delete(c.index, key)
	copy(c.entries[i:], c.entries[i+1:])
	var zero entry[K, V]
	c.entries[len(c.entries)-1] = zero
	c.entries = c.entries[:len(c.entries)-1]
	for j := i; j < len(c.entries); j++ {
		c.index[c.entries[j].key] = j
	}
	c.version++
	return true
}

// Ordered returns the values in insertion order as seen by emission e.
// The returned slice must not be modified.
func (c *Cache[K, V]) Ordered(e EmissionID) []V {
	return c.view.get(e, c.version, c.materialize)
}

// Count returns the reference count for key, or 0 if absent.
func (c *Cache[K, V]) Count(key K) int {
	if i, ok := c.index[key]; ok {
		return c.entries[i].count
	}
	return 0
}

// Len returns the number of distinct keys.
func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

// Version returns the structural version, bumped on every insert and removal.
func (c *Cache[K, V]) Version() uint64 {
	return c.version
}

// LastServed returns the emission most recently passed to Ordered.
func (c *Cache[K, V]) LastServed() EmissionID {
	return c.view.served
}

// Pins returns the number of emissions holding a frozen list.
func (c *Cache[K, V]) Pins() int {
	return len(c.view.pins)
}

func (c *Cache[K, V]) materialize() []V {
	if len(c.entries) == 0 {
		return nil
	}
	list := make([]V, len(c.entries))
	for i := range c.entries {
		list[i] = c.entries[i].value
	}
	return list
}
