package snapshot

import "sort"

// RemovalPolicy decides what happens to a priority whose cache became empty.
type RemovalPolicy uint8

const (
	// DeleteEmpty removes the priority key as soon as its cache is empty.
	DeleteEmpty RemovalPolicy = iota

	// KeepEmpty keeps the empty cache under its priority key.
	KeepEmpty
)

// String returns the policy name.
func (p RemovalPolicy) String() string {
	switch p {
	case DeleteEmpty:
		return "delete_empty"
	case KeepEmpty:
		return "keep_empty"
	default:
		return "unknown"
	}
}

// ParseRemovalPolicy converts a policy name back to a RemovalPolicy.
func ParseRemovalPolicy(s string) (RemovalPolicy, bool) {
	switch s {
	case "delete_empty", "delete":
		return DeleteEmpty, true
	case "keep_empty", "keep":
		return KeepEmpty, true
	default:
		return DeleteEmpty, false
	}
}

// Bucket is one priority level and its cache.
type Bucket[K comparable, V any] struct {
	Priority int
	Cache    *Cache[K, V]
}

// Buckets maps integer priorities to caches and serves them in ascending order.
type Buckets[K comparable, V any] struct {
	clock      Clock
	policy     RemovalPolicy
	byPriority map[int]*Cache[K, V]
	sorted     []int
	version    uint64
	view       view[Bucket[K, V]]
}

// NewBuckets creates an empty priority map.
func NewBuckets[K comparable, V any](clock Clock, policy RemovalPolicy) *Buckets[K, V] {
	return &Buckets[K, V]{
		clock:      clock,
		policy:     policy,
		byPriority: make(map[int]*Cache[K, V]),
	}
}

// Add retains key at priority and returns an idempotent release function.
func (b *Buckets[K, V]) Add(priority int, key K, value V) func() {
	c, ok := b.byPriority[priority]
	if !ok {
		b.view.freeze(b.clock, b.version, b.materialize)
		c = NewCache[K, V](b.clock)
		b.byPriority[priority] = c
		i := sort.SearchInts(b.sorted, priority)
		b.sorted = append(b.sorted, 0)
		copy(b.sorted[i+1:], b.sorted[i:])
		b.sorted[i] = priority
		b.version++
	}
	c.Retain(key, value)

	released := false
	return func() {
		if released {
			return
		}
		released = true
		if c.Release(key) && c.Len() == 0 && b.policy == DeleteEmpty {
			b.drop(priority, c)
		}
	}
}

func (b *Buckets[K, V]) drop(priority int, c *Cache[K, V]) {
	if b.byPriority[priority] != c {
		return
	}
	b.view.freeze(b.clock, b.version, b.materialize)
	delete(b.byPriority, priority)
	i := sort.SearchInts(b.sorted, priority)
	b.sorted = append(b.sorted[:i], b.sorted[i+1:]...)
	b.version++
}

// At returns the cache registered at priority, or nil.
func (b *Buckets[K, V]) At(priority int) *Cache[K, V] {
	return b.byPriority[priority]
}

// Ordered returns the buckets in ascending priority as seen by emission e.
// The returned slice must not be modified.
func (b *Buckets[K, V]) Ordered(e EmissionID) []Bucket[K, V] {
	return b.view.get(e, b.version, b.materialize)
}

// Priorities returns the live priority keys in ascending order.
func (b *Buckets[K, V]) Priorities() []int {
	out := make([]int, len(b.sorted))
	copy(out, b.sorted)
	return out
}

// Len returns the number of priority keys, including empty kept ones.
func (b *Buckets[K, V]) Len() int {
	return len(b.sorted)
}

// Entries returns the number of distinct keys across all priorities.
func (b *Buckets[K, V]) Entries() int {
	n := 0
	for _, c := range b.byPriority {
		n += c.Len()
	}
	return n
}

// Policy returns the removal policy.
func (b *Buckets[K, V]) Policy() RemovalPolicy {
	return b.policy
}

func (b *Buckets[K, V]) materialize() []Bucket[K, V] {
	if len(b.sorted) == 0 {
		return nil
	}
	list := make([]Bucket[K, V], len(b.sorted))
	for i, p := range b.sorted {
		list[i] = Bucket[K, V]{Priority: p, Cache: b.byPriority[p]}
	}
	return list
}
