package msgbus

import (
	"sort"

	"github.com/randalmurphal/msgbus/pkg/msgbus/snapshot"
)

// callback is the single calling convention every registration shape is
// adapted to. ctx is the target or source for addressed modes and None for
// untargeted dispatch.
type callback[T any] func(ctx InstanceID, msg *T)

// typedHandler holds one subscriber's callbacks for one (bus, message type).
// Index 0 of the outer arrays holds main handlers, index 1 post-processors.
type typedHandler[T any] struct {
	flat  [2][modeCount]*snapshot.Buckets[funcKey, callback[T]]
	keyed [2][modeCount]map[InstanceID]*snapshot.Buckets[funcKey, callback[T]]
}

// add stores cb under key and returns the cache-level release.
func (t *typedHandler[T]) add(b *Bus, mode Mode, post bool, ctx InstanceID, priority int, key funcKey, cb callback[T]) func() {
	p := postIndex(post)
	policy := b.policies[p][mode]

	if !mode.addressed() {
		bk := t.flat[p][mode]
		if bk == nil {
			bk = snapshot.NewBuckets[funcKey, callback[T]](b, policy)
			t.flat[p][mode] = bk
		}
		return bk.Add(priority, key, cb)
	}

	m := t.keyed[p][mode]
	if m == nil {
		m = make(map[InstanceID]*snapshot.Buckets[funcKey, callback[T]])
		t.keyed[p][mode] = m
	}
	bk := m[ctx]
	if bk == nil {
		bk = snapshot.NewBuckets[funcKey, callback[T]](b, policy)
		m[ctx] = bk
	}
	return bk.Add(priority, key, cb)
}

func (t *typedHandler[T]) buckets(mode Mode, post bool, ctx InstanceID) *snapshot.Buckets[funcKey, callback[T]] {
	p := postIndex(post)
	if mode.addressed() {
		return t.keyed[p][mode][ctx]
	}
	return t.flat[p][mode]
}

// bucketAt finds the cache at priority in the list served to emission e.
// Looking it up through the served list keeps a priority dropped mid-pass
// visible to the pass that was already running.
func bucketAt[K comparable, V any](bk *snapshot.Buckets[K, V], e EmissionID, priority int) *snapshot.Cache[K, V] {
	if bk == nil {
		return nil
	}
	list := bk.Ordered(e)
	i := sort.Search(len(list), func(i int) bool { return list[i].Priority >= priority })
	if i < len(list) && list[i].Priority == priority {
		return list[i].Cache
	}
	return nil
}

// count returns the number of callbacks stored for (mode, post, ctx).
func (t *typedHandler[T]) count(mode Mode, post bool, ctx InstanceID) int {
	if bk := t.buckets(mode, post, ctx); bk != nil {
		return bk.Entries()
	}
	return 0
}
