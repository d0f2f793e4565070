package msgbus

import (
	"github.com/randalmurphal/msgbus/pkg/msgbus/snapshot"
	"github.com/randalmurphal/msgbus/pkg/msgbus/typeid"
)

// interceptor gates one emission. ctx points at the target or source and may
// be rewritten; returning false cancels the emission.
type interceptor[T any] func(ctx *InstanceID, msg *T) bool

// interceptorChains holds the interceptors of one message type, per kind.
type interceptorChains[T any] struct {
	byKind [3]*snapshot.Buckets[funcKey, interceptor[T]]
}

// InterceptUntargeted registers fn to run before any handler of an untargeted
// T emission on b. Interceptors run in ascending priority, then registration
// order. An interceptor returning false stops the emission; changes made to
// the message by earlier interceptors are kept.
//
// A nil b resolves to the bus named by OnBus, then the process-wide default.
func InterceptUntargeted[T any](b *Bus, fn func(msg *T) bool, opts ...RegisterOption) (func(), error) {
	r, err := interceptorRegistration[T](KindUntargeted, fn == nil, keyOf(fn),
		func(_ *InstanceID, msg *T) bool { return fn(msg) }, opts)
	if err != nil {
		return nil, err
	}
	return r.intercept(b), nil
}

// InterceptTargeted registers fn for targeted T emissions. fn may rewrite the
// target through the pointer; handlers see the rewritten target.
func InterceptTargeted[T any](b *Bus, fn func(target *InstanceID, msg *T) bool, opts ...RegisterOption) (func(), error) {
	r, err := interceptorRegistration[T](KindTargeted, fn == nil, keyOf(fn), interceptor[T](fn), opts)
	if err != nil {
		return nil, err
	}
	return r.intercept(b), nil
}

// InterceptBroadcast registers fn for broadcast T emissions. fn may rewrite the
// source through the pointer.
func InterceptBroadcast[T any](b *Bus, fn func(source *InstanceID, msg *T) bool, opts ...RegisterOption) (func(), error) {
	r, err := interceptorRegistration[T](KindBroadcast, fn == nil, keyOf(fn), interceptor[T](fn), opts)
	if err != nil {
		return nil, err
	}
	return r.intercept(b), nil
}

func interceptorRegistration[T any](kind Kind, nilFn bool, key funcKey, fn interceptor[T], opts []RegisterOption) (registration, error) {
	mode, _, _ := kind.modes()
	if nilFn {
		return registration{}, &RegistrationError{Mode: mode, Interceptor: true, Type: typeName[T](), Err: ErrNilCallback}
	}
	cfg := newRegisterConfig(opts)
	return registration{
		info: RegistrationInfo{
			Type:        typeName[T](),
			Mode:        mode,
			Interceptor: true,
			Priority:    cfg.priority,
		},
		bus: cfg.bus,
		wire: func(_ *MessageHandler, b *Bus) func() {
			return bindInterceptor(b, kind, cfg.priority, key, fn)
		},
	}, nil
}

// intercept wires an interceptor registration against b, or the bus it names.
func (r registration) intercept(b *Bus) func() {
	if b == nil {
		b = resolveBus(r.bus)
	}
	return r.wire(nil, b)
}

func bindInterceptor[T any](b *Bus, kind Kind, priority int, key funcKey, fn interceptor[T]) func() {
	id := typeid.Of[T](b.types)
	s := b.ensureSinks(id)
	chains, _ := s.interceptors.(*interceptorChains[T])
	if chains == nil {
		chains = &interceptorChains[T]{}
		s.interceptors = chains
	}
	bk := chains.byKind[kind]
	if bk == nil {
		bk = snapshot.NewBuckets[funcKey, interceptor[T]](b, snapshot.DeleteEmpty)
		chains.byKind[kind] = bk
	}

	release := bk.Add(priority, key, fn)
	b.noteInterceptor(id, kind, priority, 1)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		release()
		b.noteInterceptor(id, kind, priority, -1)
	}
}

// runInterceptors reports whether the emission survived every interceptor.
func runInterceptors[T any](b *Bus, e EmissionID, sinks *typeSinks, kind Kind, ctx *InstanceID, msg *T) bool {
	if sinks == nil || sinks.interceptors == nil {
		return true
	}
	chains, _ := sinks.interceptors.(*interceptorChains[T])
	if chains == nil || chains.byKind[kind] == nil {
		return true
	}
	for _, bucket := range chains.byKind[kind].Ordered(e) {
		for _, fn := range bucket.Cache.Ordered(e) {
			if !fn(ctx, msg) {
				return false
			}
		}
	}
	return true
}

// InterceptorCount returns the number of distinct interceptors registered on b
// for T emissions of kind.
func InterceptorCount[T any](b *Bus, kind Kind) int {
	b = resolveBus(b)
	id, ok := typeid.LookupOf[T](b.types)
	if !ok {
		return 0
	}
	s := b.sinksFor(id)
	if s == nil {
		return 0
	}
	chains, _ := s.interceptors.(*interceptorChains[T])
	if chains == nil || int(kind) >= len(chains.byKind) || chains.byKind[kind] == nil {
		return 0
	}
	return chains.byKind[kind].Entries()
}
