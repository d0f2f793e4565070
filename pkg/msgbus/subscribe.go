package msgbus

import (
	"reflect"

	"github.com/randalmurphal/msgbus/pkg/msgbus/typeid"
)

// registration is a validated registration that has not been wired yet.
// wire attaches it to a bus and returns the release action.
type registration struct {
	info RegistrationInfo
	bus  *Bus
	wire func(h *MessageHandler, b *Bus) func()
}

func typeName[T any]() string {
	return typeid.Name(reflect.TypeFor[T]())
}

func handlerRegistration[T any](mode Mode, ctx InstanceID, byValue, nilFn bool, key funcKey, cb callback[T], opts []RegisterOption) (registration, error) {
	if nilFn {
		return registration{}, &RegistrationError{Mode: mode, Type: typeName[T](), Err: ErrNilCallback}
	}
	cfg := newRegisterConfig(opts)
	return registration{
		info: RegistrationInfo{
			Type:          typeName[T](),
			Mode:          mode,
			Context:       ctx,
			Priority:      cfg.priority,
			PostProcessor: cfg.post,
			ByValue:       byValue,
		},
		bus: cfg.bus,
		wire: func(h *MessageHandler, b *Bus) func() {
			return bind(h, b, mode, ctx, cfg, key, cb)
		},
	}, nil
}

func globalRegistration(nilFn bool, key funcKey, fn globalCallback, opts []RegisterOption) (registration, error) {
	if nilFn {
		return registration{}, &RegistrationError{Mode: GlobalAcceptAll, Type: "*", Err: ErrNilCallback}
	}
	cfg := newRegisterConfig(opts)
	return registration{
		info: RegistrationInfo{
			Type:     "*",
			Mode:     GlobalAcceptAll,
			Priority: cfg.priority,
		},
		bus: cfg.bus,
		wire: func(h *MessageHandler, b *Bus) func() {
			return bindGlobal(h, b, cfg.priority, key, fn)
		},
	}, nil
}

// subscribe wires r immediately against h.
func (r registration) subscribe(h *MessageHandler) (func(), error) {
	if h == nil {
		return nil, &RegistrationError{Mode: r.info.Mode, Interceptor: r.info.Interceptor, Type: r.info.Type, Err: ErrNilHandler}
	}
	return r.wire(h, h.busFor(r.bus)), nil
}

// bind stores cb in h's table and tells the bus to visit h for that slot. The
// two releases are composed into one idempotent action.
func bind[T any](h *MessageHandler, b *Bus, mode Mode, ctx InstanceID, cfg registerConfig, key funcKey, cb callback[T]) func() {
	id := typeid.Of[T](b.types)
	release := tableFor[T](h, b, id).add(b, mode, cfg.post, ctx, cfg.priority, key, cb)
	unsink := b.addSink(id, mode, cfg.post, ctx, cfg.priority, h)
	b.noteRegistration(id, mode, cfg.priority, 1)

	released := false
	return func() {
		if released {
			return
		}
		released = true
		release()
		unsink()
		b.noteRegistration(id, mode, cfg.priority, -1)
	}
}

func bindGlobal(h *MessageHandler, b *Bus, priority int, key funcKey, fn globalCallback) func() {
	release := h.globalsFor(b).Add(priority, key, fn)
	unsink := b.addSink(typeid.Unassigned, GlobalAcceptAll, false, None, priority, h)
	b.noteRegistration(typeid.Unassigned, GlobalAcceptAll, priority, 1)

	released := false
	return func() {
		if released {
			return
		}
		released = true
		release()
		unsink()
		b.noteRegistration(typeid.Unassigned, GlobalAcceptAll, priority, -1)
	}
}

// SubscribeUntargeted registers fn for untargeted T messages on the handler's
// bus and returns the release action. The message is passed by reference;
// changes are visible to later handlers of the same emission.
//
// Registering the same func value twice shares one entry: it runs once per
// emission and is removed when both releases have run.
func SubscribeUntargeted[T any](h *MessageHandler, fn func(msg *T), opts ...RegisterOption) (func(), error) {
	r, err := handlerRegistration[T](Untargeted, None, false, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(msg) }, opts)
	if err != nil {
		return nil, err
	}
	return r.subscribe(h)
}

// SubscribeUntargetedValue is SubscribeUntargeted for callbacks taking a copy.
func SubscribeUntargetedValue[T any](h *MessageHandler, fn func(msg T), opts ...RegisterOption) (func(), error) {
	r, err := handlerRegistration[T](Untargeted, None, true, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(*msg) }, opts)
	if err != nil {
		return nil, err
	}
	return r.subscribe(h)
}

// SubscribeTargeted registers fn for T messages targeted at target.
func SubscribeTargeted[T any](h *MessageHandler, target InstanceID, fn func(msg *T), opts ...RegisterOption) (func(), error) {
	r, err := handlerRegistration[T](Targeted, target, false, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(msg) }, opts)
	if err != nil {
		return nil, err
	}
	return r.subscribe(h)
}

// SubscribeTargetedValue is SubscribeTargeted for callbacks taking a copy.
func SubscribeTargetedValue[T any](h *MessageHandler, target InstanceID, fn func(msg T), opts ...RegisterOption) (func(), error) {
	r, err := handlerRegistration[T](Targeted, target, true, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(*msg) }, opts)
	if err != nil {
		return nil, err
	}
	return r.subscribe(h)
}

// SubscribeTargetedWithoutTargeting registers fn for every targeted T message
// regardless of its target, which fn receives.
func SubscribeTargetedWithoutTargeting[T any](h *MessageHandler, fn func(target InstanceID, msg *T), opts ...RegisterOption) (func(), error) {
	r, err := handlerRegistration[T](TargetedWithoutTargeting, None, false, fn == nil, keyOf(fn), callback[T](fn), opts)
	if err != nil {
		return nil, err
	}
	return r.subscribe(h)
}

// SubscribeTargetedWithoutTargetingValue is SubscribeTargetedWithoutTargeting
// for callbacks taking a copy.
func SubscribeTargetedWithoutTargetingValue[T any](h *MessageHandler, fn func(target InstanceID, msg T), opts ...RegisterOption) (func(), error) {
	r, err := handlerRegistration[T](TargetedWithoutTargeting, None, true, fn == nil, keyOf(fn),
		func(target InstanceID, msg *T) { fn(target, *msg) }, opts)
	if err != nil {
		return nil, err
	}
	return r.subscribe(h)
}

// SubscribeBroadcast registers fn for T messages broadcast by source.
func SubscribeBroadcast[T any](h *MessageHandler, source InstanceID, fn func(msg *T), opts ...RegisterOption) (func(), error) {
	r, err := handlerRegistration[T](Broadcast, source, false, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(msg) }, opts)
	if err != nil {
		return nil, err
	}
	return r.subscribe(h)
}

// SubscribeBroadcastValue is SubscribeBroadcast for callbacks taking a copy.
func SubscribeBroadcastValue[T any](h *MessageHandler, source InstanceID, fn func(msg T), opts ...RegisterOption) (func(), error) {
	r, err := handlerRegistration[T](Broadcast, source, true, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(*msg) }, opts)
	if err != nil {
		return nil, err
	}
	return r.subscribe(h)
}

// SubscribeBroadcastWithoutSource registers fn for every broadcast T message
// regardless of its source, which fn receives.
func SubscribeBroadcastWithoutSource[T any](h *MessageHandler, fn func(source InstanceID, msg *T), opts ...RegisterOption) (func(), error) {
	r, err := handlerRegistration[T](BroadcastWithoutSource, None, false, fn == nil, keyOf(fn), callback[T](fn), opts)
	if err != nil {
		return nil, err
	}
	return r.subscribe(h)
}

// SubscribeBroadcastWithoutSourceValue is SubscribeBroadcastWithoutSource for
// callbacks taking a copy.
func SubscribeBroadcastWithoutSourceValue[T any](h *MessageHandler, fn func(source InstanceID, msg T), opts ...RegisterOption) (func(), error) {
	r, err := handlerRegistration[T](BroadcastWithoutSource, None, true, fn == nil, keyOf(fn),
		func(source InstanceID, msg *T) { fn(source, *msg) }, opts)
	if err != nil {
		return nil, err
	}
	return r.subscribe(h)
}

// SubscribeGlobalAcceptAll registers fn for every message of every type on the
// handler's bus. Accept-all handlers run after the addressed and
// without-addressing main handlers and before any post-processor.
// AsPostProcessor is ignored.
func SubscribeGlobalAcceptAll(h *MessageHandler, fn func(env Envelope), opts ...RegisterOption) (func(), error) {
	r, err := globalRegistration(fn == nil, keyOf(fn), fn, opts)
	if err != nil {
		return nil, err
	}
	return r.subscribe(h)
}
