package msgbus

import "sync/atomic"

var handleSeq atomic.Uint64

// RegistrationInfo describes one staged registration of a Token.
type RegistrationInfo struct {
	Handle Handle
	// Type is the qualified message type name, "*" for accept-all handlers.
	Type          string
	Mode          Mode
	Interceptor   bool
	Context       InstanceID
	Priority      int
	PostProcessor bool
	ByValue       bool
	// Wired is true while the registration is attached to a bus.
	Wired bool
}

// RebindMode controls how RetargetMessageBus treats live registrations.
type RebindMode uint8

const (
	// RebindActive moves every wired registration to the new bus right away.
	RebindActive RebindMode = iota

	// RebindInactive leaves wired registrations where they are; the next
	// Enable wires against the new bus. Registrations added while the token
	// stays enabled join the wired set on its current bus.
	RebindInactive
)

type stagedRegistration struct {
	handle  Handle
	reg     registration
	release func()
}

// Token stages registrations for one MessageHandler and wires or unwires them
// together. Register functions record a registration and return its Handle;
// nothing reaches a bus until Enable, except on an already enabled Token,
// where new registrations are wired immediately.
//
// A Token is used from the thread that drives its bus.
type Token struct {
	handler *MessageHandler
	bus     *Bus
	// active is the override the wired set was bound with.
	active  *Bus
	enabled bool
	staged  []*stagedRegistration
}

// NewToken creates a disabled token for h.
func NewToken(h *MessageHandler) (*Token, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	return &Token{handler: h}, nil
}

// Handler returns the handler the token registers for.
func (t *Token) Handler() *MessageHandler {
	return t.handler
}

// Enabled reports whether the staged registrations are wired.
func (t *Token) Enabled() bool {
	return t.enabled
}

// Len returns the number of staged registrations.
func (t *Token) Len() int {
	return len(t.staged)
}

// Bus returns the bus set by RetargetMessageBus, or nil.
func (t *Token) Bus() *Bus {
	return t.bus
}

// Enable wires every staged registration. Enabling an enabled token does nothing.
func (t *Token) Enable() {
	if t.enabled {
		return
	}
	t.enabled = true
	t.active = t.bus
	for _, s := range t.staged {
		t.wire(s)
	}
}

// Disable unwires every staged registration and keeps them staged, so a later
// Enable restores the same set. Disabling a disabled token does nothing.
func (t *Token) Disable() {
	if !t.enabled {
		return
	}
	t.enabled = false
	for _, s := range t.staged {
		t.unwire(s)
	}
}

// RemoveRegistration unwires and forgets one registration. It reports whether
// h was staged; removing an unknown or already removed handle does nothing.
func (t *Token) RemoveRegistration(h Handle) bool {
	for i, s := range t.staged {
		if s.handle != h {
			continue
		}
		t.unwire(s)
		t.staged = append(t.staged[:i], t.staged[i+1:]...)
		return true
	}
	return false
}

// UnregisterAll unwires and forgets every registration and disables the
// token. The token stays usable for new registrations.
func (t *Token) UnregisterAll() {
	staged := t.staged
	t.staged = nil
	t.enabled = false
	for _, s := range staged {
		t.unwire(s)
	}
}

// RetargetMessageBus makes b the bus for every registration of this token.
// With RebindActive, wired registrations move to b immediately; with
// RebindInactive only later Enable calls use b. A nil b clears the override.
func (t *Token) RetargetMessageBus(b *Bus, mode RebindMode) {
	t.bus = b
	if mode != RebindActive || !t.enabled {
		return
	}
	t.active = b
	for _, s := range t.staged {
		t.unwire(s)
	}
	for _, s := range t.staged {
		t.wire(s)
	}
}

// Registrations describes every staged registration in registration order.
func (t *Token) Registrations() []RegistrationInfo {
	out := make([]RegistrationInfo, len(t.staged))
	for i, s := range t.staged {
		info := s.reg.info
		info.Handle = s.handle
		info.Wired = s.release != nil
		out[i] = info
	}
	return out
}

// resolve picks the bus for s: the token override the wired set uses, then
// the bus named at registration, then the handler default, then the
// process-wide default.
func (t *Token) resolve(s *stagedRegistration) *Bus {
	if t.active != nil {
		return t.active
	}
	return t.handler.busFor(s.reg.bus)
}

func (t *Token) wire(s *stagedRegistration) {
	if s.release != nil {
		return
	}
	s.release = s.reg.wire(t.handler, t.resolve(s))
}

func (t *Token) unwire(s *stagedRegistration) {
	if s.release == nil {
		return
	}
	release := s.release
	s.release = nil
	release()
}

func (t *Token) stage(r registration, err error) (Handle, error) {
	if err != nil {
		return 0, err
	}
	s := &stagedRegistration{
		handle: Handle(handleSeq.Add(1)),
		reg:    r,
	}
	t.staged = append(t.staged, s)
	if t.enabled {
		t.wire(s)
	}
	return s.handle, nil
}

func tokenError(t *Token, mode Mode, interceptor bool, typ string) error {
	if t != nil {
		return nil
	}
	return &RegistrationError{Mode: mode, Interceptor: interceptor, Type: typ, Err: ErrNilToken}
}

// RegisterUntargeted stages an untargeted handler on t.
func RegisterUntargeted[T any](t *Token, fn func(msg *T), opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, Untargeted, false, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(handlerRegistration[T](Untargeted, None, false, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(msg) }, opts))
}

// RegisterUntargetedValue stages an untargeted by-value handler on t.
func RegisterUntargetedValue[T any](t *Token, fn func(msg T), opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, Untargeted, false, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(handlerRegistration[T](Untargeted, None, true, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(*msg) }, opts))
}

// RegisterTargeted stages a handler for T messages targeted at target.
func RegisterTargeted[T any](t *Token, target InstanceID, fn func(msg *T), opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, Targeted, false, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(handlerRegistration[T](Targeted, target, false, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(msg) }, opts))
}

// RegisterTargetedValue stages a by-value handler for T messages targeted at target.
func RegisterTargetedValue[T any](t *Token, target InstanceID, fn func(msg T), opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, Targeted, false, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(handlerRegistration[T](Targeted, target, true, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(*msg) }, opts))
}

// RegisterTargetedWithoutTargeting stages a handler for every targeted T message.
func RegisterTargetedWithoutTargeting[T any](t *Token, fn func(target InstanceID, msg *T), opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, TargetedWithoutTargeting, false, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(handlerRegistration[T](TargetedWithoutTargeting, None, false, fn == nil, keyOf(fn), callback[T](fn), opts))
}

// RegisterTargetedWithoutTargetingValue is the by-value RegisterTargetedWithoutTargeting.
func RegisterTargetedWithoutTargetingValue[T any](t *Token, fn func(target InstanceID, msg T), opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, TargetedWithoutTargeting, false, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(handlerRegistration[T](TargetedWithoutTargeting, None, true, fn == nil, keyOf(fn),
		func(target InstanceID, msg *T) { fn(target, *msg) }, opts))
}

// RegisterBroadcast stages a handler for T messages broadcast by source.
func RegisterBroadcast[T any](t *Token, source InstanceID, fn func(msg *T), opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, Broadcast, false, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(handlerRegistration[T](Broadcast, source, false, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(msg) }, opts))
}

// RegisterBroadcastValue stages a by-value handler for T messages broadcast by source.
func RegisterBroadcastValue[T any](t *Token, source InstanceID, fn func(msg T), opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, Broadcast, false, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(handlerRegistration[T](Broadcast, source, true, fn == nil, keyOf(fn),
		func(_ InstanceID, msg *T) { fn(*msg) }, opts))
}

// RegisterBroadcastWithoutSource stages a handler for every broadcast T message.
func RegisterBroadcastWithoutSource[T any](t *Token, fn func(source InstanceID, msg *T), opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, BroadcastWithoutSource, false, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(handlerRegistration[T](BroadcastWithoutSource, None, false, fn == nil, keyOf(fn), callback[T](fn), opts))
}

// RegisterBroadcastWithoutSourceValue is the by-value RegisterBroadcastWithoutSource.
func RegisterBroadcastWithoutSourceValue[T any](t *Token, fn func(source InstanceID, msg T), opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, BroadcastWithoutSource, false, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(handlerRegistration[T](BroadcastWithoutSource, None, true, fn == nil, keyOf(fn),
		func(source InstanceID, msg *T) { fn(source, *msg) }, opts))
}

// RegisterGlobalAcceptAll stages an accept-all handler on t.
func (t *Token) RegisterGlobalAcceptAll(fn func(env Envelope), opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, GlobalAcceptAll, false, "*"); err != nil {
		return 0, err
	}
	return t.stage(globalRegistration(fn == nil, keyOf(fn), fn, opts))
}

// RegisterUntargetedInterceptor stages an interceptor for untargeted T emissions.
func RegisterUntargetedInterceptor[T any](t *Token, fn func(msg *T) bool, opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, Untargeted, true, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(interceptorRegistration[T](KindUntargeted, fn == nil, keyOf(fn),
		func(_ *InstanceID, msg *T) bool { return fn(msg) }, opts))
}

// RegisterTargetedInterceptor stages an interceptor for targeted T emissions.
func RegisterTargetedInterceptor[T any](t *Token, fn func(target *InstanceID, msg *T) bool, opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, Targeted, true, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(interceptorRegistration[T](KindTargeted, fn == nil, keyOf(fn), interceptor[T](fn), opts))
}

// RegisterBroadcastInterceptor stages an interceptor for broadcast T emissions.
func RegisterBroadcastInterceptor[T any](t *Token, fn func(source *InstanceID, msg *T) bool, opts ...RegisterOption) (Handle, error) {
	if err := tokenError(t, Broadcast, true, typeName[T]()); err != nil {
		return 0, err
	}
	return t.stage(interceptorRegistration[T](KindBroadcast, fn == nil, keyOf(fn), interceptor[T](fn), opts))
}
