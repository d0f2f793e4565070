package msgbus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/msgbus/pkg/msgbus"
)

func newToken(t *testing.T, bus *msgbus.Bus) (*msgbus.Token, *msgbus.MessageHandler) {
	t.Helper()
	h := newHandler(bus)
	tok, err := msgbus.NewToken(h)
	require.NoError(t, err)
	return tok, h
}

func TestToken_StagedUntilEnable(t *testing.T) {
	bus := newBus(t)
	tok, h := newToken(t, bus)

	calls := 0
	mustRegister(t)(msgbus.RegisterUntargeted(tok, func(*Foo) { calls++ }))
	assert.Equal(t, 1, tok.Len())
	assert.False(t, tok.Enabled())
	assert.Equal(t, 0, msgbus.HandlerCount[Foo](h, bus, msgbus.Untargeted, false, msgbus.None))

	msgbus.EmitUntargeted(bus, &Foo{})
	assert.Equal(t, 0, calls)

	tok.Enable()
	assert.True(t, tok.Enabled())
	msgbus.EmitUntargeted(bus, &Foo{})
	assert.Equal(t, 1, calls)
}

func TestToken_EnableIdempotent(t *testing.T) {
	bus := newBus(t)
	tok, h := newToken(t, bus)

	calls := 0
	mustRegister(t)(msgbus.RegisterTargeted(tok, h.Owner(), func(*Foo) { calls++ }))

	tok.Enable()
	tok.Enable()
	msgbus.EmitTargeted(bus, h.Owner(), &Foo{})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, msgbus.SubscriberCount[Foo](bus, msgbus.Targeted, false, h.Owner()))

	tok.Disable()
	tok.Disable()
	assert.Equal(t, 0, msgbus.SubscriberCount[Foo](bus, msgbus.Targeted, false, h.Owner()))
}

func TestToken_DisableEnableRestores(t *testing.T) {
	bus := newBus(t)
	tok, _ := newToken(t, bus)
	tr := &trace{}

	fn := tr.foo("a")
	mustRegister(t)(msgbus.RegisterUntargeted(tok, fn))
	mustRegister(t)(msgbus.RegisterUntargeted(tok, fn))
	mustRegister(t)(msgbus.RegisterUntargeted(tok, tr.foo("post"), msgbus.AsPostProcessor()))
	mustRegister(t)(msgbus.RegisterUntargeted(tok, tr.foo("b"), msgbus.WithPriority(-1)))

	tok.Enable()
	msgbus.EmitUntargeted(bus, &Foo{})
	before := append([]string(nil), tr.calls...)

	tok.Disable()
	tr.calls = nil
	msgbus.EmitUntargeted(bus, &Foo{})
	assert.Empty(t, tr.calls)

	tok.Enable()
	msgbus.EmitUntargeted(bus, &Foo{})
	assert.Equal(t, before, tr.calls)
	assert.Equal(t, []string{"b", "a", "post"}, tr.calls)
}

func TestToken_RegisterWhileEnabledWiresImmediately(t *testing.T) {
	bus := newBus(t)
	tok, _ := newToken(t, bus)
	tok.Enable()

	calls := 0
	mustRegister(t)(msgbus.RegisterBroadcast(tok, 3, func(*Foo) { calls++ }))
	msgbus.EmitBroadcast(bus, 3, &Foo{})
	assert.Equal(t, 1, calls)
}

func TestToken_RemoveRegistration(t *testing.T) {
	bus := newBus(t)
	tok, _ := newToken(t, bus)

	a, b := 0, 0
	ha := mustRegister(t)(msgbus.RegisterUntargeted(tok, func(*Foo) { a++ }))
	mustRegister(t)(msgbus.RegisterUntargeted(tok, func(*Foo) { b++ }))
	tok.Enable()

	assert.True(t, tok.RemoveRegistration(ha))
	assert.False(t, tok.RemoveRegistration(ha))
	assert.False(t, tok.RemoveRegistration(msgbus.Handle(0)))
	assert.Equal(t, 1, tok.Len())

	msgbus.EmitUntargeted(bus, &Foo{})
	tok.Disable()
	tok.Enable()
	msgbus.EmitUntargeted(bus, &Foo{})
	assert.Equal(t, 0, a, "removed registrations do not come back on Enable")
	assert.Equal(t, 2, b)
}

func TestToken_RemoveNeverEnabled(t *testing.T) {
	bus := newBus(t)
	tok, _ := newToken(t, bus)
	h := mustRegister(t)(msgbus.RegisterUntargeted(tok, func(*Foo) {}))

	assert.True(t, tok.RemoveRegistration(h))
	assert.Equal(t, 0, tok.Len())
}

func TestToken_RemoveSelfDuringCallback(t *testing.T) {
	bus := newBus(t)
	tok, h := newToken(t, bus)
	target := h.Owner()

	calls := 0
	var handleA msgbus.Handle
	handleA = mustRegister(t)(msgbus.RegisterTargeted(tok, target, func(*Foo) {
		calls++
		tok.RemoveRegistration(handleA)
	}))
	tok.Enable()

	msgbus.EmitTargeted(bus, target, &Foo{})
	assert.Equal(t, 1, calls)

	msgbus.EmitTargeted(bus, target, &Foo{})
	msgbus.EmitTargeted(bus, target, &Foo{})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, tok.Len())
}

func TestToken_UnregisterAll(t *testing.T) {
	bus := newBus(t)
	tok, _ := newToken(t, bus)

	calls := 0
	mustRegister(t)(msgbus.RegisterUntargeted(tok, func(*Foo) { calls++ }))
	mustRegister(t)(msgbus.RegisterTargetedWithoutTargeting(tok, func(msgbus.InstanceID, *Foo) { calls++ }))
	mustRegister(t)(msgbus.RegisterUntargetedInterceptor(tok, func(*Foo) bool { return true }))
	tok.Enable()

	tok.UnregisterAll()
	assert.Equal(t, 0, tok.Len())
	assert.False(t, tok.Enabled())
	assert.Equal(t, 0, msgbus.InterceptorCount[Foo](bus, msgbus.KindUntargeted))

	msgbus.EmitUntargeted(bus, &Foo{})
	msgbus.EmitTargeted(bus, 1, &Foo{})
	tok.Enable()
	msgbus.EmitUntargeted(bus, &Foo{})
	assert.Equal(t, 0, calls)

	mustRegister(t)(msgbus.RegisterUntargeted(tok, func(*Foo) { calls++ }))
	msgbus.EmitUntargeted(bus, &Foo{})
	assert.Equal(t, 1, calls, "token stays usable")
}

func TestToken_RetargetActive(t *testing.T) {
	first := newBus(t)
	second := newBus(t)
	tok, _ := newToken(t, first)

	calls := 0
	mustRegister(t)(msgbus.RegisterUntargeted(tok, func(*Foo) { calls++ }))
	tok.Enable()

	tok.RetargetMessageBus(second, msgbus.RebindActive)
	assert.Same(t, second, tok.Bus())

	msgbus.EmitUntargeted(first, &Foo{})
	assert.Equal(t, 0, calls)
	msgbus.EmitUntargeted(second, &Foo{})
	assert.Equal(t, 1, calls)
}

func TestToken_RetargetInactive(t *testing.T) {
	first := newBus(t)
	second := newBus(t)
	tok, _ := newToken(t, first)

	calls := 0
	mustRegister(t)(msgbus.RegisterUntargeted(tok, func(*Foo) { calls++ }))
	tok.Enable()

	tok.RetargetMessageBus(second, msgbus.RebindInactive)
	msgbus.EmitUntargeted(first, &Foo{})
	msgbus.EmitUntargeted(second, &Foo{})
	assert.Equal(t, 1, calls, "live registrations stay on the old bus")

	tok.Disable()
	tok.Enable()
	msgbus.EmitUntargeted(first, &Foo{})
	assert.Equal(t, 1, calls)
	msgbus.EmitUntargeted(second, &Foo{})
	assert.Equal(t, 2, calls)
}

func TestToken_RetargetInactiveKeepsNewRegistrationsWithLiveSet(t *testing.T) {
	first := newBus(t)
	second := newBus(t)
	tok, _ := newToken(t, first)
	tok.Enable()

	tok.RetargetMessageBus(second, msgbus.RebindInactive)
	calls := 0
	mustRegister(t)(msgbus.RegisterUntargeted(tok, func(*Foo) { calls++ }))

	msgbus.EmitUntargeted(second, &Foo{})
	assert.Equal(t, 0, calls)
	msgbus.EmitUntargeted(first, &Foo{})
	assert.Equal(t, 1, calls, "registration joins the wired set on the old bus")

	tok.Disable()
	tok.Enable()
	msgbus.EmitUntargeted(first, &Foo{})
	msgbus.EmitUntargeted(second, &Foo{})
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, msgbus.SubscriberCount[Foo](first, msgbus.Untargeted, false, msgbus.None))
}

func TestToken_BusResolution(t *testing.T) {
	handlerBus := newBus(t)
	explicit := newBus(t)
	tok, _ := newToken(t, handlerBus)

	var got []string
	mustRegister(t)(msgbus.RegisterUntargeted(tok, func(*Foo) { got = append(got, "handler") }))
	mustRegister(t)(msgbus.RegisterUntargeted(tok, func(*Foo) { got = append(got, "explicit") }, msgbus.OnBus(explicit)))
	tok.Enable()

	msgbus.EmitUntargeted(handlerBus, &Foo{})
	msgbus.EmitUntargeted(explicit, &Foo{})
	assert.Equal(t, []string{"handler", "explicit"}, got)

	retarget := newBus(t)
	tok.RetargetMessageBus(retarget, msgbus.RebindActive)
	got = nil
	msgbus.EmitUntargeted(retarget, &Foo{})
	assert.Equal(t, []string{"handler", "explicit"}, got, "retarget wins over OnBus")
}

func TestToken_Registrations(t *testing.T) {
	bus := newBus(t)
	tok, _ := newToken(t, bus)

	h1 := mustRegister(t)(msgbus.RegisterTargetedValue(tok, 9, func(Foo) {}, msgbus.WithPriority(4)))
	h2 := mustRegister(t)(msgbus.RegisterBroadcastInterceptor(tok, func(*msgbus.InstanceID, *Foo) bool { return true }))
	h3 := mustRegister(t)(tok.RegisterGlobalAcceptAll(func(msgbus.Envelope) {}))
	assert.Less(t, h1, h2)
	assert.Less(t, h2, h3)

	infos := tok.Registrations()
	require.Len(t, infos, 3)

	assert.Equal(t, h1, infos[0].Handle)
	assert.Equal(t, msgbus.Targeted, infos[0].Mode)
	assert.Equal(t, msgbus.InstanceID(9), infos[0].Context)
	assert.Equal(t, 4, infos[0].Priority)
	assert.True(t, infos[0].ByValue)
	assert.Contains(t, infos[0].Type, "Foo")
	assert.False(t, infos[0].Wired)

	assert.True(t, infos[1].Interceptor)
	assert.Equal(t, msgbus.Broadcast, infos[1].Mode)
	assert.Equal(t, msgbus.GlobalAcceptAll, infos[2].Mode)
	assert.Equal(t, "*", infos[2].Type)

	tok.Enable()
	for _, info := range tok.Registrations() {
		assert.True(t, info.Wired)
	}
}

func TestToken_Interceptors(t *testing.T) {
	bus := newBus(t)
	tok, h := newToken(t, bus)

	calls := 0
	mustSubscribe(t)(msgbus.SubscribeTargeted(h, 1, func(*Foo) { calls++ }))
	mustRegister(t)(msgbus.RegisterTargetedInterceptor(tok, func(*msgbus.InstanceID, *Foo) bool { return false }))

	msgbus.EmitTargeted(bus, 1, &Foo{})
	assert.Equal(t, 1, calls)

	tok.Enable()
	assert.False(t, msgbus.EmitTargeted(bus, 1, &Foo{}))
	assert.Equal(t, 1, calls)

	tok.Disable()
	assert.True(t, msgbus.EmitTargeted(bus, 1, &Foo{}))
	assert.Equal(t, 2, calls)
}

func TestToken_Errors(t *testing.T) {
	_, err := msgbus.NewToken(nil)
	assert.ErrorIs(t, err, msgbus.ErrNilHandler)

	_, err = msgbus.RegisterUntargeted(nil, func(*Foo) {})
	assert.ErrorIs(t, err, msgbus.ErrNilToken)

	_, err = (*msgbus.Token)(nil).RegisterGlobalAcceptAll(func(msgbus.Envelope) {})
	assert.ErrorIs(t, err, msgbus.ErrNilToken)

	tok, _ := newToken(t, newBus(t))
	_, err = msgbus.RegisterBroadcastWithoutSource[Foo](tok, nil)
	assert.ErrorIs(t, err, msgbus.ErrNilCallback)
	assert.Equal(t, 0, tok.Len(), "rejected registrations are not staged")

	var regErr *msgbus.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, msgbus.BroadcastWithoutSource, regErr.Mode)
	assert.False(t, regErr.Interceptor)
}
