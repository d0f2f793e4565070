package msgbus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/msgbus/pkg/msgbus"
)

func TestMessageHandler_Defaults(t *testing.T) {
	owner := msgbus.NewInstanceID()
	h := msgbus.NewMessageHandler(owner)

	assert.Equal(t, owner, h.Owner())
	assert.True(t, h.Active())
	assert.Nil(t, h.DefaultBus())
}

func TestNewInstanceID_Unique(t *testing.T) {
	a := msgbus.NewInstanceID()
	b := msgbus.NewInstanceID()
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, msgbus.None, a)
	assert.Less(t, a, b)
}

func TestMessageHandler_Inactive(t *testing.T) {
	bus := newBus(t)
	h := newHandler(bus)

	calls := 0
	mustSubscribe(t)(msgbus.SubscribeUntargeted(h, func(*Foo) { calls++ }))
	mustSubscribe(t)(msgbus.SubscribeGlobalAcceptAll(h, func(msgbus.Envelope) { calls++ }))

	h.SetActive(false)
	msgbus.EmitUntargeted(bus, &Foo{})
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, msgbus.HandlerCount[Foo](h, bus, msgbus.Untargeted, false, msgbus.None), "registrations are kept")

	h.SetActive(true)
	msgbus.EmitUntargeted(bus, &Foo{})
	assert.Equal(t, 2, calls)
}

func TestMessageHandler_DeactivateMidPass(t *testing.T) {
	bus := newBus(t)
	h := newHandler(bus)

	var got []string
	mustSubscribe(t)(msgbus.SubscribeUntargeted(h, func(*Foo) {
		got = append(got, "first")
		h.SetActive(false)
	}, msgbus.WithPriority(0)))
	mustSubscribe(t)(msgbus.SubscribeUntargeted(h, func(*Foo) { got = append(got, "second") }, msgbus.WithPriority(1)))

	msgbus.EmitUntargeted(bus, &Foo{})
	assert.Equal(t, []string{"first"}, got)
}

func TestMessageHandler_BusResolution(t *testing.T) {
	fallback := newBus(t)
	o := msgbus.OverrideDefault(fallback)
	t.Cleanup(o.Close)

	own := newBus(t)
	explicit := newBus(t)
	h := msgbus.NewMessageHandler(msgbus.NewInstanceID())

	var got []string
	mustSubscribe(t)(msgbus.SubscribeUntargeted(h, func(*Foo) { got = append(got, "default") }))
	h.SetDefaultBus(own)
	assert.Same(t, own, h.DefaultBus())
	mustSubscribe(t)(msgbus.SubscribeUntargeted(h, func(*Foo) { got = append(got, "own") }))
	mustSubscribe(t)(msgbus.SubscribeUntargeted(h, func(*Foo) { got = append(got, "explicit") }, msgbus.OnBus(explicit)))

	msgbus.EmitUntargeted(fallback, &Foo{})
	msgbus.EmitUntargeted(own, &Foo{})
	msgbus.EmitUntargeted(explicit, &Foo{})
	assert.Equal(t, []string{"default", "own", "explicit"}, got)
}

func TestMessageHandler_SameTypeOnTwoBuses(t *testing.T) {
	a := newBus(t)
	b := newBus(t)
	h := newHandler(a)

	calls := map[string]int{}
	mustSubscribe(t)(msgbus.SubscribeUntargeted(h, func(*Foo) { calls["a"]++ }))
	mustSubscribe(t)(msgbus.SubscribeUntargeted(h, func(*Foo) { calls["b"]++ }, msgbus.OnBus(b)))

	msgbus.EmitUntargeted(a, &Foo{})
	msgbus.EmitUntargeted(b, &Foo{})
	msgbus.EmitUntargeted(b, &Foo{})
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, calls)
}

func TestMessageHandler_Counts(t *testing.T) {
	bus := newBus(t)
	h := newHandler(bus)

	mustSubscribe(t)(msgbus.SubscribeTargeted(h, 1, func(*Foo) {}))
	mustSubscribe(t)(msgbus.SubscribeTargeted(h, 1, func(*Foo) {}, msgbus.WithPriority(3)))
	mustSubscribe(t)(msgbus.SubscribeTargeted(h, 2, func(*Foo) {}))
	mustSubscribe(t)(msgbus.SubscribeTargetedValue(h, 1, func(Foo) {}, msgbus.AsPostProcessor()))
	mustSubscribe(t)(msgbus.SubscribeGlobalAcceptAll(h, func(msgbus.Envelope) {}))

	assert.Equal(t, 2, msgbus.HandlerCount[Foo](h, bus, msgbus.Targeted, false, 1))
	assert.Equal(t, 1, msgbus.HandlerCount[Foo](h, bus, msgbus.Targeted, false, 2))
	assert.Equal(t, 1, msgbus.HandlerCount[Foo](h, bus, msgbus.Targeted, true, 1))
	assert.Equal(t, 0, msgbus.HandlerCount[Foo](h, bus, msgbus.Untargeted, false, msgbus.None))
	assert.Equal(t, 0, msgbus.HandlerCount[Bar](h, bus, msgbus.Targeted, false, 1))
	assert.Equal(t, 1, msgbus.HandlerCount[Foo](h, bus, msgbus.GlobalAcceptAll, false, msgbus.None))

	assert.Equal(t, 2, msgbus.BucketCount[Foo](bus, msgbus.Targeted, false, 1))
	assert.Equal(t, 2, msgbus.SubscriberCount[Foo](bus, msgbus.Targeted, false, 1), "one subscriber is counted once per priority")
}

func TestSubscribe_Errors(t *testing.T) {
	bus := newBus(t)
	h := newHandler(bus)

	_, err := msgbus.SubscribeUntargeted[Foo](h, nil)
	assert.ErrorIs(t, err, msgbus.ErrNilCallback)

	_, err = msgbus.SubscribeGlobalAcceptAll(h, nil)
	assert.ErrorIs(t, err, msgbus.ErrNilCallback)

	_, err = msgbus.SubscribeTargeted(nil, 1, func(*Foo) {})
	require.ErrorIs(t, err, msgbus.ErrNilHandler)

	var regErr *msgbus.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, msgbus.Targeted, regErr.Mode)
	assert.Contains(t, regErr.Type, "Foo")
	assert.Contains(t, err.Error(), "register targeted handler")
}
