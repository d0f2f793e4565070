package msgbus_test

import (
	"testing"

	"github.com/randalmurphal/msgbus/pkg/msgbus"
	"github.com/randalmurphal/msgbus/pkg/msgbus/typeid"
)

// Test message types used across tests

// Foo is the message most tests emit.
type Foo struct {
	V int
}

// Bar is a second type for cross-type checks.
type Bar struct {
	Name string
}

// newBus creates a quiet bus with its own type registry.
func newBus(t *testing.T, opts ...msgbus.BusOption) *msgbus.Bus {
	t.Helper()
	base := []msgbus.BusOption{
		msgbus.WithTypeRegistry(typeid.New()),
		msgbus.WithLogger(nil),
	}
	return msgbus.NewBus(append(base, opts...)...)
}

// newHandler creates a handler bound to b.
func newHandler(b *msgbus.Bus) *msgbus.MessageHandler {
	h := msgbus.NewMessageHandler(msgbus.NewInstanceID())
	h.SetDefaultBus(b)
	return h
}

// trace records callback names in invocation order.
type trace struct {
	calls []string
}

func (tr *trace) foo(name string) func(*Foo) {
	return func(*Foo) { tr.calls = append(tr.calls, name) }
}

func (tr *trace) fooFrom(name string) func(msgbus.InstanceID, *Foo) {
	return func(msgbus.InstanceID, *Foo) { tr.calls = append(tr.calls, name) }
}

func (tr *trace) all(name string) func(msgbus.Envelope) {
	return func(msgbus.Envelope) { tr.calls = append(tr.calls, name) }
}

// mustSubscribe fails the test on a registration error:
//
//	release := mustSubscribe(t)(msgbus.SubscribeUntargeted(h, fn))
func mustSubscribe(t *testing.T) func(release func(), err error) func() {
	t.Helper()
	return func(release func(), err error) func() {
		t.Helper()
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		return release
	}
}

// mustRegister is mustSubscribe for token registrations.
func mustRegister(t *testing.T) func(h msgbus.Handle, err error) msgbus.Handle {
	t.Helper()
	return func(h msgbus.Handle, err error) msgbus.Handle {
		t.Helper()
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		return h
	}
}
