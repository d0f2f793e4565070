package msgbus

import (
	"log/slog"
	"sync/atomic"

	"github.com/randalmurphal/msgbus/pkg/msgbus/observability"
)

// DefaultBusName is the name of the lazily created process-wide bus.
const DefaultBusName = "default"

var defaultBus atomic.Pointer[Bus]

// Default returns the process-wide bus, creating it on first use.
func Default() *Bus {
	if b := defaultBus.Load(); b != nil {
		return b
	}
	b := NewBus(WithName(DefaultBusName))
	if defaultBus.CompareAndSwap(nil, b) {
		return b
	}
	return defaultBus.Load()
}

// SetDefault installs b as the process-wide bus and returns the previous one,
// which is nil if none was created yet. A nil b makes the next Default call
// create a fresh bus.
func SetDefault(b *Bus) *Bus {
	prev := defaultBus.Swap(b)
	observability.LogDefaultBusChange(slog.Default(), busName(prev), busName(b))
	return prev
}

// ResetDefault discards the process-wide bus.
func ResetDefault() {
	SetDefault(nil)
}

func resolveBus(b *Bus) *Bus {
	if b != nil {
		return b
	}
	return Default()
}

func busName(b *Bus) string {
	if b == nil {
		return ""
	}
	return b.name
}

// Override is a scoped replacement of the process-wide bus.
//
// Example:
//
//	o := msgbus.OverrideDefault(msgbus.NewBus())
//	defer o.Close()
type Override struct {
	bus    *Bus
	prev   *Bus
	closed bool
}

// OverrideDefault installs b as the process-wide bus until Close. Nested
// overrides must be closed in reverse order.
func OverrideDefault(b *Bus) *Override {
	return &Override{bus: b, prev: SetDefault(b)}
}

// Bus returns the bus installed by the override.
func (o *Override) Bus() *Bus {
	return o.bus
}

// Close restores the bus that was the default when the override began.
// Calling Close more than once does nothing.
func (o *Override) Close() {
	if o.closed {
		return
	}
	o.closed = true
	SetDefault(o.prev)
}
