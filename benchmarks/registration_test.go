package benchmarks

import (
	"testing"

	"github.com/randalmurphal/msgbus/pkg/msgbus"
	"github.com/randalmurphal/msgbus/pkg/msgbus/history"
)

// BenchmarkSubscribeRelease measures one registration round trip.
func BenchmarkSubscribeRelease(b *testing.B) {
	bus := newBus()
	h := msgbus.NewMessageHandler(msgbus.NewInstanceID())
	h.SetDefaultBus(bus)
	fn := func(*Position) {}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		release, _ := msgbus.SubscribeUntargeted(h, fn)
		release()
	}
}

// BenchmarkEmit_AfterChurn emits after the handler set changed, forcing a
// snapshot rebuild on every iteration.
func BenchmarkEmit_AfterChurn(b *testing.B) {
	bus := newBus()
	subscribers(b, bus, 10)
	h := msgbus.NewMessageHandler(msgbus.NewInstanceID())
	h.SetDefaultBus(bus)
	fn := func(*Position) {}
	msg := &Position{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		release, _ := msgbus.SubscribeUntargeted(h, fn)
		msgbus.EmitUntargeted(bus, msg)
		release()
	}
}

// BenchmarkTokenToggle measures disabling and re-enabling a token.
func BenchmarkTokenToggle(b *testing.B) {
	bus := newBus()
	h := msgbus.NewMessageHandler(msgbus.NewInstanceID())
	h.SetDefaultBus(bus)
	tok, err := msgbus.NewToken(h)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 8; i++ {
		if _, err := msgbus.RegisterUntargeted(tok, func(*Position) {}, msgbus.WithPriority(i)); err != nil {
			b.Fatal(err)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tok.Enable()
		tok.Disable()
	}
}

// BenchmarkEmit_MemoryHistory measures emission with history capture.
func BenchmarkEmit_MemoryHistory(b *testing.B) {
	store := history.NewMemoryStore(history.DefaultCapacity)
	bus := msgbus.NewBus(
		msgbus.WithLogger(nil),
		msgbus.WithDiagnostics(history.NewRecorder(store)),
	)
	subscribers(b, bus, 1)
	msg := &Position{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msgbus.EmitUntargeted(bus, msg)
	}
}
