// Package history records completed emissions for later inspection.
//
// A Recorder is a msgbus.Diagnostics hook. Attach it to a bus and every
// finished emission, cancelled ones included, is appended to a Store:
//
//	store := history.NewMemoryStore(256)
//	bus := msgbus.NewBus(msgbus.WithDiagnostics(history.NewRecorder(store)))
//
//	msgbus.EmitUntargeted(bus, &Moved{X: 1})
//	records, _ := store.Recent(bus.Name(), 10)
//
// # Stores
//
// MemoryStore keeps a fixed number of records in a ring buffer and is the
// right choice for debugging sessions and tests. SQLiteStore persists records
// to a file (or ":memory:") using the pure Go modernc.org/sqlite driver in WAL
// mode, and adds Prune for bounding its size.
//
// Records are captured synchronously on the emitting goroutine. A failing
// store never affects dispatch; the error is logged and the record is lost.
package history
