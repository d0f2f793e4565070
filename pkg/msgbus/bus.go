package msgbus

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/randalmurphal/msgbus/pkg/msgbus/observability"
	"github.com/randalmurphal/msgbus/pkg/msgbus/snapshot"
	"github.com/randalmurphal/msgbus/pkg/msgbus/typeid"
)

// typeSinks holds every bus-side subscription for one message type.
type typeSinks struct {
	flat         [2][modeCount]*snapshot.Buckets[*MessageHandler, *MessageHandler]
	keyed        [2][modeCount]map[InstanceID]*snapshot.Buckets[*MessageHandler, *MessageHandler]
	interceptors any // *interceptorChains[T]
}

// frame is one in-flight emission.
type frame struct {
	id         EmissionID
	dispatched int
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	// Emissions is the number of emissions started.
	Emissions uint64
	// Cancelled is the number of emissions vetoed by an interceptor.
	Cancelled uint64
	// Dispatched is the number of callbacks invoked by completed emissions.
	Dispatched uint64
}

// Bus is a routing domain for messages. A Bus is driven from one thread:
// emission, registration, and dispatch are synchronous calls on the caller's
// goroutine. Stats and the emission counter may be read from anywhere.
type Bus struct {
	name     string
	index    int
	types    *typeid.Registry
	logger   *slog.Logger
	diag     Diagnostics
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	policies [2][modeCount]snapshot.RemovalPolicy

	emissions  atomic.Uint64
	cancelled  atomic.Uint64
	dispatched atomic.Uint64
	frames     []frame

	sinks  []*typeSinks
	global *snapshot.Buckets[*MessageHandler, *MessageHandler]
}

var busSeq atomic.Int64

// NewBus creates a bus with the given options.
func NewBus(opts ...BusOption) *Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.name == "" {
		cfg.name = uuid.NewString()
	}

	b := &Bus{
		name:     cfg.name,
		index:    int(busSeq.Add(1) - 1),
		types:    cfg.types,
		diag:     cfg.diagnostics,
		metrics:  cfg.metrics,
		spans:    cfg.spans,
		policies: cfg.policies,
	}
	b.logger = observability.EnrichLogger(cfg.logger, b.name, b.index)
	return b
}

// Name returns the bus name.
func (b *Bus) Name() string {
	return b.name
}

// Index returns the small integer subscribers use to find their tables.
func (b *Bus) Index() int {
	return b.index
}

// Types returns the registry assigning message type ids on this bus.
func (b *Bus) Types() *typeid.Registry {
	return b.types
}

// EmissionID returns the id of the most recently started emission.
func (b *Bus) EmissionID() EmissionID {
	return b.emissions.Load()
}

// InFlight reports the innermost emission currently being dispatched.
// It implements snapshot.Clock.
func (b *Bus) InFlight() (EmissionID, bool) {
	if len(b.frames) == 0 {
		return 0, false
	}
	return b.frames[len(b.frames)-1].id, true
}

// Active reports whether emission e is still being dispatched, either as the
// innermost emission or as one that a nested emission interrupted.
// It implements snapshot.Clock.
func (b *Bus) Active(e EmissionID) bool {
	for i := len(b.frames) - 1; i >= 0; i-- {
		if b.frames[i].id == e {
			return true
		}
	}
	return false
}

// Stats returns the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Emissions:  b.emissions.Load(),
		Cancelled:  b.cancelled.Load(),
		Dispatched: b.dispatched.Load(),
	}
}

// TypeName returns the qualified name of a type id, or "" when unknown.
func (b *Bus) TypeName(id typeid.ID) string {
	t, ok := b.types.Type(id)
	if !ok {
		return ""
	}
	return typeid.Name(t)
}

// begin starts an emission and returns its id.
func (b *Bus) begin() EmissionID {
	id := b.emissions.Add(1)
	b.frames = append(b.frames, frame{id: id})
	return id
}

// end pops the innermost emission. It runs deferred so a panicking callback
// leaves the bus consistent.
func (b *Bus) end() {
	b.frames = b.frames[:len(b.frames)-1]
}

// countDispatch increments the dispatch count of the innermost emission.
func (b *Bus) countDispatch() int {
	f := &b.frames[len(b.frames)-1]
	f.dispatched++
	return f.dispatched
}

func (b *Bus) currentDispatched() int {
	return b.frames[len(b.frames)-1].dispatched
}

func (b *Bus) sinksFor(id typeid.ID) *typeSinks {
	if id < 0 || int(id) >= len(b.sinks) {
		return nil
	}
	return b.sinks[id]
}

func (b *Bus) ensureSinks(id typeid.ID) *typeSinks {
	for int(id) >= len(b.sinks) {
		b.sinks = append(b.sinks, nil)
	}
	s := b.sinks[id]
	if s == nil {
		s = &typeSinks{}
		b.sinks[id] = s
	}
	return s
}

// addSink records that h has a callback for (id, mode, post, ctx, priority) so
// emissions visit h at that priority. The returned release is idempotent.
func (b *Bus) addSink(id typeid.ID, mode Mode, post bool, ctx InstanceID, priority int, h *MessageHandler) func() {
	p := postIndex(post)
	policy := b.policies[p][mode]

	if mode == GlobalAcceptAll {
		if b.global == nil {
			b.global = snapshot.NewBuckets[*MessageHandler, *MessageHandler](b, policy)
		}
		return b.global.Add(priority, h, h)
	}

	s := b.ensureSinks(id)
	if !mode.addressed() {
		bk := s.flat[p][mode]
		if bk == nil {
			bk = snapshot.NewBuckets[*MessageHandler, *MessageHandler](b, policy)
			s.flat[p][mode] = bk
		}
		return bk.Add(priority, h, h)
	}

	m := s.keyed[p][mode]
	if m == nil {
		m = make(map[InstanceID]*snapshot.Buckets[*MessageHandler, *MessageHandler])
		s.keyed[p][mode] = m
	}
	bk := m[ctx]
	if bk == nil {
		bk = snapshot.NewBuckets[*MessageHandler, *MessageHandler](b, policy)
		m[ctx] = bk
	}
	release := bk.Add(priority, h, h)
	return func() {
		release()
		if policy != snapshot.DeleteEmpty || bk.Len() != 0 || m[ctx] != bk {
			return
		}
		// An in-flight pass may still look this key up; the next release or
		// registration after it reuses or prunes the entry.
		if _, busy := b.InFlight(); !busy {
			delete(m, ctx)
		}
	}
}

// observing reports whether emissions need timing and type names.
func (b *Bus) observing() bool {
	return b.diag != nil || b.metrics != nil || b.spans != nil
}

func (b *Bus) noteRegistration(id typeid.ID, mode Mode, priority int, delta int64) {
	if b.metrics != nil {
		b.metrics.RecordRegistration(context.Background(), b.name, mode.String(), delta)
	}
	if b.logger == nil || !b.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	if delta > 0 {
		observability.LogRegistration(b.logger, b.TypeName(id), mode.String(), priority)
	} else {
		observability.LogDeregistration(b.logger, b.TypeName(id), mode.String(), priority)
	}
}

func (b *Bus) noteInterceptor(id typeid.ID, kind Kind, priority int, delta int64) {
	mode := "interceptor_" + kind.String()
	if b.metrics != nil {
		b.metrics.RecordRegistration(context.Background(), b.name, mode, delta)
	}
	if b.logger == nil || !b.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	if delta > 0 {
		observability.LogRegistration(b.logger, b.TypeName(id), mode, priority)
	} else {
		observability.LogDeregistration(b.logger, b.TypeName(id), mode, priority)
	}
}

// SubscriberCount returns the number of subscriber entries b holds for message
// type T and mode. A subscriber with callbacks at two priorities counts twice.
// Addressed modes count entries for ctx only.
func SubscriberCount[T any](b *Bus, mode Mode, post bool, ctx InstanceID) int {
	b = resolveBus(b)
	if mode == GlobalAcceptAll {
		if b.global == nil {
			return 0
		}
		return b.global.Entries()
	}
	id, ok := typeid.LookupOf[T](b.types)
	if !ok || mode >= modeCount {
		return 0
	}
	s := b.sinksFor(id)
	if s == nil {
		return 0
	}
	p := postIndex(post)
	if mode.addressed() {
		if bk := s.keyed[p][mode][ctx]; bk != nil {
			return bk.Entries()
		}
		return 0
	}
	if bk := s.flat[p][mode]; bk != nil {
		return bk.Entries()
	}
	return 0
}

// BucketCount returns the number of priority keys the bus holds for message
// type T and mode, including empty buckets kept by snapshot.KeepEmpty.
func BucketCount[T any](b *Bus, mode Mode, post bool, ctx InstanceID) int {
	b = resolveBus(b)
	if mode == GlobalAcceptAll {
		if b.global == nil {
			return 0
		}
		return b.global.Len()
	}
	id, ok := typeid.LookupOf[T](b.types)
	if !ok || mode >= modeCount {
		return 0
	}
	s := b.sinksFor(id)
	if s == nil {
		return 0
	}
	p := postIndex(post)
	if mode.addressed() {
		if bk := s.keyed[p][mode][ctx]; bk != nil {
			return bk.Len()
		}
		return 0
	}
	if bk := s.flat[p][mode]; bk != nil {
		return bk.Len()
	}
	return 0
}
