package msgbus

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/msgbus/pkg/msgbus/snapshot"
	"github.com/randalmurphal/msgbus/pkg/msgbus/typeid"
)

// EmitUntargeted delivers msg to every untargeted subscriber of T on b and to
// every accept-all subscriber. A nil b means the process-wide default bus.
// It reports false when an interceptor vetoed the message or msg is nil.
//
// Callbacks run synchronously on the calling goroutine. A panicking callback
// unwinds through EmitUntargeted; subscribers not yet reached are skipped.
func EmitUntargeted[T any](b *Bus, msg *T) bool {
	ctx := None
	return emit(b, KindUntargeted, &ctx, msg)
}

// EmitTargeted delivers msg to the subscribers of target, then to every
// TargetedWithoutTargeting subscriber of T, then to accept-all subscribers.
func EmitTargeted[T any](b *Bus, target InstanceID, msg *T) bool {
	return emit(b, KindTargeted, &target, msg)
}

// EmitBroadcast delivers msg to the subscribers of source, then to every
// BroadcastWithoutSource subscriber of T, then to accept-all subscribers.
func EmitBroadcast[T any](b *Bus, source InstanceID, msg *T) bool {
	return emit(b, KindBroadcast, &source, msg)
}

func emit[T any](b *Bus, kind Kind, ctx *InstanceID, msg *T) bool {
	if msg == nil {
		return false
	}
	b = resolveBus(b)

	id, ok := typeid.LookupOf[T](b.types)
	if !ok {
		id = typeid.Unassigned
	}
	sinks := b.sinksFor(id)

	e := b.begin()
	defer b.end()

	var (
		start   time.Time
		span    trace.Span
		typName string
	)
	observing := b.observing()
	if observing {
		start = time.Now()
		typName = b.TypeName(id)
		if b.spans != nil {
			_, span = b.spans.StartEmissionSpan(context.Background(), b.name, typName, kind.String(), e)
		}
	}

	delivered := runInterceptors(b, e, sinks, kind, ctx, msg)
	if delivered {
		dispatch(b, e, id, sinks, kind, *ctx, msg)
	}

	dispatched := b.currentDispatched()
	if delivered {
		b.dispatched.Add(uint64(dispatched))
	} else {
		b.cancelled.Add(1)
	}

	if observing {
		b.finish(e, id, kind, *ctx, msg, typName, start, span, delivered, dispatched)
	}
	return delivered
}

// dispatch runs every main handler of the occurrence, then every post-processor.
func dispatch[T any](b *Bus, e EmissionID, id typeid.ID, sinks *typeSinks, kind Kind, ctx InstanceID, msg *T) {
	addressed, without, hasWithout := kind.modes()

	dispatchSinks(b, e, id, sinks, addressed, false, ctx, msg)
	if hasWithout {
		dispatchSinks(b, e, id, sinks, without, false, ctx, msg)
	}
	if b.global != nil {
		dispatchGlobal(b, e, Envelope{Kind: kind, Type: id, Context: ctx, Message: msg})
	}
	dispatchSinks(b, e, id, sinks, addressed, true, ctx, msg)
	if hasWithout {
		dispatchSinks(b, e, id, sinks, without, true, ctx, msg)
	}
}

func dispatchSinks[T any](b *Bus, e EmissionID, id typeid.ID, sinks *typeSinks, mode Mode, post bool, ctx InstanceID, msg *T) {
	if sinks == nil {
		return
	}
	var bk *snapshot.Buckets[*MessageHandler, *MessageHandler]
	p := postIndex(post)
	if mode.addressed() {
		bk = sinks.keyed[p][mode][ctx]
	} else {
		bk = sinks.flat[p][mode]
	}
	if bk == nil {
		return
	}
	for _, bucket := range bk.Ordered(e) {
		for _, h := range bucket.Cache.Ordered(e) {
			handleMessage(h, b, e, id, mode, post, ctx, bucket.Priority, msg)
		}
	}
}

func dispatchGlobal(b *Bus, e EmissionID, env Envelope) {
	for _, bucket := range b.global.Ordered(e) {
		for _, h := range bucket.Cache.Ordered(e) {
			h.handleGlobal(b, e, bucket.Priority, env)
		}
	}
}

// finish reports a completed emission to the configured observers.
func (b *Bus) finish(e EmissionID, id typeid.ID, kind Kind, ctx InstanceID, msg any, typName string, start time.Time, span trace.Span, delivered bool, dispatched int) {
	if b.metrics != nil {
		if delivered {
			b.metrics.RecordEmission(context.Background(), b.name, typName, kind.String(), dispatched, time.Since(start))
		} else {
			b.metrics.RecordCancellation(context.Background(), b.name, typName, kind.String())
		}
	}
	if span != nil {
		b.spans.EndEmissionSpan(span, dispatched, !delivered)
	}
	if b.diag != nil {
		b.diag.OnEmission(Emission{
			Bus:        b,
			ID:         e,
			Type:       id,
			Kind:       kind,
			Context:    ctx,
			Message:    msg,
			Cancelled:  !delivered,
			Dispatched: dispatched,
		})
	}
}
