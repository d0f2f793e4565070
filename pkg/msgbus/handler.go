package msgbus

import (
	"github.com/randalmurphal/msgbus/pkg/msgbus/snapshot"
	"github.com/randalmurphal/msgbus/pkg/msgbus/typeid"
)

// globalCallback receives every message emitted on a bus.
type globalCallback = func(Envelope)

// MessageHandler is the subscriber registry of one owner. It holds the owner's
// callbacks for every bus it registered against and an active switch. While
// inactive, dispatch skips the handler but every registration is kept.
type MessageHandler struct {
	owner      InstanceID
	active     bool
	defaultBus *Bus

	// tables[bus index][type id] holds a *typedHandler[T].
	tables  [][]any
	globals []*snapshot.Buckets[funcKey, globalCallback]
}

// NewMessageHandler creates an active handler for owner.
func NewMessageHandler(owner InstanceID) *MessageHandler {
	return &MessageHandler{
		owner:  owner,
		active: true,
	}
}

// Owner returns the owner id passed to NewMessageHandler.
func (h *MessageHandler) Owner() InstanceID {
	return h.owner
}

// Active reports whether the handler receives messages.
func (h *MessageHandler) Active() bool {
	return h.active
}

// SetActive turns dispatch to this handler on or off.
func (h *MessageHandler) SetActive(active bool) {
	h.active = active
}

// DefaultBus returns the handler's bus override, or nil.
func (h *MessageHandler) DefaultBus() *Bus {
	return h.defaultBus
}

// SetDefaultBus makes registrations without an explicit bus go to b.
// Passing nil falls back to the process-wide default bus.
func (h *MessageHandler) SetDefaultBus(b *Bus) {
	h.defaultBus = b
}

// busFor resolves the bus for a registration: explicit, then the handler
// override, then the process-wide default.
func (h *MessageHandler) busFor(explicit *Bus) *Bus {
	if explicit != nil {
		return explicit
	}
	if h.defaultBus != nil {
		return h.defaultBus
	}
	return Default()
}

// tableFor returns the handler table for T on b, creating it on first use.
func tableFor[T any](h *MessageHandler, b *Bus, id typeid.ID) *typedHandler[T] {
	for b.index >= len(h.tables) {
		h.tables = append(h.tables, nil)
	}
	row := h.tables[b.index]
	for int(id) >= len(row) {
		row = append(row, nil)
	}
	h.tables[b.index] = row
	if t, ok := row[id].(*typedHandler[T]); ok {
		return t
	}
	t := &typedHandler[T]{}
	row[id] = t
	return t
}

func lookupTable[T any](h *MessageHandler, b *Bus, id typeid.ID) *typedHandler[T] {
	if b.index >= len(h.tables) {
		return nil
	}
	row := h.tables[b.index]
	if id < 0 || int(id) >= len(row) {
		return nil
	}
	t, _ := row[id].(*typedHandler[T])
	return t
}

func (h *MessageHandler) globalsFor(b *Bus) *snapshot.Buckets[funcKey, globalCallback] {
	for b.index >= len(h.globals) {
		h.globals = append(h.globals, nil)
	}
	bk := h.globals[b.index]
	if bk == nil {
		bk = snapshot.NewBuckets[funcKey, globalCallback](b, b.policies[0][GlobalAcceptAll])
		h.globals[b.index] = bk
	}
	return bk
}

// handleMessage runs h's callbacks for one (mode, post, ctx, priority) slot of
// an emission. It is the dispatch entry point the bus calls for every mode
// except GlobalAcceptAll.
func handleMessage[T any](h *MessageHandler, b *Bus, e EmissionID, id typeid.ID, mode Mode, post bool, ctx InstanceID, priority int, msg *T) {
	if !h.active {
		return
	}
	t := lookupTable[T](h, b, id)
	if t == nil {
		return
	}
	c := bucketAt(t.buckets(mode, post, ctx), e, priority)
	if c == nil {
		return
	}
	for _, cb := range c.Ordered(e) {
		n := b.countDispatch()
		if b.diag != nil {
			b.diag.OnDispatch(Dispatch{
				Bus:           b,
				Emission:      e,
				Type:          id,
				Mode:          mode,
				PostProcessor: post,
				Context:       ctx,
				Owner:         h.owner,
				Priority:      priority,
				Message:       msg,
				Count:         n,
			})
		}
		cb(ctx, msg)
	}
}

// handleGlobal runs h's accept-all callbacks at priority.
func (h *MessageHandler) handleGlobal(b *Bus, e EmissionID, priority int, env Envelope) {
	if !h.active || b.index >= len(h.globals) {
		return
	}
	c := bucketAt(h.globals[b.index], e, priority)
	if c == nil {
		return
	}
	for _, cb := range c.Ordered(e) {
		n := b.countDispatch()
		if b.diag != nil {
			b.diag.OnDispatch(Dispatch{
				Bus:      b,
				Emission: e,
				Type:     env.Type,
				Mode:     GlobalAcceptAll,
				Context:  env.Context,
				Owner:    h.owner,
				Priority: priority,
				Message:  env.Message,
				Count:    n,
			})
		}
		cb(env)
	}
}

// HandlerCount returns how many distinct callbacks h holds on b for message
// type T in mode. Addressed modes count callbacks for ctx only.
func HandlerCount[T any](h *MessageHandler, b *Bus, mode Mode, post bool, ctx InstanceID) int {
	b = h.busFor(b)
	if mode == GlobalAcceptAll {
		if b.index >= len(h.globals) || h.globals[b.index] == nil {
			return 0
		}
		return h.globals[b.index].Entries()
	}
	id, ok := typeid.LookupOf[T](b.types)
	if !ok || mode >= modeCount {
		return 0
	}
	t := lookupTable[T](h, b, id)
	if t == nil {
		return 0
	}
	return t.count(mode, post, ctx)
}
