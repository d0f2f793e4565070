/*
Package msgbus provides an in-process, typed publish/subscribe dispatcher.

# Overview

Producers emit a message value; every callback registered for the message's
type, addressing mode and priority runs synchronously on the emitting
goroutine before the emit call returns. msgbus is built for update loops
where handlers frequently subscribe, unsubscribe and re-emit from inside
other handlers:
  - Deterministic order: ascending priority, then registration order
  - Stable passes: changes made during an emission show up from the next one
  - No allocation on the emit path once caches are warm

# Basic Usage

Owners get a MessageHandler and subscribe callbacks through it:

	type Damage struct {
	    Amount int
	}

	player := msgbus.NewInstanceID()
	h := msgbus.NewMessageHandler(player)

	release, err := msgbus.SubscribeTargeted(h, player, func(d *Damage) {
	    fmt.Println("took", d.Amount)
	})
	if err != nil {
	    log.Fatal(err)
	}
	defer release()

	msgbus.EmitTargeted(nil, player, &Damage{Amount: 3}) // "took 3"

A nil *Bus means the process-wide default bus. Buses are created with
NewBus and options:

	bus := msgbus.NewBus(
	    msgbus.WithName("gameplay"),
	    msgbus.WithLogger(slog.Default()),
	)
	h.SetDefaultBus(bus)

# Addressing Modes

Messages are emitted in one of three kinds and handlers subscribe with one of
six modes:

	EmitUntargeted  -> Untargeted
	EmitTargeted    -> Targeted (one target), TargetedWithoutTargeting (any target)
	EmitBroadcast   -> Broadcast (one source), BroadcastWithoutSource (any source)
	every kind      -> GlobalAcceptAll

For one emission the bus runs the interceptors, then the main handlers for
the exact target or source, then the without-addressing main handlers, then
the accept-all handlers, then the post-processors in the same order.

# Priorities and Post-Processors

	msgbus.SubscribeUntargeted(h, validate, msgbus.WithPriority(-10))
	msgbus.SubscribeUntargeted(h, apply)
	msgbus.SubscribeUntargeted(h, audit, msgbus.AsPostProcessor())

Lower priorities run earlier; equal priorities run in registration order,
across every subscriber on the bus. A post-processor never runs before the
last main handler of its emission.

Registering the same func value again increments a reference count instead
of adding a second entry. The callback runs once per emission and stays until
every release has run. Identity is by func value: two closures built from
the same literal are distinct callbacks.

# Interceptors

Interceptors run before any handler and may mutate the message, rewrite the
target or source, or cancel the emission by returning false:

	msgbus.InterceptTargeted(bus, func(target *msgbus.InstanceID, d *Damage) bool {
	    if d.Amount <= 0 {
	        return false
	    }
	    d.Amount *= 2
	    return true
	}, msgbus.WithPriority(-1))

Changes made by interceptors that ran before a cancel are kept.

# Tokens

A Token stages registrations for one handler and wires or unwires them
together:

	tok, _ := msgbus.NewToken(h)
	hit, _ := msgbus.RegisterTargeted(tok, player, onDamage)
	msgbus.RegisterUntargeted(tok, onTick, msgbus.WithPriority(5))

	tok.Enable()   // wire everything
	tok.Disable()  // unwire, keep staged
	tok.Enable()   // same subscriptions again
	tok.RemoveRegistration(hit)
	tok.UnregisterAll()

RetargetMessageBus moves a token to another bus, either immediately or from
the next Enable on.

# Re-entrancy

A callback may emit, subscribe or release anything, itself included. Each
emission snapshots the callback lists it walks: a callback added during
emission N first runs in emission N+1, and a callback removed during N still
runs in N if N had not reached it yet. Callback panics are not recovered;
they unwind through the emit call and the bus stays usable.

# Default Bus

The process-wide bus can be swapped, and scoped overrides restore the
previous instance:

	o := msgbus.OverrideDefault(msgbus.NewBus())
	defer o.Close()

# Observability

WithMetrics and WithTracing take recorders from the observability package.
WithDiagnostics installs hooks called before every callback and after every
emission; LoggingDiagnostics logs them and the history package records them.

# Thread Safety

A Bus and everything registered on it are driven from one goroutine.
Stats, EmissionID, Default and SetDefault are safe to call from anywhere.
*/
package msgbus
