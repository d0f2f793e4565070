package msgbus

import (
	"log/slog"

	"github.com/randalmurphal/msgbus/pkg/msgbus/observability"
	"github.com/randalmurphal/msgbus/pkg/msgbus/typeid"
)

// Dispatch describes one callback invocation.
type Dispatch struct {
	Bus           *Bus
	Emission      EmissionID
	Type          typeid.ID
	Mode          Mode
	PostProcessor bool
	Context       InstanceID
	Owner         InstanceID
	Priority      int
	Message       any
	// Count is the 1-based number of callbacks invoked so far in this emission.
	Count int
}

// Emission describes one completed emission.
type Emission struct {
	Bus        *Bus
	ID         EmissionID
	Type       typeid.ID
	Kind       Kind
	Context    InstanceID
	Message    any
	Cancelled  bool
	Dispatched int
}

// Diagnostics observes dispatch. Hooks run synchronously on the emitting
// thread and must not assume anything about handler state.
type Diagnostics interface {
	// OnDispatch is called right before each callback runs.
	OnDispatch(d Dispatch)

	// OnEmission is called after an emission finished or was cancelled.
	// It is not called when a callback panics.
	OnEmission(e Emission)
}

type multiDiagnostics []Diagnostics

func (m multiDiagnostics) OnDispatch(d Dispatch) {
	for _, h := range m {
		h.OnDispatch(d)
	}
}

func (m multiDiagnostics) OnEmission(e Emission) {
	for _, h := range m {
		h.OnEmission(e)
	}
}

// CombineDiagnostics fans out to every non-nil hook. It returns nil when no
// hook remains.
func CombineDiagnostics(hooks ...Diagnostics) Diagnostics {
	var out multiDiagnostics
	for _, h := range hooks {
		switch v := h.(type) {
		case nil:
		case multiDiagnostics:
			out = append(out, v...)
		default:
			out = append(out, v)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

// LoggingDiagnostics logs emissions, and optionally every dispatch, at debug level.
type LoggingDiagnostics struct {
	Logger     *slog.Logger
	Dispatches bool
}

// Compile-time interface check.
var _ Diagnostics = (*LoggingDiagnostics)(nil)

// OnDispatch implements Diagnostics.
func (l *LoggingDiagnostics) OnDispatch(d Dispatch) {
	if !l.Dispatches {
		return
	}
	observability.LogDispatch(l.Logger, d.Emission, d.Bus.TypeName(d.Type), d.Mode.String(), d.Priority, d.Count)
}

// OnEmission implements Diagnostics.
func (l *LoggingDiagnostics) OnEmission(e Emission) {
	name := e.Bus.TypeName(e.Type)
	if e.Cancelled {
		observability.LogCancelled(l.Logger, e.ID, name, e.Kind.String())
		return
	}
	observability.LogEmission(l.Logger, e.ID, name, e.Kind.String(), e.Dispatched)
}
