package history

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/msgbus/pkg/msgbus"
	"github.com/randalmurphal/msgbus/pkg/msgbus/observability"
)

// Formatter renders a message value for storage.
type Formatter func(msg any) string

// Recorder captures every completed emission of the buses it is attached to
// and appends it to a Store. Attach it with msgbus.WithDiagnostics.
//
// Store failures never reach the emitter; they are logged at warn level.
type Recorder struct {
	store  Store
	logger *slog.Logger
	format Formatter
	now    func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger used for store failures.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithFormatter replaces the default "%+v" message formatting.
func WithFormatter(f Formatter) RecorderOption {
	return func(r *Recorder) {
		if f != nil {
			r.format = f
		}
	}
}

// NewRecorder creates a recorder appending to store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		format: defaultFormat,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Compile-time interface check.
var _ msgbus.Diagnostics = (*Recorder)(nil)

// Store returns the underlying store.
func (r *Recorder) Store() Store {
	return r.store
}

// OnDispatch implements msgbus.Diagnostics. Individual dispatches are not recorded.
func (r *Recorder) OnDispatch(msgbus.Dispatch) {}

// OnEmission implements msgbus.Diagnostics.
func (r *Recorder) OnEmission(e msgbus.Emission) {
	rec := Record{
		ID:         uuid.NewString(),
		Emission:   e.ID,
		Kind:       e.Kind.String(),
		Context:    int64(e.Context),
		Cancelled:  e.Cancelled,
		Dispatched: e.Dispatched,
		Message:    r.format(e.Message),
		Timestamp:  r.now(),
	}
	if e.Bus != nil {
		rec.Bus = e.Bus.Name()
		rec.Type = e.Bus.TypeName(e.Type)
	}
	if err := r.store.Append(rec); err != nil {
		observability.LogHistoryError(r.logger, e.ID, "append", err)
	}
}

func defaultFormat(msg any) string {
	return fmt.Sprintf("%+v", msg)
}
