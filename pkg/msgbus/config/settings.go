package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/randalmurphal/msgbus/pkg/msgbus"
	"github.com/randalmurphal/msgbus/pkg/msgbus/history"
	"github.com/randalmurphal/msgbus/pkg/msgbus/observability"
	"github.com/randalmurphal/msgbus/pkg/msgbus/snapshot"
)

// ErrInvalidSetting indicates a setting value that cannot be applied.
var ErrInvalidSetting = errors.New("invalid bus setting")

// Settings describes one bus. The zero value builds a bus with defaults.
type Settings struct {
	// Name of the bus. Empty means a random name.
	Name string `env:"NAME"`

	// RemovalPolicy applies to main handlers of every mode: "delete_empty"
	// or "keep_empty". Empty keeps the bus default.
	RemovalPolicy string `env:"REMOVAL_POLICY"`

	// RemovalPolicies overrides RemovalPolicy per mode name, e.g.
	// MSGBUS_REMOVAL_POLICIES=targeted:keep_empty,broadcast:delete_empty
	RemovalPolicies map[string]string `env:"REMOVAL_POLICIES"`

	// PostRemovalPolicy is RemovalPolicy for post-processors.
	PostRemovalPolicy string `env:"POST_REMOVAL_POLICY"`

	// PostRemovalPolicies is RemovalPolicies for post-processors.
	PostRemovalPolicies map[string]string `env:"POST_REMOVAL_POLICIES"`

	// LogEmissions logs every emission at debug level.
	LogEmissions bool `env:"LOG_EMISSIONS"`

	// LogDispatch additionally logs every callback invocation.
	LogDispatch bool `env:"LOG_DISPATCH"`

	// Metrics enables OpenTelemetry counters and histograms.
	Metrics bool `env:"METRICS"`

	// Tracing enables one OpenTelemetry span per emission.
	Tracing bool `env:"TRACING"`

	History HistorySettings `envPrefix:"HISTORY_"`
}

// HistorySettings configures emission capture.
type HistorySettings struct {
	Enabled bool `env:"ENABLED"`

	// Capacity of the in-memory ring. Default: history.DefaultCapacity
	Capacity int `env:"CAPACITY"`

	// SQLitePath persists history to SQLite instead of memory.
	SQLitePath string `env:"SQLITE_PATH"`
}

// Validate checks policy and mode names.
func (s Settings) Validate() error {
	if _, err := policies(s.RemovalPolicy, s.RemovalPolicies, mainModes); err != nil {
		return err
	}
	if _, err := policies(s.PostRemovalPolicy, s.PostRemovalPolicies, postModes); err != nil {
		return fmt.Errorf("post-processor: %w", err)
	}
	if s.History.Capacity < 0 {
		return fmt.Errorf("%w: history capacity %d", ErrInvalidSetting, s.History.Capacity)
	}
	return nil
}

// Built is the result of applying Settings.
type Built struct {
	Options []msgbus.BusOption

	// History is the capture store, or nil when history is disabled.
	History history.Store
}

// Close releases the history store.
func (b Built) Close() error {
	if b.History == nil {
		return nil
	}
	return b.History.Close()
}

// BusOptions turns settings into bus options. Logging and history failures go
// to logger; a nil logger keeps the bus quiet.
func (s Settings) BusOptions(logger *slog.Logger) (Built, error) {
	if err := s.Validate(); err != nil {
		return Built{}, err
	}

	opts := []msgbus.BusOption{
		msgbus.WithName(s.Name),
		msgbus.WithLogger(logger),
	}

	mainPolicies, _ := policies(s.RemovalPolicy, s.RemovalPolicies, mainModes)
	for mode, p := range mainPolicies {
		opts = append(opts, msgbus.WithRemovalPolicy(mode, p))
	}
	postPolicies, _ := policies(s.PostRemovalPolicy, s.PostRemovalPolicies, postModes)
	for mode, p := range postPolicies {
		opts = append(opts, msgbus.WithPostProcessorRemovalPolicy(mode, p))
	}

	if s.LogEmissions || s.LogDispatch {
		opts = append(opts, msgbus.WithDiagnostics(&msgbus.LoggingDiagnostics{
			Logger:     logger,
			Dispatches: s.LogDispatch,
		}))
	}
	if s.Metrics {
		opts = append(opts, msgbus.WithMetrics(observability.NewMetricsRecorder()))
	}
	if s.Tracing {
		opts = append(opts, msgbus.WithTracing(observability.NewSpanManager()))
	}

	built := Built{Options: opts}
	if s.History.Enabled || s.History.SQLitePath != "" {
		store, err := s.History.open()
		if err != nil {
			return Built{}, err
		}
		built.History = store
		built.Options = append(built.Options, msgbus.WithDiagnostics(
			history.NewRecorder(store, history.WithLogger(logger)),
		))
	}
	return built, nil
}

// NewBus builds a bus from settings. Close the returned Built when the bus
// is no longer used.
func (s Settings) NewBus(logger *slog.Logger, extra ...msgbus.BusOption) (*msgbus.Bus, Built, error) {
	built, err := s.BusOptions(logger)
	if err != nil {
		return nil, Built{}, err
	}
	return msgbus.NewBus(append(built.Options, extra...)...), built, nil
}

func (h HistorySettings) open() (history.Store, error) {
	if h.SQLitePath != "" {
		store, err := history.NewSQLiteStore(h.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		return store, nil
	}
	return history.NewMemoryStore(h.Capacity), nil
}

// policies resolves a base policy plus per-mode overrides for the given
// modes. Modes without a setting are absent from the result.
func policies(base string, overrides map[string]string, modes []msgbus.Mode) (map[msgbus.Mode]snapshot.RemovalPolicy, error) {
	out := make(map[msgbus.Mode]snapshot.RemovalPolicy)
	if base != "" {
		p, ok := snapshot.ParseRemovalPolicy(base)
		if !ok {
			return nil, fmt.Errorf("%w: removal policy %q", ErrInvalidSetting, base)
		}
		for _, mode := range modes {
			out[mode] = p
		}
	}
	for name, value := range overrides {
		mode, ok := msgbus.ParseMode(name)
		if !ok || !slices.Contains(modes, mode) {
			return nil, fmt.Errorf("%w: mode %q", ErrInvalidSetting, name)
		}
		p, ok := snapshot.ParseRemovalPolicy(value)
		if !ok {
			return nil, fmt.Errorf("%w: removal policy %q for %s", ErrInvalidSetting, value, name)
		}
		out[mode] = p
	}
	return out, nil
}

var (
	postModes = []msgbus.Mode{
		msgbus.Untargeted,
		msgbus.Targeted,
		msgbus.TargetedWithoutTargeting,
		msgbus.Broadcast,
		msgbus.BroadcastWithoutSource,
	}

	// GlobalAcceptAll handlers have no post-processor stage.
	mainModes = append(slices.Clone(postModes), msgbus.GlobalAcceptAll)
)
