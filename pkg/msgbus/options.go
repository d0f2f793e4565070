package msgbus

import (
	"log/slog"

	"github.com/randalmurphal/msgbus/pkg/msgbus/observability"
	"github.com/randalmurphal/msgbus/pkg/msgbus/snapshot"
	"github.com/randalmurphal/msgbus/pkg/msgbus/typeid"
)

// busConfig holds configuration for a Bus.
type busConfig struct {
	name        string
	types       *typeid.Registry
	logger      *slog.Logger
	diagnostics Diagnostics
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	policies    [2][modeCount]snapshot.RemovalPolicy
}

// defaultBusConfig returns the default bus configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		types:  typeid.Default,
		logger: slog.Default(),
	}
}

// BusOption configures a Bus.
type BusOption func(*busConfig)

// WithName sets the bus name used in logs, metrics, and history.
// Default: a random UUID.
func WithName(name string) BusOption {
	return func(c *busConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithTypeRegistry sets the registry that assigns message type ids.
// Default: typeid.Default
func WithTypeRegistry(r *typeid.Registry) BusOption {
	return func(c *busConfig) {
		if r != nil {
			c.types = r
		}
	}
}

// WithLogger sets the logger for registration and lifecycle events.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) BusOption {
	return func(c *busConfig) {
		c.logger = logger
	}
}

// WithDiagnostics installs a hook called for every dispatched callback and
// every completed emission. Passing several hooks combines them.
func WithDiagnostics(hooks ...Diagnostics) BusOption {
	return func(c *busConfig) {
		all := make([]Diagnostics, 0, len(hooks)+1)
		if c.diagnostics != nil {
			all = append(all, c.diagnostics)
		}
		all = append(all, hooks...)
		c.diagnostics = CombineDiagnostics(all...)
	}
}

// WithMetrics records emission metrics with the given recorder.
//
// Example:
//
//	bus := msgbus.NewBus(msgbus.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(recorder observability.MetricsRecorder) BusOption {
	return func(c *busConfig) {
		c.metrics = recorder
	}
}

// WithTracing starts a span per emission with the given span manager.
func WithTracing(spans observability.SpanManager) BusOption {
	return func(c *busConfig) {
		c.spans = spans
	}
}

// WithRemovalPolicy sets what happens to an emptied priority bucket for main
// handlers of mode. The policy applies to both the bus-side subscriber buckets
// and each subscriber's callback buckets.
// Default: snapshot.DeleteEmpty
func WithRemovalPolicy(mode Mode, policy snapshot.RemovalPolicy) BusOption {
	return func(c *busConfig) {
		if mode < modeCount {
			c.policies[0][mode] = policy
		}
	}
}

// WithPostProcessorRemovalPolicy is WithRemovalPolicy for post-processors.
func WithPostProcessorRemovalPolicy(mode Mode, policy snapshot.RemovalPolicy) BusOption {
	return func(c *busConfig) {
		if mode < modeCount {
			c.policies[1][mode] = policy
		}
	}
}

// registerConfig holds per-registration settings.
type registerConfig struct {
	priority int
	post     bool
	bus      *Bus
}

// RegisterOption configures one registration.
type RegisterOption func(*registerConfig)

// WithPriority sets the priority bucket. Lower values run earlier.
// Default: 0
func WithPriority(priority int) RegisterOption {
	return func(c *registerConfig) {
		c.priority = priority
	}
}

// AsPostProcessor registers the callback as a post-processor, which runs after
// every main handler for the same emission.
func AsPostProcessor() RegisterOption {
	return func(c *registerConfig) {
		c.post = true
	}
}

// OnBus registers against b instead of the handler's default bus.
func OnBus(b *Bus) RegisterOption {
	return func(c *registerConfig) {
		c.bus = b
	}
}

func newRegisterConfig(opts []RegisterOption) registerConfig {
	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func postIndex(post bool) int {
	if post {
		return 1
	}
	return 0
}
