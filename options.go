package session

import "time"

// Option customizes a Domain and the components it builds. Coordinators,
// stores and bootstrappers created on their own accept the same options.
type Option func(*options)

type options struct {
	logger         Logger
	loggerProvider LoggerProvider
	activitySink   ActivitySink
	metrics        Metrics
	now            func() time.Time
}

func buildOptions(opts ...Option) *options {
	o := &options{
		activitySink: noopActivitySink{},
		metrics:      noopMetrics{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *options) loggerFor(name string) Logger {
	return resolveLogger(name, o.loggerProvider, o.logger)
}

func (o *options) recorder(domain, loggerName string) activityRecorder {
	return activityRecorder{
		domain: domain,
		sink:   o.activitySink,
		logger: o.loggerFor(loggerName),
		now:    o.now,
	}
}

// WithLogger sets the logger used when no LoggerProvider is configured.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLoggerProvider resolves scoped loggers such as "session.tenant.coordinator".
func WithLoggerProvider(provider LoggerProvider) Option {
	return func(o *options) {
		if provider != nil {
			o.loggerProvider = provider
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish session events.
func WithActivitySink(sink ActivitySink) Option {
	return func(o *options) {
		o.activitySink = normalizeActivitySink(sink)
	}
}

// WithMetrics sets the Metrics collector.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = normalizeMetrics(m)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
