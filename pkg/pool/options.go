package pool

import "go.uber.org/zap"

// Option configures non-generic pool behavior.
type Option func(*options)

type options struct {
	name          string
	logger        *zap.Logger
	observer      Observer
	strictRelease bool
}

func defaultOptions() options {
	return options{
		name:   "default",
		logger: zap.NewNop(),
	}
}

// WithName sets the pool name used in logs, errors and observer events.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers an observer notified after every pool mutation.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithStrictRelease makes releasing an already free item return an
// ErrorTypeDoubleRelease error instead of firing the release hook again.
func WithStrictRelease() Option {
	return func(o *options) {
		o.strictRelease = true
	}
}
