package spawner

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/pkg/pool"
)

// Option configures a Spawner.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	observer      pool.Observer
	strictRelease bool
}

func defaultOptions() options {
	return options{
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger shared by the spawner and its pools. A nil
// logger keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver attaches observer to every pool the spawner creates, for
// example a *metrics.PoolCollector.
func WithObserver(observer pool.Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithStrictRelease builds every pool with pool.WithStrictRelease.
func WithStrictRelease() Option {
	return func(o *options) {
		o.strictRelease = true
	}
}
