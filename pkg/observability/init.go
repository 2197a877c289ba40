package observability

import (
	"context"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/pkg/config"
	"github.com/ajitpratap0/spawnpool/pkg/poolerrors"
)

// Provider owns the tracer and meter of one CLI run.
type Provider struct {
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
	tracer trace.Tracer
	meter  metric.Meter
	logger *zap.Logger
}

// Options holds the non-config inputs of Init.
type Options struct {
	// Version is reported as service.version
	Version string
	// Writer receives exported spans; defaults to stdout
	Writer io.Writer
	// Logger is synced on Shutdown
	Logger *zap.Logger
	// Global installs the provider and W3C propagators process-wide
	Global bool
}

// Init builds a Provider. With tracing disabled every span is a no-op and
// nothing is exported. Metrics are always recorded and read back through
// Counters.
func Init(cfg config.TracingConfig, opts Options) (*Provider, error) {
	p := &Provider{logger: opts.Logger}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(opts.Version),
		),
	)
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to create resource")
	}

	p.reader = sdkmetric.NewManualReader()
	p.mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(p.reader),
		sdkmetric.WithResource(res),
	)
	p.meter = p.mp.Meter(cfg.ServiceName)
	if opts.Global {
		otel.SetMeterProvider(p.mp)
	}

	if !cfg.Enabled {
		p.tracer = tracenoop.NewTracerProvider().Tracer(cfg.ServiceName)
		return p, nil
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to create stdout exporter")
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
		sdktrace.WithBatcher(exporter),
	)
	p.tracer = p.tp.Tracer(cfg.ServiceName)

	if opts.Global {
		otel.SetTracerProvider(p.tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	return p, nil
}

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the provider's meter.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// Counters collects the current totals of every int64 counter recorded on
// the provider's meter, keyed by instrument name. Attribute sets are summed.
func (p *Provider) Counters(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to collect metrics")
	}

	counters := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || !sum.IsMonotonic {
				continue
			}
			for _, dp := range sum.DataPoints {
				counters[m.Name] += dp.Value
			}
		}
	}
	return counters, nil
}

// Shutdown flushes pending spans, stops the meter provider and syncs the
// logger.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs error

	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to shutdown tracer"))
		}
	}

	if err := p.mp.Shutdown(ctx); err != nil {
		errs = multierr.Append(errs, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to shutdown meter provider"))
	}

	if err := p.logger.Sync(); err != nil && !ignorableSyncError(err) {
		errs = multierr.Append(errs, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to sync logger"))
	}

	return errs
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Sync fails on terminals and redirected stdio.
// See: https://github.com/uber-go/zap/issues/328
func ignorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "bad file descriptor") ||
		strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "inappropriate ioctl") ||
		strings.Contains(msg, "/dev/stdout") ||
		strings.Contains(msg, "/dev/stderr")
}
