// Package simulation drives a spawner over an in-memory scene with a
// deterministic frame loop and reports how well its pools reused
// instances.
//
// Each frame first returns every instance whose lifetime expired, oldest
// first, then spawns each prototype's per-frame quota. With spawn rate r,
// lifetime L and prewarm P, a prototype settles at max(P, r*L) entries and
// r*L active instances once L frames have passed.
package simulation

import (
	"context"
	"os"
	"time"

	"github.com/eapache/queue"
	"github.com/shirou/gopsutil/v3/process"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/internal/scene"
	"github.com/ajitpratap0/spawnpool/pkg/config"
	"github.com/ajitpratap0/spawnpool/pkg/metrics"
	"github.com/ajitpratap0/spawnpool/pkg/observability"
	"github.com/ajitpratap0/spawnpool/pkg/pool"
	"github.com/ajitpratap0/spawnpool/pkg/poolerrors"
	"github.com/ajitpratap0/spawnpool/pkg/spawner"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the run logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracer wraps every frame in a span from tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithMeter counts frames on meter.
func WithMeter(meter metric.Meter) Option {
	return func(r *Runner) {
		if meter != nil {
			r.meter = meter
		}
	}
}

// WithObserver attaches observer to every pool of the run.
func WithObserver(observer pool.Observer) Option {
	return func(r *Runner) {
		r.observer = observer
	}
}

// Runner executes simulations described by a config.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	observer pool.Observer
}

// NewRunner validates cfg and returns a Runner for it.
func NewRunner(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:    cfg,
		logger: zap.NewNop(),
		tracer: tracenoop.NewTracerProvider().Tracer("spawnpool"),
		meter:  metricnoop.NewMeterProvider().Meter("spawnpool"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type node = *scene.Node

// live is an instance waiting for its lifetime to end.
type live struct {
	instance node
	expires  int
}

type prototypeState struct {
	cfg      config.PrototypeConfig
	node     node
	live     *queue.Queue
	spawned  int
	returned int
}

// Run executes the configured number of frames and disposes every pool
// afterward. It stops early with the context's error if ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	sim := r.cfg.Simulation

	world := scene.New()
	root := world.NewNode(r.cfg.Spawner.RootName, nil)

	spawnerOpts := []spawner.Option{spawner.WithLogger(r.logger)}
	if r.observer != nil {
		spawnerOpts = append(spawnerOpts, spawner.WithObserver(r.observer))
	}
	if r.cfg.Spawner.StrictRelease {
		spawnerOpts = append(spawnerOpts, spawner.WithStrictRelease())
	}
	s := spawner.New[node, node](world, root, spawner.Callbacks[node, node]{}, spawnerOpts...)

	frameCounter, err := r.meter.Int64Counter("spawnpool.frames",
		metric.WithDescription("Simulation frames executed"))
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to create frame counter")
	}

	protos := make([]*prototypeState, 0, len(sim.Prototypes))
	for _, pc := range sim.Prototypes {
		ps := &prototypeState{
			cfg:  pc,
			node: world.NewPrototype(pc.Name),
			live: queue.New(),
		}
		if _, err := s.Allocate(ps.node, pc.Prewarm); err != nil {
			return nil, multierr.Append(err, s.Dispose())
		}
		protos = append(protos, ps)
	}

	latency := metrics.NewLatencyTracker(sim.Frames)
	peak := 0

	for frame := 0; frame < sim.Frames; frame++ {
		if err := ctx.Err(); err != nil {
			return nil, multierr.Append(err, s.Dispose())
		}

		frameStart := time.Now()
		err := observability.Trace(ctx, r.tracer, "simulation.frame", func(ctx context.Context, span *observability.Span) error {
			returned, err := r.returnExpired(s, protos, frame)
			if err != nil {
				return err
			}
			spawned, err := r.spawn(s, protos, frame)
			if err != nil {
				return err
			}

			span.SetAttribute("frame", frame)
			span.SetAttribute("returned", returned)
			span.SetAttribute("spawned", spawned)
			span.SetAttribute("active", s.ActiveCount())
			for _, ps := range protos {
				span.AddEvent("prototype", frameAttrs(ps)...)
			}
			return nil
		})
		if err != nil {
			return nil, multierr.Append(err, s.Dispose())
		}

		latency.Record(time.Since(frameStart))
		frameCounter.Add(ctx, 1)
		if active := s.ActiveCount(); active > peak {
			peak = active
		}
	}

	report := &Report{
		Name:        r.cfg.Name,
		Frames:      sim.Frames,
		PeakActive:  peak,
		ActiveAtEnd: s.ActiveCount(),
		AliveNodes:  world.Alive(),
		FrameP50:    latency.Percentile(50),
		FrameP99:    latency.Percentile(99),
	}
	stats := s.Stats()
	for _, ps := range protos {
		report.Prototypes = append(report.Prototypes, PrototypeReport{
			Name:     ps.cfg.Name,
			Spawned:  ps.spawned,
			Returned: ps.returned,
			Stats:    stats[ps.node],
		})
	}

	if err := s.Dispose(); err != nil {
		return nil, err
	}
	report.AliveAfterDispose = world.Alive()
	report.Elapsed = time.Since(start)
	report.RSSBytes = r.residentSetSize()

	r.logger.Info("simulation finished",
		zap.String("name", report.Name),
		zap.Int("frames", report.Frames),
		zap.Int("peak_active", report.PeakActive),
		zap.Duration("elapsed", report.Elapsed))

	return report, nil
}

func (r *Runner) returnExpired(s *spawner.Spawner[node, node], protos []*prototypeState, frame int) (int, error) {
	total := 0
	for _, ps := range protos {
		for ps.live.Length() > 0 {
			l := ps.live.Peek().(live)
			if l.expires > frame {
				break
			}
			ps.live.Remove()
			if err := s.Return(l.instance); err != nil {
				return total, err
			}
			ps.returned++
			total++
		}
	}
	return total, nil
}

func (r *Runner) spawn(s *spawner.Spawner[node, node], protos []*prototypeState, frame int) (int, error) {
	total := 0
	for _, ps := range protos {
		for i := 0; i < ps.cfg.SpawnPerFrame; i++ {
			instance, err := s.Get(ps.node)
			if err != nil {
				return total, err
			}
			ps.live.Add(live{instance: instance, expires: frame + ps.cfg.Lifetime})
			ps.spawned++
			total++
		}
	}
	return total, nil
}

func (r *Runner) residentSetSize() uint64 {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		r.logger.Warn("process stats unavailable", zap.Error(err))
		return 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		r.logger.Warn("memory info unavailable", zap.Error(err))
		return 0
	}
	return mem.RSS
}

// frameAttrs describes a prototype's running totals.
func frameAttrs(ps *prototypeState) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("prototype", ps.cfg.Name),
		attribute.Int("spawned", ps.spawned),
		attribute.Int("returned", ps.returned),
	}
}
