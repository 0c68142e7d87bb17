package soilwire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/soilwire/soilwire/internal/adapters/csvjournal"
	"github.com/soilwire/soilwire/internal/adapters/netprobe"
	"github.com/soilwire/soilwire/internal/adapters/observability"
	"github.com/soilwire/soilwire/internal/adapters/serialtap"
	"github.com/soilwire/soilwire/internal/adapters/sink"
	"github.com/soilwire/soilwire/internal/adapters/spool"
	"github.com/soilwire/soilwire/internal/app/config"
	"github.com/soilwire/soilwire/internal/app/relay"
	"github.com/soilwire/soilwire/internal/domain"
	"github.com/soilwire/soilwire/internal/ports"
)

// RelayRuntimeOption customizes the dependencies used by RelayRuntime.
type RelayRuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     Collector
	journal       Journal
	spool         Spool
	sink          Sink
	probe         Probe
	resetter      LinkResetter
	observability Observability
}

// WithCollector injects a custom sensor source (simulators, sockets, test feeds).
func WithCollector(col Collector) RelayRuntimeOption {
	return func(o *runtimeOverrides) { o.collector = col }
}

// WithJournal lets callers bring their own durable local log.
func WithJournal(j Journal) RelayRuntimeOption {
	return func(o *runtimeOverrides) { o.journal = j }
}

// WithSpool swaps the pending-delivery store implementation.
func WithSpool(s Spool) RelayRuntimeOption {
	return func(o *runtimeOverrides) { o.spool = s }
}

// WithSink injects a custom remote sink so readings can go to any service.
func WithSink(s Sink) RelayRuntimeOption {
	return func(o *runtimeOverrides) { o.sink = s }
}

// WithProbe overrides the TCP reachability probe.
func WithProbe(p Probe) RelayRuntimeOption {
	return func(o *runtimeOverrides) { o.probe = p }
}

// WithLinkResetter installs an environment-specific link recovery action.
func WithLinkResetter(r LinkResetter) RelayRuntimeOption {
	return func(o *runtimeOverrides) { o.resetter = r }
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RelayRuntimeOption {
	return func(o *runtimeOverrides) { o.observability = obs }
}

// RelayRuntime wires collector → coordinator → {journal, uploader, spool}
// plus the connectivity monitor, and exposes lifecycle hooks for embedding
// the relay inside any Go service.
type RelayRuntime struct {
	cfg         *config.Config
	obs         ports.Observability
	journal     ports.Journal
	spool       ports.Spool
	collector   ports.Collector
	state       *relay.ConnState
	coordinator *relay.Coordinator
	monitor     *relay.Monitor

	metricsSrv    *http.Server
	readings      chan domain.Reading
	ingestDoneCh  chan struct{}
	monitorDoneCh chan struct{}
	monitorCancel context.CancelFunc
}

// NewRelayRuntime bootstraps the default adapters (serial collector, CSV
// journal and spool, Postgres sink, TCP probe, Prometheus observability).
// Options override any dependency.
func NewRelayRuntime(cfg *config.Config, opts ...RelayRuntimeOption) (*RelayRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs()
	}

	header := domain.Header(cfg.Channels)

	journal := overrides.journal
	if journal == nil {
		j, err := csvjournal.New(cfg.Journal.Path, header)
		if err != nil {
			return nil, err
		}
		journal = j
	}

	pending := overrides.spool
	if pending == nil {
		s, err := spool.New(cfg.Spool.Path, header, obs)
		if err != nil {
			return nil, err
		}
		pending = s
	}

	col := overrides.collector
	if col == nil {
		c, err := serialtap.NewCollector(cfg.Serial, obs)
		if err != nil {
			return nil, err
		}
		col = c
	}

	snk := overrides.sink
	if snk == nil {
		snk = sink.NewPostgresSink(cfg.Sink.ConnString, cfg.Sink.Table, cfg.Channels)
	}

	probe := overrides.probe
	if probe == nil {
		probe = netprobe.TCPProbe{Addr: cfg.Monitor.ProbeAddr, Timeout: cfg.Monitor.ProbeTimeout}
	}

	resetter := overrides.resetter
	if resetter == nil {
		if len(cfg.Monitor.LinkDown) > 0 {
			resetter = netprobe.CommandResetter{
				Down:   cfg.Monitor.LinkDown,
				Up:     cfg.Monitor.LinkUp,
				Settle: cfg.Monitor.LinkSettle,
			}
		} else {
			resetter = netprobe.NopResetter{}
		}
	}

	state := relay.NewConnState()
	uploader := relay.NewUploader(pending, obs, cfg.Sink.AppendPause)

	return &RelayRuntime{
		cfg:         cfg,
		obs:         obs,
		journal:     journal,
		spool:       pending,
		collector:   col,
		state:       state,
		coordinator: relay.NewCoordinator(journal, pending, uploader, state, obs),
		monitor:     relay.NewMonitor(probe, resetter, snk, state, pending, uploader, obs, cfg.Monitor),
	}, nil
}

// Start launches the collector, the ingestion loop, the connectivity
// monitor, and the metrics endpoint. It returns immediately; use Run to
// block on a context.
func (rt *RelayRuntime) Start() error {
	if rt == nil {
		return fmt.Errorf("relay runtime is nil")
	}

	monitorCtx, cancel := context.WithCancel(context.Background())
	rt.monitorCancel = cancel

	rt.readings = make(chan domain.Reading, 64)
	if err := rt.collector.Start(rt.readings); err != nil {
		cancel()
		return err
	}

	rt.ingestDoneCh = make(chan struct{})
	go func() {
		defer close(rt.ingestDoneCh)
		for r := range rt.readings {
			rt.coordinator.HandleReading(monitorCtx, r)
		}
	}()

	rt.monitorDoneCh = make(chan struct{})
	go func() {
		defer close(rt.monitorDoneCh)
		// Immediate first pass so a live connection is usable before the
		// first full interval elapses.
		rt.monitor.Cycle(monitorCtx)
		rt.monitor.Run(monitorCtx)
	}()

	rt.startMetrics()
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled or the sensor
// stream ends for good (reopen budget exhausted).
func (rt *RelayRuntime) Run(ctx context.Context) error {
	if err := rt.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-rt.ingestDoneCh:
		rt.obs.LogInfo("sensor_stream_ended")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return rt.Shutdown(shutdownCtx)
}

// Shutdown stops the collector, lets the in-flight reading finish, stops
// the monitor after its current cycle, and closes the sink session.
func (rt *RelayRuntime) Shutdown(ctx context.Context) error {
	var errs []error

	if rt.collector != nil {
		if err := rt.collector.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if rt.ingestDoneCh != nil {
		select {
		case <-rt.ingestDoneCh:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}

	if rt.monitorCancel != nil {
		rt.monitorCancel()
	}
	if rt.monitorDoneCh != nil {
		select {
		case <-rt.monitorDoneCh:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}

	if rt.metricsSrv != nil {
		if err := rt.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if old := rt.state.Swap(nil); old != nil {
		if err := old.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (rt *RelayRuntime) startMetrics() {
	mux := http.NewServeMux()
	if po, ok := rt.obs.(*observability.PromObs); ok {
		mux.Handle("/metrics", promhttp.HandlerFor(po.Registry(), promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	rt.metricsSrv = &http.Server{
		Addr:    rt.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := rt.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Warn("metrics server exited")
		}
	}()
}
