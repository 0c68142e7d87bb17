package relay

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/soilwire/soilwire/internal/domain"
	"github.com/soilwire/soilwire/internal/ports"
)

var errUnreachable = errors.New("probe still unreachable after link reset")

// MonitorConfig expresses the monitor's cadence and reconnection budget as
// plain configuration so tests can run with near-zero delays.
type MonitorConfig struct {
	ProbeAddr         string        `yaml:"probe_addr"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	CheckInterval     time.Duration `yaml:"check_interval"`
	Tick              time.Duration `yaml:"tick"`
	ReconnectAttempts uint64        `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	LinkDown          []string      `yaml:"link_down"`
	LinkUp            []string      `yaml:"link_up"`
	LinkSettle        time.Duration `yaml:"link_settle"`
}

func (c *MonitorConfig) ApplyDefaults() {
	if c.ProbeAddr == "" {
		c.ProbeAddr = "8.8.8.8:53"
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 3 * time.Second
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Minute
	}
	if c.Tick <= 0 {
		c.Tick = 5 * time.Second
	}
	if c.ReconnectAttempts == 0 {
		c.ReconnectAttempts = 3
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.LinkSettle <= 0 {
		c.LinkSettle = time.Second
	}
}

func (c *MonitorConfig) Validate() error {
	if c.Tick > c.CheckInterval {
		return errors.New("tick must not exceed check_interval")
	}
	if (len(c.LinkDown) == 0) != (len(c.LinkUp) == 0) {
		return errors.New("link_down and link_up must be configured together")
	}
	return nil
}

// Monitor is the background connectivity loop. Every check interval it
// probes reachability, runs the bounded reconnection procedure when the
// path is down, re-establishes the sink session when needed, and drains
// the backlog whenever a handle is live. It sleeps in short ticks so
// shutdown is observed promptly, and it never terminates the process: an
// exhausted reconnection budget just waits for the next cycle.
type Monitor struct {
	probe    ports.Probe
	resetter ports.LinkResetter
	sink     ports.Sink
	state    *ConnState
	spool    ports.Spool
	uploader *Uploader
	obs      ports.Observability
	cfg      MonitorConfig
}

func NewMonitor(probe ports.Probe, resetter ports.LinkResetter, sink ports.Sink,
	state *ConnState, spool ports.Spool, uploader *Uploader,
	obs ports.Observability, cfg MonitorConfig) *Monitor {
	cfg.ApplyDefaults()
	return &Monitor{
		probe:    probe,
		resetter: resetter,
		sink:     sink,
		state:    state,
		spool:    spool,
		uploader: uploader,
		obs:      obs,
		cfg:      cfg,
	}
}

// Run blocks until ctx is cancelled. Cancellation is cooperative: it is
// observed at each tick boundary, never mid-probe. Callers run an
// immediate Cycle before Run, so the first interval starts at entry
// rather than re-probing on the first tick.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	lastCheck := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(lastCheck) < m.cfg.CheckInterval {
				continue
			}
			lastCheck = now
			m.Cycle(ctx)
		}
	}
}

// Cycle runs one probe-and-recover pass. Exported so the runtime can run
// an immediate first pass at startup instead of waiting a full interval.
func (m *Monitor) Cycle(ctx context.Context) {
	if m.probe.Check(ctx) {
		m.obs.SetGauge("soilwire_link_up", 1)
		if m.state.Get() == nil {
			m.reauthenticate(ctx)
		}
		m.drain(ctx)
		return
	}

	m.obs.SetGauge("soilwire_link_up", 0)
	m.obs.IncCounter("soilwire_probe_failures_total", 1)
	m.obs.LogWarn("connectivity_lost")

	if !m.reconnect(ctx) {
		m.obs.LogWarn("reconnect_budget_exhausted",
			ports.Field{Key: "attempts", Value: m.cfg.ReconnectAttempts})
		return
	}

	m.obs.LogInfo("connectivity_restored")
	m.obs.SetGauge("soilwire_link_up", 1)
	m.reauthenticate(ctx)
	m.drain(ctx)
}

// reconnect runs the bounded recovery procedure: reset the link, wait,
// re-probe, up to the configured number of attempts.
func (m *Monitor) reconnect(ctx context.Context) bool {
	backoff := retry.WithMaxRetries(m.cfg.ReconnectAttempts, retry.NewConstant(m.cfg.ReconnectDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.resetter.Reset(ctx); err != nil {
			m.obs.LogWarn("link_reset_failed", ports.Field{Key: "err", Value: err.Error()})
		}
		if !m.probe.Check(ctx) {
			return retry.RetryableError(errUnreachable)
		}
		return nil
	})
	return err == nil
}

// reauthenticate establishes a fresh sink session and publishes it,
// closing whatever session it replaces.
func (m *Monitor) reauthenticate(ctx context.Context) {
	h, err := m.sink.Authenticate(ctx)
	if err != nil {
		m.obs.LogError("sink_authentication_failed", err,
			ports.Field{Key: "sink", Value: m.sink.Name()})
		return
	}
	m.obs.LogInfo("sink_session_established", ports.Field{Key: "sink", Value: m.sink.Name()})
	if old := m.state.Swap(h); old != nil {
		_ = old.Close()
	}
}

func (m *Monitor) drain(ctx context.Context) {
	h := m.state.Get()
	if h == nil {
		return
	}

	progressed := m.spool.Drain(func(r domain.Reading) bool {
		if !m.uploader.Attempt(ctx, h, r) {
			return false
		}
		m.obs.IncCounter("soilwire_readings_drained_total", 1)
		return true
	})

	m.obs.SetGauge("soilwire_spool_depth", float64(m.spool.Depth()))
	if progressed {
		m.obs.LogInfo("backlog_drained", ports.Field{Key: "remaining", Value: m.spool.Depth()})
	}
}
