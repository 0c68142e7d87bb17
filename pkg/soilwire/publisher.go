package soilwire

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soilwire/soilwire/internal/adapters/csvjournal"
	"github.com/soilwire/soilwire/internal/adapters/netprobe"
	"github.com/soilwire/soilwire/internal/adapters/observability"
	"github.com/soilwire/soilwire/internal/adapters/spool"
	"github.com/soilwire/soilwire/internal/app/relay"
	"github.com/soilwire/soilwire/internal/domain"
)

// PublisherConfig configures the journal+spool relay used by embedding
// callers that produce readings themselves instead of running a collector.
type PublisherConfig struct {
	Channels    []string
	JournalPath string
	SpoolPath   string
	AppendPause time.Duration
	Monitor     MonitorConfig
}

func (c *PublisherConfig) applyDefaults() {
	if len(c.Channels) == 0 {
		c.Channels = []string{"value"}
	}
	if c.JournalPath == "" {
		c.JournalPath = "./data/readings.csv"
	}
	if c.SpoolPath == "" {
		c.SpoolPath = "./data/unsent.csv"
	}
	c.Monitor.ApplyDefaults()
}

func (c *PublisherConfig) validate() error {
	if c.JournalPath == c.SpoolPath {
		return fmt.Errorf("journal and spool paths must differ")
	}
	return c.Monitor.Validate()
}

// PublisherOption customizes a Publisher's probe or observability backend.
type PublisherOption func(*publisherOverrides)

type publisherOverrides struct {
	probe         Probe
	resetter      LinkResetter
	observability Observability
}

// WithPublisherProbe overrides the TCP reachability probe.
func WithPublisherProbe(p Probe) PublisherOption {
	return func(o *publisherOverrides) { o.probe = p }
}

// WithPublisherLinkResetter installs a link recovery strategy.
func WithPublisherLinkResetter(r LinkResetter) PublisherOption {
	return func(o *publisherOverrides) { o.resetter = r }
}

// WithPublisherObservability plugs in a custom observability backend.
func WithPublisherObservability(obs Observability) PublisherOption {
	return func(o *publisherOverrides) { o.observability = obs }
}

// Publisher exposes the durable relay to external producers: Publish
// journals the reading and delivers or spools it, while a background
// monitor drains the backlog as connectivity allows.
type Publisher struct {
	coordinator *relay.Coordinator
	state       *relay.ConnState

	cancel   context.CancelFunc
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewPublisher wires journal + spool + uploader + monitor around the given
// sink and starts the monitor.
func NewPublisher(cfg *PublisherConfig, snk Sink, opts ...PublisherOption) (*Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if snk == nil {
		return nil, fmt.Errorf("sink is required")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var overrides publisherOverrides
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
	journal, err := csvjournal.New(cfg.JournalPath, header)
	if err != nil {
		return nil, err
	}
	pending, err := spool.New(cfg.SpoolPath, header, obs)
	if err != nil {
		return nil, err
	}

	probe := overrides.probe
	if probe == nil {
		probe = netprobe.TCPProbe{Addr: cfg.Monitor.ProbeAddr, Timeout: cfg.Monitor.ProbeTimeout}
	}
	resetter := overrides.resetter
	if resetter == nil {
		resetter = netprobe.NopResetter{}
	}

	state := relay.NewConnState()
	uploader := relay.NewUploader(pending, obs, cfg.AppendPause)
	monitor := relay.NewMonitor(probe, resetter, snk, state, pending, uploader, obs, cfg.Monitor)

	ctx, cancel := context.WithCancel(context.Background())
	pub := &Publisher{
		coordinator: relay.NewCoordinator(journal, pending, uploader, state, obs),
		state:       state,
		cancel:      cancel,
		doneCh:      make(chan struct{}),
	}

	go func() {
		defer close(pub.doneCh)
		monitor.Cycle(ctx)
		monitor.Run(ctx)
	}()

	return pub, nil
}

// Publish journals the reading and either delivers it immediately or
// spools it for the next drain. It never blocks on connectivity.
func (p *Publisher) Publish(ctx context.Context, r Reading) {
	p.coordinator.HandleReading(ctx, r)
}

// Close stops the monitor and closes any live sink session, respecting
// the provided context.
func (p *Publisher) Close(ctx context.Context) error {
	p.stopOnce.Do(p.cancel)

	select {
	case <-p.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	if old := p.state.Swap(nil); old != nil {
		return old.Close()
	}
	return nil
}
