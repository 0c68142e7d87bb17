package soilwire

import (
	base "github.com/soilwire/soilwire/pkg/soilwire"
)

// Type aliases so consumers can import github.com/soilwire/soilwire directly.
type (
	Config             = base.Config
	MonitorConfig      = base.MonitorConfig
	Flow               = base.Flow
	FlowOption         = base.FlowOption
	StreamInOption     = base.StreamInOption
	StreamOutOption    = base.StreamOutOption
	RelayRuntime       = base.RelayRuntime
	RelayRuntimeOption = base.RelayRuntimeOption
	Reading            = base.Reading
	AppendFunc         = base.AppendFunc
	Collector          = base.Collector
	Journal            = base.Journal
	Spool              = base.Spool
	Sink               = base.Sink
	Handle             = base.Handle
	Probe              = base.Probe
	LinkResetter       = base.LinkResetter
	Observability      = base.Observability
	Publisher          = base.Publisher
	PublisherConfig    = base.PublisherConfig
	PublisherOption    = base.PublisherOption
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInJournal(j Journal) StreamInOption {
	return base.StreamInJournal(j)
}

func StreamInSpool(s Spool) StreamInOption {
	return base.StreamInSpool(s)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutProbe(p Probe) StreamOutOption {
	return base.StreamOutProbe(p)
}

func StreamOutLinkResetter(r LinkResetter) StreamOutOption {
	return base.StreamOutLinkResetter(r)
}

func StreamOutCallback(name string, fn AppendFunc) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Relay runtime and options.
func NewRelayRuntime(cfg *Config, opts ...RelayRuntimeOption) (*RelayRuntime, error) {
	return base.NewRelayRuntime(cfg, opts...)
}

func WithCollector(col Collector) RelayRuntimeOption {
	return base.WithCollector(col)
}

func WithJournal(j Journal) RelayRuntimeOption {
	return base.WithJournal(j)
}

func WithSpool(s Spool) RelayRuntimeOption {
	return base.WithSpool(s)
}

func WithSink(s Sink) RelayRuntimeOption {
	return base.WithSink(s)
}

func WithProbe(p Probe) RelayRuntimeOption {
	return base.WithProbe(p)
}

func WithLinkResetter(r LinkResetter) RelayRuntimeOption {
	return base.WithLinkResetter(r)
}

func WithObservability(obs Observability) RelayRuntimeOption {
	return base.WithObservability(obs)
}

// Sink adapters.
func NewCallbackSink(name string, fn AppendFunc) Sink {
	return base.NewCallbackSink(name, fn)
}

// Embedded publisher.
func NewPublisher(cfg *PublisherConfig, snk Sink, opts ...PublisherOption) (*Publisher, error) {
	return base.NewPublisher(cfg, snk, opts...)
}
