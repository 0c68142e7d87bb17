package soilwire

import (
	"github.com/soilwire/soilwire/internal/app/config"
	"github.com/soilwire/soilwire/internal/app/relay"
	"github.com/soilwire/soilwire/internal/domain"
	"github.com/soilwire/soilwire/internal/ports"
)

// Aliases exposing the internal domain and ports to external callers
// without duplicating types.
type (
	Reading       = domain.Reading
	Collector     = ports.Collector
	Journal       = ports.Journal
	Spool         = ports.Spool
	Sink          = ports.Sink
	Handle        = ports.Handle
	Probe         = ports.Probe
	LinkResetter  = ports.LinkResetter
	Observability = ports.Observability
	Field         = ports.Field
	Config        = config.Config
	MonitorConfig = relay.MonitorConfig
)

// Header builds the CSV header row for a channel list.
func Header(channels []string) []string { return domain.Header(channels) }
