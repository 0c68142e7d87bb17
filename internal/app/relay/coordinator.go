package relay

import (
	"context"

	"github.com/soilwire/soilwire/internal/domain"
	"github.com/soilwire/soilwire/internal/ports"
)

// Coordinator drives the per-reading relay path: journal first, always,
// then deliver-or-spool depending on the current connection state. It
// never waits for connectivity.
type Coordinator struct {
	journal  ports.Journal
	spool    ports.Spool
	uploader *Uploader
	state    *ConnState
	obs      ports.Observability
}

func NewCoordinator(journal ports.Journal, spool ports.Spool, uploader *Uploader, state *ConnState, obs ports.Observability) *Coordinator {
	return &Coordinator{
		journal:  journal,
		spool:    spool,
		uploader: uploader,
		state:    state,
		obs:      obs,
	}
}

// HandleReading persists and relays one reading. The journal append is
// non-negotiable and happens before any delivery attempt; if it fails the
// reading is preserved through the spool's durable tier instead. Losing a
// reading requires both durable paths to fail, and that is the one fault
// this system reports loudly.
func (c *Coordinator) HandleReading(ctx context.Context, r domain.Reading) {
	c.obs.IncCounter("soilwire_readings_ingested_total", 1)

	if err := c.journal.Append(r); err != nil {
		c.obs.LogError("journal_append_failed", err,
			ports.Field{Key: "timestamp", Value: r.SourceTimestamp})
		c.obs.IncCounter("soilwire_journal_errors_total", 1)

		if err := c.spool.PersistOnly(r); err != nil {
			c.obs.LogCritical("reading_lost", err,
				ports.Field{Key: "timestamp", Value: r.SourceTimestamp})
			c.obs.IncCounter("soilwire_readings_lost_total", 1)
		}
	}

	// Absent handle is the fast offline branch; Upload spools for us.
	c.uploader.Upload(ctx, c.state.Get(), r)
	c.obs.SetGauge("soilwire_spool_depth", float64(c.spool.Depth()))
}
