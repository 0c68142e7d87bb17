package relay

import (
	"context"
	"time"

	"github.com/soilwire/soilwire/internal/domain"
	"github.com/soilwire/soilwire/internal/ports"
)

// Uploader performs single remote appends. It never retries: a failed or
// impossible append routes the reading into the spool and the drain path
// owns all redelivery.
type Uploader struct {
	spool ports.Spool
	obs   ports.Observability
	pause time.Duration
}

func NewUploader(spool ports.Spool, obs ports.Observability, pause time.Duration) *Uploader {
	return &Uploader{spool: spool, obs: obs, pause: pause}
}

// Upload attempts delivery of one reading. An absent handle is the normal
// offline path, not an error: the reading is spooled and false is
// returned. On success the configured post-append pause is observed to
// respect the sink's rate limit.
func (u *Uploader) Upload(ctx context.Context, h ports.Handle, r domain.Reading) bool {
	if h == nil {
		u.enqueue(r)
		return false
	}
	if !u.Attempt(ctx, h, r) {
		u.enqueue(r)
		return false
	}
	return true
}

// Attempt performs the bare append without the spool fallback. Drain
// passes use it directly: the spool already owns the reading and re-queues
// on failure itself.
func (u *Uploader) Attempt(ctx context.Context, h ports.Handle, r domain.Reading) bool {
	start := time.Now()
	if err := h.Append(ctx, r); err != nil {
		u.obs.LogWarn("upload_failed",
			ports.Field{Key: "timestamp", Value: r.SourceTimestamp},
			ports.Field{Key: "err", Value: err.Error()})
		return false
	}
	u.obs.ObserveLatency("soilwire_upload_latency_seconds", time.Since(start).Seconds())
	u.obs.IncCounter("soilwire_readings_uploaded_total", 1)

	if u.pause > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(u.pause):
		}
	}
	return true
}

func (u *Uploader) enqueue(r domain.Reading) {
	// A durable append failure is logged by the spool itself; the reading
	// stays in the volatile tier either way.
	_ = u.spool.Enqueue(r)
	u.obs.IncCounter("soilwire_readings_spooled_total", 1)
}
