package spool

import (
	"sync"

	"github.com/soilwire/soilwire/internal/adapters/csvjournal"
	"github.com/soilwire/soilwire/internal/domain"
	"github.com/soilwire/soilwire/internal/ports"
)

// Spool is the pending-delivery store: an unbounded in-memory FIFO of
// readings awaiting remote delivery, mirrored by an append-only backup CSV
// that survives restarts. One mutex spans every enqueue (durable append +
// volatile push) and every whole drain pass, so the two tiers can never be
// observed half-updated.
type Spool struct {
	mu      sync.Mutex
	pending []domain.Reading
	backing *csvjournal.Journal
	obs     ports.Observability
}

// New opens or creates the backup log at path, applying the same header
// migration rules as the primary journal.
func New(path string, header []string, obs ports.Observability) (*Spool, error) {
	backing, err := csvjournal.New(path, header)
	if err != nil {
		return nil, err
	}
	return &Spool{backing: backing, obs: obs}, nil
}

// Enqueue records a reading for later delivery. The durable append happens
// first; even if it fails the reading is kept in the volatile tier so it is
// never silently dropped while the process lives.
func (s *Spool) Enqueue(r domain.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.backing.Append(r)
	s.pending = append(s.pending, r)
	if err != nil {
		s.obs.LogError("spool_durable_append_failed", err,
			ports.Field{Key: "path", Value: s.backing.Path()})
	}
	return err
}

// PersistOnly appends to the durable tier without queueing in memory. The
// coordinator uses it as the last-resort path when the primary journal
// fails; the row is picked up by a later durable-tier drain.
func (s *Spool) PersistOnly(r domain.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backing.Append(r)
}

// Drain attempts delivery for every queued reading in strict FIFO order:
// the volatile tier first, then the durable backlog in file order. The
// first failed delivery stops the pass, leaving everything not yet
// attempted queued. A still-broken connection costs one failed attempt,
// and a later reading is never delivered ahead of an earlier one.
func (s *Spool) Drain(deliver ports.DeliverFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	delivered := 0

	for len(s.pending) > 0 {
		if !deliver(s.pending[0]) {
			return delivered > 0
		}
		s.pending = s.pending[1:]
		delivered++
	}

	rows, err := s.backing.ReadAll()
	if err != nil {
		s.obs.LogError("spool_backlog_read_failed", err,
			ports.Field{Key: "path", Value: s.backing.Path()})
		return delivered > 0
	}
	if len(rows) == 0 {
		return delivered > 0
	}

	// Truncate to header-only before delivering; anything that fails from
	// here on is re-appended, so a crash mid-drain loses nothing that was
	// not already handed to the sink.
	if err := s.backing.Reset(); err != nil {
		s.obs.LogError("spool_backlog_reset_failed", err,
			ports.Field{Key: "path", Value: s.backing.Path()})
		return delivered > 0
	}

	for i, r := range rows {
		if deliver(r) {
			delivered++
			continue
		}
		for _, rest := range rows[i:] {
			if err := s.backing.Append(rest); err != nil {
				s.obs.LogCritical("spool_requeue_failed", err,
					ports.Field{Key: "timestamp", Value: rest.SourceTimestamp})
			}
		}
		s.obs.LogWarn("spool_drain_stopped",
			ports.Field{Key: "requeued", Value: len(rows) - i},
			ports.Field{Key: "failed_timestamp", Value: r.SourceTimestamp})
		return delivered > 0
	}

	return delivered > 0
}

// Depth reports the volatile-tier length.
func (s *Spool) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

var _ ports.Spool = (*Spool)(nil)
