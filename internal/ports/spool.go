package ports

import "github.com/soilwire/soilwire/internal/domain"

// DeliverFunc attempts remote delivery of one reading and reports success.
type DeliverFunc func(domain.Reading) bool

// Spool is the pending-delivery store: a volatile FIFO mirrored by a
// durable on-disk backlog that survives restarts.
type Spool interface {
	// Enqueue appends to the durable tier and pushes the volatile tier as
	// one mutually exclusive step. It never blocks on capacity.
	Enqueue(r domain.Reading) error
	// PersistOnly appends to the durable tier without touching the
	// volatile tier; last-resort persistence when the journal fails.
	PersistOnly(r domain.Reading) error
	// Drain attempts delivery for everything queued, oldest first,
	// volatile tier then durable backlog, stopping at the first failure.
	// It reports whether at least one reading was delivered.
	Drain(deliver DeliverFunc) bool
	// Depth is the current volatile-tier length.
	Depth() int
}
