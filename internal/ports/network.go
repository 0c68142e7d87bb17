package ports

import "context"

// Probe answers whether the network path to the outside world is up.
// Check must bound its own latency; no data is exchanged.
type Probe interface {
	Check(ctx context.Context) bool
}

// LinkResetter is the environment-specific recovery action taken when the
// probe fails, e.g. toggling a network interface. Implementations are
// pluggable; the default does nothing.
type LinkResetter interface {
	Reset(ctx context.Context) error
}
