package ports

import "github.com/soilwire/soilwire/internal/domain"

// Journal is the durable local log: an append-only record of every reading
// ever accepted, independent of delivery outcome.
type Journal interface {
	Append(r domain.Reading) error
}
