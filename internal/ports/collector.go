package ports

import "github.com/soilwire/soilwire/internal/domain"

// Collector produces parsed readings from an external sensor stream.
// Start returns after launching the stream; the implementation closes out
// when its reopen budget is exhausted or Stop is called.
type Collector interface {
	Start(out chan<- domain.Reading) error
	Stop() error
}
