package ports

import (
	"context"

	"github.com/soilwire/soilwire/internal/domain"
)

// Handle is a live session with the remote sink. Append performs exactly
// one remote append with no internal retry.
type Handle interface {
	Append(ctx context.Context, r domain.Reading) error
	Close() error
}

// Sink knows how to establish a session with the remote delivery target.
type Sink interface {
	Authenticate(ctx context.Context) (Handle, error)
	Name() string
}
