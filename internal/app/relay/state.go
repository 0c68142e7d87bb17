package relay

import (
	"sync"

	"github.com/soilwire/soilwire/internal/ports"
)

// ConnState holds the live remote-sink handle, or nil while offline. The
// handle is only ever replaced wholesale under the mutex, so readers see
// the fully-old or fully-new session, never a partially built one.
type ConnState struct {
	mu sync.RWMutex
	h  ports.Handle
}

func NewConnState() *ConnState { return &ConnState{} }

func (s *ConnState) Get() ports.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h
}

// Swap publishes a new handle and returns the previous one so the caller
// can close it.
func (s *ConnState) Swap(h ports.Handle) ports.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.h
	s.h = h
	return old
}
