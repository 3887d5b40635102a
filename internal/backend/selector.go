// Package backend decides which backend serves the repositories and builds
// them accordingly.
package backend

import (
	"fmt"
	"sync"

	"questionbank/internal/metrics"
)

// Mode identifies a backend.
type Mode string

const (
	ModeRemoteStore Mode = "remote"
	ModeDirect      Mode = "direct"
)

// ParseMode accepts the config spellings of a mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRemoteStore, ModeDirect:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown backend mode %q", s)
}

// Selector holds the active backend mode. Repositories built before a mode
// change keep talking to the old backend, so callers must rebuild them.
type Selector struct {
	mu   sync.RWMutex
	mode Mode
}

// NewSelector starts in ModeDirect.
func NewSelector() *Selector {
	s := &Selector{}
	s.SetMode(ModeDirect)
	return s
}

func (s *Selector) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Selector) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()

	for _, candidate := range []Mode{ModeRemoteStore, ModeDirect} {
		v := 0.0
		if candidate == m {
			v = 1
		}
		metrics.SelectedBackend.WithLabelValues(string(candidate)).Set(v)
	}
}
