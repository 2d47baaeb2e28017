// Package session provides conversation transcript storage keyed by session
// id. Sessions are created on first touch; the zero transcript is an empty
// slice, never an error.
package session

import (
	"sync"

	"github.com/hupe1980/caremesh/core"
)

// Store is the transcript storage boundary.
//
// Implementations must be safe for concurrent use across sessions; callers
// that need whole-conversation atomicity (read-append-read) serialize per
// session above this layer.
type Store interface {
	// Get returns the transcript for id in append order, creating an empty
	// session if none exists. The returned slice is a copy.
	Get(id string) []core.Message

	// Append adds messages to the end of the transcript for id.
	Append(id string, msgs ...core.Message)

	// Reset discards the transcript for id. Resetting an unknown session is
	// a no-op.
	Reset(id string)

	// InjectContext appends a system-role message carrying payload as
	// structured data. When resetFirst is set the transcript is cleared
	// first, so the context record is the first message.
	InjectContext(id string, payload map[string]any, resetFirst bool) error
}

// InMemoryStore is a map-backed Store. Transcripts are copied on read so
// callers can never alias internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]core.Message
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]core.Message)}
}

func (s *InMemoryStore) Get(id string) []core.Message {
	s.mu.RLock()
	msgs, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if _, exists := s.sessions[id]; !exists {
			s.sessions[id] = nil
		}
		s.mu.Unlock()
		return []core.Message{}
	}
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *InMemoryStore) Append(id string, msgs ...core.Message) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = append(s.sessions[id], msgs...)
}

func (s *InMemoryStore) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = nil
}

func (s *InMemoryStore) InjectContext(id string, payload map[string]any, resetFirst bool) error {
	msg := core.NewContextMessage(payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	if resetFirst {
		s.sessions[id] = nil
	}
	s.sessions[id] = append(s.sessions[id], msg)
	return nil
}
