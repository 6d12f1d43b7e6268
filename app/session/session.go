package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type exchange struct {
	user      string
	assistant string
}

// Store keeps a bounded rolling window of exchanges per conversation.
// Appends for the same session are serialized; sessions are independent.
type Store struct {
	mu       sync.RWMutex
	window   int // exchange pairs kept per session
	sessions map[string][]exchange
}

func NewStore(historyWindow int) *Store {
	if historyWindow <= 0 {
		historyWindow = 2
	}
	return &Store{
		window:   historyWindow,
		sessions: make(map[string][]exchange),
	}
}

// Create returns a new unique session id.
func (s *Store) Create() string {
	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = nil
	s.mu.Unlock()
	return id
}

// AddExchange appends one user/assistant pair, evicting the oldest pairs
// beyond the window (strict FIFO by pair count).
func (s *Store) AddExchange(id, userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[id], exchange{user: userText, assistant: assistantText})
	if len(history) > s.window {
		history = history[len(history)-s.window:]
	}
	s.sessions[id] = history
}

// History renders the bounded window as alternating "User:"/"Assistant:"
// lines in chronological order, or "" for an unknown or empty session.
func (s *Store) History(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[id]
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	for i, ex := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "User: %s\nAssistant: %s", ex.user, ex.assistant)
	}
	return b.String()
}
