package scan

import (
	"log/slog"
	"sync"
)

// Listener is called with every new state, outside the store lock. Listeners must not dispatch.
type Listener func(State)

// Store is the single owner of State. Writers dispatch events; readers take snapshots or subscribe.
type Store struct {
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	nextID    int
	listeners map[int]Listener
	// notify serializes listener calls so they observe versions in order
	notify sync.Mutex
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger, state: Initial(), listeners: make(map[int]Listener)}
}

// Dispatch applies e and reports whether it changed the state.
func (s *Store) Dispatch(e Event) bool {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	next, applied := Reduce(s.state, e)
	if !applied {
		s.mu.Unlock()
		s.logger.Debug("event ignored", "event", eventName(e), "run_id", s.state.RunID)
		return false
	}
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return true
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func eventName(e Event) string {
	switch e.(type) {
	case ImageAcquired:
		return "image_acquired"
	case ExtractionStarted:
		return "extraction_started"
	case ExtractionSucceeded:
		return "extraction_succeeded"
	case ExtractionFailed:
		return "extraction_failed"
	case NoticeRaised:
		return "notice_raised"
	case NoticeCleared:
		return "notice_cleared"
	default:
		return "unknown"
	}
}
