package unison

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// MemoryStore is an in-process Store. It exists for tests and for embedding
// a shared value inside a single process without an external coordination
// service; it honors the full Store contract, including version counters
// and one-shot watches.
type MemoryStore struct {
	clock clockz.Clock

	mu    sync.Mutex
	nodes map[string]*memNode
	conns []chan ConnState
}

type memNode struct {
	value    []byte
	version  int64
	modified time.Time
	watches  []chan struct{}
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets a custom clock for Modified stamps.
// Use this with clockz.FakeClock for deterministic tests.
func WithClock(clock clockz.Clock) MemoryOption {
	return func(s *MemoryStore) {
		s.clock = clock
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		clock: clockz.RealClock,
		nodes: make(map[string]*memNode),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[path]; ok {
		return ErrNodeExists
	}
	s.nodes[path] = &memNode{
		value:    copyBytes(data),
		modified: s.clock.Now(),
	}
	return nil
}

// Read implements Store. The returned watch channel is closed on the next
// write to path, whoever performs it.
func (s *MemoryStore) Read(_ context.Context, path string) ([]byte, Stat, <-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[path]
	if !ok {
		return nil, Stat{}, nil, ErrNoNode
	}

	watch := make(chan struct{})
	n.watches = append(n.watches, watch)

	return copyBytes(n.value), Stat{Version: n.version, Modified: n.modified}, watch, nil
}

// Write implements Store.
func (s *MemoryStore) Write(_ context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(path, data)
}

// WriteIfVersion implements Store.
func (s *MemoryStore) WriteIfVersion(_ context.Context, path string, data []byte, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[path]
	if !ok {
		return ErrNoNode
	}
	if n.version != version {
		return ErrVersionConflict
	}
	return s.write(path, data)
}

// write updates a node and fires its armed watches. Callers hold s.mu.
func (s *MemoryStore) write(path string, data []byte) error {
	n, ok := s.nodes[path]
	if !ok {
		return ErrNoNode
	}

	n.value = copyBytes(data)
	n.version++
	n.modified = s.clock.Now()

	for _, w := range n.watches {
		close(w)
	}
	n.watches = nil
	return nil
}

// ConnectionStates implements Store. Transitions are injected with
// SetConnState.
func (s *MemoryStore) ConnectionStates() (<-chan ConnState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan ConnState, 16)
	s.conns = append(s.conns, ch)

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range s.conns {
			if c == ch {
				s.conns = append(s.conns[:i], s.conns[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, stop
}

// SetConnState broadcasts a connection-state transition to every
// subscriber. Tests use it to exercise the relay path.
func (s *MemoryStore) SetConnState(state ConnState) {
	s.mu.Lock()
	subs := make([]chan ConnState, len(s.conns))
	copy(subs, s.conns)
	s.mu.Unlock()

	for _, c := range subs {
		select {
		case c <- state:
		default:
			// Slow subscriber; drop rather than stall the store.
		}
	}
}

// Version returns the current version of path, or -1 if it does not exist.
// It exists so tests can assert against the authoritative counter.
func (s *MemoryStore) Version(path string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[path]
	if !ok {
		return -1
	}
	return n.version
}
