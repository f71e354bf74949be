// Package zookeeper provides a unison.Store implementation for ZooKeeper
// using the native one-shot watch API.
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/zoobzio/unison"
)

// Store adapts a ZooKeeper connection to the unison.Store interface. One
// Store serves any number of paths on the same connection.
type Store struct {
	conn *zk.Conn
	acl  []zk.ACL

	mu         sync.Mutex
	subs       []chan unison.ConnState
	hadSession bool
}

// Option configures a Store.
type Option func(*Store)

// WithACL sets the ACL applied to nodes this Store creates.
// Defaults to the open world ACL.
func WithACL(acl []zk.ACL) Option {
	return func(s *Store) {
		s.acl = acl
	}
}

// New creates a Store over an established connection. session must be the
// event channel returned by zk.Connect for that connection; its session
// events feed the connection-state stream. The caller retains ownership of
// the connection.
func New(conn *zk.Conn, session <-chan zk.Event, opts ...Option) *Store {
	s := &Store{
		conn: conn,
		acl:  zk.WorldACL(zk.PermAll),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.distribute(session)
	return s
}

// Create implements unison.Store. Missing parent nodes are created with
// empty values, the way recipe nodes conventionally are.
func (s *Store) Create(_ context.Context, path string, data []byte) error {
	if err := s.ensureParents(path); err != nil {
		return err
	}
	_, err := s.conn.Create(path, data, 0, s.acl)
	if errors.Is(err, zk.ErrNodeExists) {
		return unison.ErrNodeExists
	}
	if err != nil {
		return fmt.Errorf("zookeeper: create %s: %w", path, err)
	}
	return nil
}

func (s *Store) ensureParents(path string) error {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	prefix := ""
	for _, part := range parts[:len(parts)-1] {
		prefix += "/" + part
		_, err := s.conn.Create(prefix, nil, 0, s.acl)
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("zookeeper: create parent %s: %w", prefix, err)
		}
	}
	return nil
}

// Read implements unison.Store. GetW arms ZooKeeper's native one-shot
// watch; its firing is forwarded on the returned channel.
func (s *Store) Read(_ context.Context, path string) ([]byte, unison.Stat, <-chan struct{}, error) {
	data, stat, events, err := s.conn.GetW(path)
	if errors.Is(err, zk.ErrNoNode) {
		return nil, unison.Stat{}, nil, unison.ErrNoNode
	}
	if err != nil {
		return nil, unison.Stat{}, nil, fmt.Errorf("zookeeper: get %s: %w", path, err)
	}

	watch := make(chan struct{})
	go func() {
		<-events
		close(watch)
	}()

	return data, zkStat(stat), watch, nil
}

// Write implements unison.Store.
func (s *Store) Write(_ context.Context, path string, data []byte) error {
	_, err := s.conn.Set(path, data, -1)
	if errors.Is(err, zk.ErrNoNode) {
		return unison.ErrNoNode
	}
	if err != nil {
		return fmt.Errorf("zookeeper: set %s: %w", path, err)
	}
	return nil
}

// WriteIfVersion implements unison.Store.
func (s *Store) WriteIfVersion(_ context.Context, path string, data []byte, version int64) error {
	_, err := s.conn.Set(path, data, int32(version))
	switch {
	case errors.Is(err, zk.ErrBadVersion):
		return unison.ErrVersionConflict
	case errors.Is(err, zk.ErrNoNode):
		return unison.ErrNoNode
	case err != nil:
		return fmt.Errorf("zookeeper: conditional set %s: %w", path, err)
	}
	return nil
}

// ConnectionStates implements unison.Store.
func (s *Store) ConnectionStates() (<-chan unison.ConnState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan unison.ConnState, 16)
	s.subs = append(s.subs, ch)

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range s.subs {
			if c == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, stop
}

// distribute fans session events out to connection-state subscribers. It
// exits when the session channel closes, which happens when the owner
// closes the connection.
func (s *Store) distribute(session <-chan zk.Event) {
	for event := range session {
		if event.Type != zk.EventSession {
			continue
		}

		var state unison.ConnState
		switch event.State {
		case zk.StateHasSession:
			s.mu.Lock()
			if s.hadSession {
				state = unison.Reconnected
			} else {
				state = unison.Connected
				s.hadSession = true
			}
			s.mu.Unlock()
		case zk.StateDisconnected:
			state = unison.Suspended
		case zk.StateExpired:
			state = unison.Lost
		default:
			continue
		}

		s.mu.Lock()
		subs := make([]chan unison.ConnState, len(s.subs))
		copy(subs, s.subs)
		s.mu.Unlock()
		for _, c := range subs {
			select {
			case c <- state:
			default:
				// Slow subscriber; drop rather than stall the session stream.
			}
		}
	}
}

func zkStat(stat *zk.Stat) unison.Stat {
	return unison.Stat{
		Version:  int64(stat.Version),
		Modified: time.UnixMilli(stat.Mtime),
	}
}
