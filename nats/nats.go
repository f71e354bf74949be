// Package nats provides a unison.Store implementation for NATS JetStream
// key-value buckets using revision-gated updates and the native Watch API.
package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/zoobzio/unison"
)

// Store adapts a JetStream key-value bucket to the unison.Store interface.
// A key's revision serves as its version.
type Store struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// Option configures a Store.
type Option func(*Store)

// New creates a Store over an established connection and bucket. The
// connection feeds the connection-state stream; the caller retains
// ownership of both.
func New(nc *nats.Conn, kv jetstream.KeyValue, opts ...Option) *Store {
	s := &Store{nc: nc, kv: kv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements unison.Store.
func (s *Store) Create(ctx context.Context, path string, data []byte) error {
	_, err := s.kv.Create(ctx, path, data)
	if errors.Is(err, jetstream.ErrKeyExists) {
		return unison.ErrNodeExists
	}
	if err != nil {
		return fmt.Errorf("nats: create %s: %w", path, err)
	}
	return nil
}

// Read implements unison.Store. The one-shot watch observes only updates
// arriving after the read.
func (s *Store) Read(ctx context.Context, path string) ([]byte, unison.Stat, <-chan struct{}, error) {
	entry, err := s.kv.Get(ctx, path)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, unison.Stat{}, nil, unison.ErrNoNode
	}
	if err != nil {
		return nil, unison.Stat{}, nil, fmt.Errorf("nats: get %s: %w", path, err)
	}

	wctx, cancel := context.WithCancel(context.Background())
	watcher, err := s.kv.Watch(wctx, path, jetstream.UpdatesOnly())
	if err != nil {
		cancel()
		return nil, unison.Stat{}, nil, fmt.Errorf("nats: watch %s: %w", path, err)
	}

	watch := make(chan struct{})
	go func() {
		defer cancel()
		defer close(watch)
		//nolint:errcheck // Stop only fails when the subscription is already gone.
		defer watcher.Stop()

		for update := range watcher.Updates() {
			// A nil entry marks the end of historical replay, not a change.
			if update != nil {
				return
			}
		}
	}()

	return entry.Value(), unison.Stat{
		Version:  int64(entry.Revision()),
		Modified: entry.Created(),
	}, watch, nil
}

// Write implements unison.Store.
func (s *Store) Write(ctx context.Context, path string, data []byte) error {
	if _, err := s.kv.Put(ctx, path, data); err != nil {
		return fmt.Errorf("nats: put %s: %w", path, err)
	}
	return nil
}

// WriteIfVersion implements unison.Store.
func (s *Store) WriteIfVersion(ctx context.Context, path string, data []byte, version int64) error {
	_, err := s.kv.Update(ctx, path, data, uint64(version))
	if err == nil {
		return nil
	}
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
		return unison.ErrVersionConflict
	}
	return fmt.Errorf("nats: conditional put %s: %w", path, err)
}

// ConnectionStates implements unison.Store. Transitions are derived from
// the connection's status stream. The underlying status registration lives
// until the connection closes; stop only detaches this subscriber.
func (s *Store) ConnectionStates() (<-chan unison.ConnState, func()) {
	statuses := s.nc.StatusChanged(nats.CONNECTED, nats.RECONNECTING, nats.DISCONNECTED, nats.CLOSED)

	ch := make(chan unison.ConnState, 16)
	done := make(chan struct{})

	go func() {
		defer close(ch)
		hadConnection := s.nc.IsConnected()

		for {
			select {
			case <-done:
				return
			case status, ok := <-statuses:
				if !ok {
					return
				}

				var state unison.ConnState
				switch status {
				case nats.CONNECTED:
					if hadConnection {
						state = unison.Reconnected
					} else {
						state = unison.Connected
						hadConnection = true
					}
				case nats.RECONNECTING, nats.DISCONNECTED:
					state = unison.Suspended
				case nats.CLOSED:
					state = unison.Lost
				default:
					continue
				}

				select {
				case ch <- state:
				case <-done:
					return
				}
			}
		}
	}()

	return ch, func() { close(done) }
}
