// Package etcd provides a unison.Store implementation for etcd using
// transactions for conditional writes and the native Watch API.
package etcd

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/connectivity"

	"github.com/zoobzio/unison"
)

// Store adapts an etcd client to the unison.Store interface. A key's
// ModRevision serves as its version: it is assigned by etcd on every write
// and increases monotonically across the cluster.
type Store struct {
	client *clientv3.Client
}

// Option configures a Store.
type Option func(*Store)

// New creates a Store over an established client. The caller retains
// ownership of the client.
func New(client *clientv3.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements unison.Store. The put is guarded on the key having
// never been written, so concurrent seeders race safely.
func (s *Store) Create(ctx context.Context, path string, data []byte) error {
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.Version(path), "=", 0)).
		Then(clientv3.OpPut(path, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("etcd: create %s: %w", path, err)
	}
	if !resp.Succeeded {
		return unison.ErrNodeExists
	}
	return nil
}

// Read implements unison.Store. The one-shot watch is armed at the revision
// just past the read, so no change between read and watch is missed.
func (s *Store) Read(ctx context.Context, path string) ([]byte, unison.Stat, <-chan struct{}, error) {
	resp, err := s.client.Get(ctx, path)
	if err != nil {
		return nil, unison.Stat{}, nil, fmt.Errorf("etcd: get %s: %w", path, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, unison.Stat{}, nil, unison.ErrNoNode
	}
	kv := resp.Kvs[0]

	watch := make(chan struct{})
	wctx, cancel := context.WithCancel(context.Background())
	wch := s.client.Watch(wctx, path, clientv3.WithRev(kv.ModRevision+1))
	go func() {
		defer cancel()
		defer close(watch)
		for wresp := range wch {
			if len(wresp.Events) > 0 || wresp.Err() != nil {
				return
			}
		}
	}()

	return kv.Value, unison.Stat{Version: kv.ModRevision}, watch, nil
}

// Write implements unison.Store.
func (s *Store) Write(ctx context.Context, path string, data []byte) error {
	if _, err := s.client.Put(ctx, path, string(data)); err != nil {
		return fmt.Errorf("etcd: put %s: %w", path, err)
	}
	return nil
}

// WriteIfVersion implements unison.Store.
func (s *Store) WriteIfVersion(ctx context.Context, path string, data []byte, version int64) error {
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(path), "=", version)).
		Then(clientv3.OpPut(path, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("etcd: conditional put %s: %w", path, err)
	}
	if !resp.Succeeded {
		return unison.ErrVersionConflict
	}
	return nil
}

// ConnectionStates implements unison.Store. Transitions are derived from
// the gRPC connectivity state of the client's active connection.
func (s *Store) ConnectionStates() (<-chan unison.ConnState, func()) {
	ch := make(chan unison.ConnState, 16)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer close(ch)

		conn := s.client.ActiveConnection()
		hadReady := false
		last := conn.GetState()

		for {
			var state unison.ConnState
			emit := false
			switch last {
			case connectivity.Ready:
				if hadReady {
					state = unison.Reconnected
				} else {
					state = unison.Connected
					hadReady = true
				}
				emit = true
			case connectivity.TransientFailure:
				state = unison.Suspended
				emit = true
			case connectivity.Shutdown:
				state = unison.Lost
				emit = true
			}

			if emit {
				select {
				case ch <- state:
				case <-ctx.Done():
					return
				}
			}
			if last == connectivity.Shutdown {
				return
			}

			if !conn.WaitForStateChange(ctx, last) {
				return
			}
			last = conn.GetState()
		}
	}()

	return ch, cancel
}
