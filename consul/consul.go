// Package consul provides a unison.Store implementation for Consul KV
// using check-and-set writes and blocking queries.
package consul

import (
	"context"
	"fmt"

	"github.com/hashicorp/consul/api"

	"github.com/zoobzio/unison"
)

// Store adapts a Consul client to the unison.Store interface. A key's
// ModifyIndex serves as its version.
//
// Consul's HTTP API exposes no session-state push, so the connection-state
// stream never emits; relays over this Store simply stay quiet.
type Store struct {
	client *api.Client
}

// Option configures a Store.
type Option func(*Store)

// New creates a Store over an established client. The caller retains
// ownership of the client.
func New(client *api.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements unison.Store. A check-and-set at index zero succeeds
// only if the key has never been written.
func (s *Store) Create(ctx context.Context, path string, data []byte) error {
	ok, _, err := s.client.KV().CAS(&api.KVPair{
		Key:         path,
		Value:       data,
		ModifyIndex: 0,
	}, (&api.WriteOptions{}).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("consul: create %s: %w", path, err)
	}
	if !ok {
		return unison.ErrNodeExists
	}
	return nil
}

// Read implements unison.Store. The one-shot watch is a blocking query
// parked at the index observed by the read.
func (s *Store) Read(ctx context.Context, path string) ([]byte, unison.Stat, <-chan struct{}, error) {
	pair, meta, err := s.client.KV().Get(path, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, unison.Stat{}, nil, fmt.Errorf("consul: get %s: %w", path, err)
	}
	if pair == nil {
		return nil, unison.Stat{}, nil, unison.ErrNoNode
	}

	watch := make(chan struct{})
	wctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		defer close(watch)

		index := meta.LastIndex
		for {
			_, wmeta, err := s.client.KV().Get(path, (&api.QueryOptions{
				WaitIndex: index,
			}).WithContext(wctx))
			if err != nil {
				return
			}
			if wmeta.LastIndex != index {
				return
			}
			// Blocking query timed out with no change; park again.
		}
	}()

	return pair.Value, unison.Stat{Version: int64(pair.ModifyIndex)}, watch, nil
}

// Write implements unison.Store.
func (s *Store) Write(ctx context.Context, path string, data []byte) error {
	_, err := s.client.KV().Put(&api.KVPair{
		Key:   path,
		Value: data,
	}, (&api.WriteOptions{}).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("consul: put %s: %w", path, err)
	}
	return nil
}

// WriteIfVersion implements unison.Store.
func (s *Store) WriteIfVersion(ctx context.Context, path string, data []byte, version int64) error {
	ok, _, err := s.client.KV().CAS(&api.KVPair{
		Key:         path,
		Value:       data,
		ModifyIndex: uint64(version),
	}, (&api.WriteOptions{}).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("consul: conditional put %s: %w", path, err)
	}
	if !ok {
		return unison.ErrVersionConflict
	}
	return nil
}

// ConnectionStates implements unison.Store. The channel never emits.
func (s *Store) ConnectionStates() (<-chan unison.ConnState, func()) {
	ch := make(chan unison.ConnState)
	return ch, func() { close(ch) }
}
