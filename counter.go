package unison

import (
	"context"
	"encoding/binary"
	"sync"
)

// CountListener receives change notifications from a SharedCount. The
// fault-isolation rules match Listener: CountChanged faults are isolated,
// ConnectionStateChanged faults are not.
type CountListener interface {
	CountChanged(sc *SharedCount, newCount int64) error
	ConnectionStateChanged(sc *SharedCount, state ConnState) error
}

// SharedCount manages a shared int64 on top of the same protocol as
// SharedValue: the count is stored as eight big-endian bytes and every
// client watching the path converges on the latest value.
type SharedCount struct {
	sv *SharedValue

	mu       sync.Mutex
	adapters map[CountListener]*countAdapter
}

// NewCount creates a SharedCount stored at path, seeded with seed if the
// path does not yet exist.
func NewCount(store Store, path string, seed int64, opts ...Option) *SharedCount {
	sc := &SharedCount{
		adapters: make(map[CountListener]*countAdapter),
	}
	sc.sv = New(store, path, encodeCount(seed), opts...)
	return sc
}

// Start starts the underlying shared value. See SharedValue.Start.
func (sc *SharedCount) Start(ctx context.Context) error {
	return sc.sv.Start(ctx)
}

// Close closes the underlying shared value. See SharedValue.Close.
func (sc *SharedCount) Close() error {
	return sc.sv.Close()
}

// Count returns the last-known count.
func (sc *SharedCount) Count() int64 {
	return decodeCount(sc.sv.Value())
}

// Version returns the locally observed version. See SharedValue.Version.
func (sc *SharedCount) Version() int64 {
	return sc.sv.Version()
}

// SetCount overwrites the count irrespective of its current version.
func (sc *SharedCount) SetCount(ctx context.Context, newCount int64) error {
	return sc.sv.SetValue(ctx, encodeCount(newCount))
}

// TrySetCount overwrites the count only if it has not changed since this
// client last observed it. On conflict the winning count is pulled into the
// cache and false is returned; call Count to observe it.
func (sc *SharedCount) TrySetCount(ctx context.Context, newCount int64) (bool, error) {
	return sc.sv.TrySetValue(ctx, encodeCount(newCount))
}

// Subscribe registers a listener.
func (sc *SharedCount) Subscribe(l CountListener) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if _, ok := sc.adapters[l]; ok {
		return
	}
	a := &countAdapter{sc: sc, l: l}
	sc.adapters[l] = a
	sc.sv.Subscribe(a)
}

// Unsubscribe removes a previously registered listener.
func (sc *SharedCount) Unsubscribe(l CountListener) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	a, ok := sc.adapters[l]
	if !ok {
		return
	}
	delete(sc.adapters, l)
	sc.sv.Unsubscribe(a)
}

// countAdapter presents a CountListener as a Listener on the underlying
// shared value.
type countAdapter struct {
	sc *SharedCount
	l  CountListener
}

func (a *countAdapter) ValueChanged(_ *SharedValue, newValue []byte) error {
	return a.l.CountChanged(a.sc, decodeCount(newValue))
}

func (a *countAdapter) ConnectionStateChanged(_ *SharedValue, state ConnState) error {
	return a.l.ConnectionStateChanged(a.sc, state)
}

func encodeCount(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

// decodeCount tolerates malformed payloads by reporting zero; the store is
// authoritative and a well-formed write repairs the view.
func decodeCount(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
