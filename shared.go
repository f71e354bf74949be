package unison

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/zoobzio/capitan"
)

// SharedValue manages a single mutable byte value replicated through a
// backing coordination store. Every client started against the same path
// holds an up-to-date copy, within the store's normal consistency
// guarantees: remote changes arrive through one-shot watches and replace
// the local cache, local writes go straight to the store.
//
// A SharedValue must be started before use and closed when finished:
//
//	sv := unison.New(store, "/flags/rollout", []byte{0})
//	if err := sv.Start(ctx); err != nil {
//	    return err
//	}
//	defer sv.Close()
//
// All methods are safe for concurrent use.
type SharedValue struct {
	store Store
	path  string
	seed  []byte
	log   logrus.FieldLogger

	state   atomic.Int32
	current atomic.Pointer[cached]

	// refreshMu serializes readValue so a conflict-triggered refresh and a
	// watch-triggered refresh can never interleave and publish a torn
	// (value, version) pair.
	refreshMu sync.Mutex

	// watchGen identifies the most recently armed watch. A conflict-triggered
	// refresh re-arms while the previous watch is still outstanding; firings
	// from superseded watches are dropped so one remote change yields one
	// refresh and one notification. ZooKeeper gets this for free by deduping
	// the same watcher object per path; the counter is the equivalent here.
	watchGen atomic.Int64

	listeners listeners

	mu        sync.Mutex
	stopRelay func()
}

// cached pairs a value with the stat observed alongside it. It is replaced
// as a whole unit and never mutated in place.
type cached struct {
	value []byte
	stat  Stat
}

// New creates a SharedValue stored at path. If the path does not exist when
// Start is called, it is created with seed as its initial value. Until the
// first refresh completes, readers see a copy of seed at version zero.
func New(store Store, path string, seed []byte, opts ...Option) *SharedValue {
	cfg := &config{
		log: logrus.StandardLogger().WithField("component", "unison"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	sv := &SharedValue{
		store: store,
		path:  path,
		seed:  copyBytes(seed),
		log:   cfg.log.WithField("path", path),
	}
	sv.state.Store(int32(StateLatent))
	sv.current.Store(&cached{value: copyBytes(seed)})
	return sv
}

// State returns the current lifecycle state.
func (sv *SharedValue) State() State {
	return State(sv.state.Load())
}

// Value returns a copy of the last-known value. It never blocks on the
// refresh lock; the returned slice is owned by the caller.
func (sv *SharedValue) Value() []byte {
	return copyBytes(sv.current.Load().value)
}

// Version returns the locally observed version of the value. The
// authoritative counter lives in the backing store; the local view only
// ever advances.
func (sv *SharedValue) Version() int64 {
	return sv.current.Load().stat.Version
}

// Subscribe registers a listener. Listeners are notified in registration
// order; registering the same listener twice has no additional effect.
func (sv *SharedValue) Subscribe(l Listener) {
	sv.listeners.add(l)
}

// Unsubscribe removes a previously registered listener. Removing a
// listener that was never registered is a no-op.
func (sv *SharedValue) Unsubscribe(l Listener) {
	sv.listeners.remove(l)
}

// Start transitions the SharedValue into service. It subscribes to the
// store's connection-state stream, creates the backing path with the seed
// value if it does not already exist, and performs one synchronous refresh
// so the cache is populated before Start returns.
//
// Start can only succeed once; a second call, or a call after Close,
// returns a *LifecycleError. If the store fails during Start, the error is
// returned and the caller should Close to release the relay subscription.
func (sv *SharedValue) Start(ctx context.Context) error {
	if !sv.state.CompareAndSwap(int32(StateLatent), int32(StateStarted)) {
		return lifecycleErr("start", sv.State())
	}

	states, stop := sv.store.ConnectionStates()
	sv.mu.Lock()
	sv.stopRelay = stop
	sv.mu.Unlock()
	go sv.relay(states)

	if err := sv.store.Create(ctx, sv.path, sv.seed); err != nil && !errors.Is(err, ErrNodeExists) {
		return fmt.Errorf("unison: create %s: %w", sv.path, err)
	}

	if err := sv.readValue(ctx); err != nil {
		return err
	}

	capitan.Emit(ctx, SharedValueStarted,
		KeyPath.Field(sv.path),
		KeyVersion.Field(int(sv.Version())),
	)
	return nil
}

// Close tears the SharedValue down: the connection-state relay is
// unsubscribed and the listener registry is cleared. Close is idempotent;
// repeated calls repeat the teardown with no error and no duplicate
// effects. An in-flight write is not aborted, and a transition already in
// flight on the relay when Close is called may still reach listeners.
func (sv *SharedValue) Close() error {
	sv.state.Store(int32(StateClosed))

	sv.mu.Lock()
	stop := sv.stopRelay
	sv.stopRelay = nil
	sv.mu.Unlock()
	if stop != nil {
		stop()
	}

	sv.listeners.clear()

	capitan.Emit(context.Background(), SharedValueClosed,
		KeyPath.Field(sv.path),
		KeyState.Field(sv.State().String()),
	)
	return nil
}

// SetValue overwrites the shared value irrespective of its current version.
// On success the local version advances by one without a confirmatory
// re-read; if other writers raced ahead, the cache converges on the next
// watch firing.
func (sv *SharedValue) SetValue(ctx context.Context, newValue []byte) error {
	if st := sv.State(); st != StateStarted {
		return lifecycleErr("set value", st)
	}

	if err := sv.store.Write(ctx, sv.path, newValue); err != nil {
		return fmt.Errorf("unison: write %s: %w", sv.path, err)
	}

	sv.advance(newValue)
	capitan.Emit(ctx, ValueWritten,
		KeyPath.Field(sv.path),
		KeyVersion.Field(int(sv.Version())),
	)
	return nil
}

// TrySetValue overwrites the shared value only if it has not changed since
// this client last observed it. Exactly one conditional write is attempted.
// On a version conflict the authoritative value is pulled into the cache
// and TrySetValue returns false; call Value to observe the winner. Any
// other store failure is returned unmodified apart from path context.
func (sv *SharedValue) TrySetValue(ctx context.Context, newValue []byte) (bool, error) {
	if st := sv.State(); st != StateStarted {
		return false, lifecycleErr("try set value", st)
	}

	version := sv.current.Load().stat.Version
	err := sv.store.WriteIfVersion(ctx, sv.path, newValue, version)
	if err == nil {
		sv.advance(newValue)
		capitan.Emit(ctx, ValueWritten,
			KeyPath.Field(sv.path),
			KeyVersion.Field(int(sv.Version())),
		)
		return true, nil
	}
	if !errors.Is(err, ErrVersionConflict) {
		return false, fmt.Errorf("unison: conditional write %s: %w", sv.path, err)
	}

	capitan.Emit(ctx, ValueWriteConflicted,
		KeyPath.Field(sv.path),
		KeyVersion.Field(int(version)),
	)
	if err := sv.readValue(ctx); err != nil {
		return false, err
	}
	return false, nil
}

// advance publishes a locally written value, bumping the version by one.
// It deliberately runs outside refreshMu so a concurrent read or refresh is
// never blocked behind a network round trip; the store stays authoritative
// and a later refresh converges the cache if this races a watch delivery.
func (sv *SharedValue) advance(newValue []byte) {
	prev := sv.current.Load()
	sv.current.Store(&cached{
		value: copyBytes(newValue),
		stat: Stat{
			Version:  prev.stat.Version + 1,
			Modified: prev.stat.Modified,
		},
	})
}

// readValue is the only writer of the cache on the refresh path. It reads
// the store's current value, arms a fresh one-shot watch, and replaces the
// cache as a unit.
func (sv *SharedValue) readValue(ctx context.Context) error {
	sv.refreshMu.Lock()
	defer sv.refreshMu.Unlock()

	data, stat, watch, err := sv.store.Read(ctx, sv.path)
	if err != nil {
		return fmt.Errorf("unison: read %s: %w", sv.path, err)
	}

	sv.current.Store(&cached{value: copyBytes(data), stat: stat})
	gen := sv.watchGen.Add(1)
	go sv.awaitWatch(watch, gen)

	capitan.Emit(ctx, ValueRefreshed,
		KeyPath.Field(sv.path),
		KeyVersion.Field(int(stat.Version)),
	)
	return nil
}

// awaitWatch blocks until the one-shot watch fires, then re-runs the
// refresher and notifies listeners. Firings from a superseded watch, or
// firings that arrive when the value is not started, are dropped: no
// re-arm, no notification.
func (sv *SharedValue) awaitWatch(watch <-chan struct{}, gen int64) {
	<-watch

	if sv.watchGen.Load() != gen {
		return
	}
	if sv.State() != StateStarted {
		return
	}

	ctx := context.Background()
	if err := sv.readValue(ctx); err != nil {
		sv.log.WithError(err).Error("refresh after watch fired failed")
		return
	}
	sv.notifyValueChanged(ctx)
}

// notifyValueChanged delivers the current value to every listener in
// registration order. Each listener receives its own copy. Faults are
// isolated: an error or panic from one listener is logged and delivery
// continues with the next.
func (sv *SharedValue) notifyValueChanged(ctx context.Context) {
	value := sv.current.Load().value
	for _, l := range sv.listeners.snapshot() {
		sv.deliverValue(ctx, l, copyBytes(value))
	}
}

func (sv *SharedValue) deliverValue(ctx context.Context, l Listener, value []byte) {
	defer func() {
		if r := recover(); r != nil {
			sv.log.WithField("panic", r).Error("value listener panicked")
			capitan.Emit(ctx, ListenerFaulted,
				KeyPath.Field(sv.path),
				KeyError.Field(fmt.Sprint(r)),
			)
		}
	}()

	if err := l.ValueChanged(sv, value); err != nil {
		sv.log.WithError(err).Error("value listener failed")
		capitan.Emit(ctx, ListenerFaulted,
			KeyPath.Field(sv.path),
			KeyError.Field(err.Error()),
		)
	}
}

// relay forwards connection-state transitions to listeners for as long as
// the subscription channel stays open, regardless of lifecycle state: a
// transition already in flight when Close runs is still delivered. This
// dispatch path has no fault isolation — the first listener error aborts
// delivery to the listeners after it.
func (sv *SharedValue) relay(states <-chan ConnState) {
	for state := range states {
		subs := sv.listeners.snapshot()
		capitan.Emit(context.Background(), ConnectionStateRelayed,
			KeyPath.Field(sv.path),
			KeyConnState.Field(state.String()),
			KeyListeners.Field(len(subs)),
		)
		for _, l := range subs {
			if err := l.ConnectionStateChanged(sv, state); err != nil {
				break
			}
		}
	}
}

// copyBytes returns a fresh copy of b. Every byte slice crossing the public
// API goes through it, so no caller can mutate internal state by holding
// onto a buffer.
func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
