package unison

import "sync"

// Listener receives change notifications from a SharedValue.
//
// ValueChanged is called after the refresher observes a remote change;
// newValue is a fresh copy the listener may retain. An error return (or a
// panic) is logged and does not prevent delivery to listeners registered
// after this one.
//
// ConnectionStateChanged is called for every transition relayed from the
// backing store. Unlike ValueChanged it is not fault-isolated: the first
// error aborts delivery to the remaining listeners for that transition.
type Listener interface {
	ValueChanged(sv *SharedValue, newValue []byte) error
	ConnectionStateChanged(sv *SharedValue, state ConnState) error
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil
// fields are treated as no-ops, so a caller interested only in value
// changes can leave OnConnectionState unset.
type ListenerFuncs struct {
	OnValue           func(sv *SharedValue, newValue []byte) error
	OnConnectionState func(sv *SharedValue, state ConnState) error
}

// ValueChanged implements Listener.
func (l *ListenerFuncs) ValueChanged(sv *SharedValue, newValue []byte) error {
	if l.OnValue == nil {
		return nil
	}
	return l.OnValue(sv, newValue)
}

// ConnectionStateChanged implements Listener.
func (l *ListenerFuncs) ConnectionStateChanged(sv *SharedValue, state ConnState) error {
	if l.OnConnectionState == nil {
		return nil
	}
	return l.OnConnectionState(sv, state)
}

// listeners is an ordered subscriber set. Registration order defines
// dispatch order. A listener registered twice dispatches once.
type listeners struct {
	mu      sync.Mutex
	entries []Listener
}

func (l *listeners) add(listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e == listener {
			return
		}
	}
	l.entries = append(l.entries, listener)
}

func (l *listeners) remove(listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e == listener {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *listeners) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// snapshot returns the current subscribers in registration order. Dispatch
// iterates the snapshot so a listener that unsubscribes mid-delivery does
// not shift its neighbors.
func (l *listeners) snapshot() []Listener {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Listener, len(l.entries))
	copy(out, l.entries)
	return out
}
