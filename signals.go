package unison

import "github.com/zoobzio/capitan"

// SharedValue lifecycle signals.
var (
	// SharedValueStarted is emitted when Start completes successfully.
	SharedValueStarted = capitan.NewSignal(
		"unison.shared.started",
		"Shared value started",
	)

	// SharedValueClosed is emitted when Close tears the shared value down.
	// It fires once per Close call, including repeated calls.
	SharedValueClosed = capitan.NewSignal(
		"unison.shared.closed",
		"Shared value closed",
	)
)

// Value synchronization signals.
var (
	// ValueRefreshed is emitted when the refresher replaces the cache with
	// the store's current value.
	ValueRefreshed = capitan.NewSignal(
		"unison.value.refreshed",
		"Cache refreshed from backing store",
	)

	// ValueWritten is emitted when an unconditional write succeeds.
	ValueWritten = capitan.NewSignal(
		"unison.value.written",
		"Unconditional write applied",
	)

	// ValueWriteConflicted is emitted when an optimistic write loses the
	// version race and the cache is refreshed with the winning value.
	ValueWriteConflicted = capitan.NewSignal(
		"unison.value.write.conflicted",
		"Optimistic write lost the version race",
	)
)

// Listener dispatch signals.
var (
	// ListenerFaulted is emitted when a value-change listener returns an
	// error or panics. Delivery continues to the remaining listeners.
	ListenerFaulted = capitan.NewSignal(
		"unison.listener.faulted",
		"Value-change listener failed",
	)

	// ConnectionStateRelayed is emitted when a connection-state transition
	// is fanned out to listeners.
	ConnectionStateRelayed = capitan.NewSignal(
		"unison.connstate.relayed",
		"Connection state relayed to listeners",
	)
)
