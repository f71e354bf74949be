package unison

import "github.com/zoobzio/capitan"

// Field keys for SharedValue events.
var (
	// KeyPath is the backing-store path of the shared value.
	KeyPath = capitan.NewStringKey("path")

	// KeyState is the lifecycle state of the SharedValue.
	KeyState = capitan.NewStringKey("state")

	// KeyConnState is the relayed connection state.
	KeyConnState = capitan.NewStringKey("conn_state")

	// KeyVersion is the cache version after the operation.
	KeyVersion = capitan.NewIntKey("version")

	// KeyError is the error message when an operation or listener fails.
	KeyError = capitan.NewStringKey("error")

	// KeyListeners is the number of listeners a dispatch reached.
	KeyListeners = capitan.NewIntKey("listeners")
)
