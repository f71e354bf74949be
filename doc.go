/*
Package unison keeps a single mutable byte value in sync across processes
through an external, strongly consistent coordination store.

Every client holding a SharedValue on the same path sees the latest value:
remote changes arrive through one-shot watches and refresh a local cache,
local writes go straight to the store. Writes come in two flavors —
unconditional, and optimistic writes gated on the version this client last
observed.

# Basic Usage

Construct a SharedValue against a Store, start it, and read or write:

	conn, session, _ := zk.Connect([]string{"127.0.0.1:2181"}, 5*time.Second)
	store := zookeeper.New(conn, session)

	sv := unison.New(store, "/flags/rollout", []byte{0})
	if err := sv.Start(ctx); err != nil {
	    return err
	}
	defer sv.Close()

	current := sv.Value()

	if err := sv.SetValue(ctx, []byte{1}); err != nil {
	    return err
	}

Optimistic writes make exactly one attempt and report conflicts instead of
retrying:

	ok, err := sv.TrySetValue(ctx, next)
	if err != nil {
	    return err
	}
	if !ok {
	    winner := sv.Value() // the value that won the race
	}

# Listeners

Subscribers are notified of remote value changes and of connection-state
transitions, in registration order:

	sv.Subscribe(&unison.ListenerFuncs{
	    OnValue: func(sv *unison.SharedValue, v []byte) error {
	        apply(v)
	        return nil
	    },
	})

A failing value listener is logged and does not block delivery to the
listeners after it. Connection-state delivery is deliberately not isolated
the same way; see Listener.

# Backends

Store implementations live in subpackages: zookeeper, etcd, consul, and
nats. MemoryStore in this package serves tests and single-process use.

# Counters

SharedCount layers a shared int64 over the same protocol, stored as eight
big-endian bytes.

# Observability

Lifecycle, refresh, conflict, and listener-fault events are emitted as
capitan signals; hook them for metrics or tracing. Listener faults and
teardown diagnostics go to an instance-scoped logger injected with
WithLogger.
*/
package unison
