package zookeeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zoobzio/unison"
)

func setupZookeeper(t *testing.T) (*zk.Conn, <-chan zk.Event) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "zookeeper:3.9",
			ExposedPorts: []string{"2181/tcp"},
			WaitingFor:   wait.ForListeningPort("2181/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start zookeeper container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get host: %v", err)
	}

	port, err := container.MappedPort(ctx, "2181/tcp")
	if err != nil {
		t.Fatalf("failed to get port: %v", err)
	}

	conn, session, err := zk.Connect([]string{host + ":" + port.Port()}, 5*time.Second)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})

	return conn, session
}

func TestStore_CreateReadWrite(t *testing.T) {
	conn, session := setupZookeeper(t)
	store := New(conn, session)
	ctx := context.Background()

	if err := store.Create(ctx, "/unison/value", []byte{0}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(ctx, "/unison/value", []byte{1}); !errors.Is(err, unison.ErrNodeExists) {
		t.Fatalf("expected ErrNodeExists, got %v", err)
	}

	data, stat, watch, err := store.Read(ctx, "/unison/value")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(data) != 1 || data[0] != 0 {
		t.Errorf("expected [0], got %v", data)
	}
	if stat.Version != 0 {
		t.Errorf("expected version 0, got %d", stat.Version)
	}

	if err := store.Write(ctx, "/unison/value", []byte{9}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	select {
	case <-watch:
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not fire on write")
	}

	// Version 0 is stale now; the conditional write must lose.
	err = store.WriteIfVersion(ctx, "/unison/value", []byte{7}, 0)
	if !errors.Is(err, unison.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := store.WriteIfVersion(ctx, "/unison/value", []byte{7}, 1); err != nil {
		t.Fatalf("WriteIfVersion() error = %v", err)
	}
}

func TestStore_ReadMissing(t *testing.T) {
	conn, session := setupZookeeper(t)
	store := New(conn, session)

	if _, _, _, err := store.Read(context.Background(), "/unison/missing"); !errors.Is(err, unison.ErrNoNode) {
		t.Fatalf("expected ErrNoNode, got %v", err)
	}
}

func TestSharedValue_EndToEnd(t *testing.T) {
	conn, session := setupZookeeper(t)
	store := New(conn, session)
	ctx := context.Background()

	sv := unison.New(store, "/unison/e2e", []byte{0})
	if err := sv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer sv.Close()

	values := make(chan []byte, 4)
	sv.Subscribe(&unison.ListenerFuncs{
		OnValue: func(_ *unison.SharedValue, v []byte) error {
			values <- v
			return nil
		},
	})

	// External actor writes directly to the node.
	if _, err := conn.Set("/unison/e2e", []byte{9}, -1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	select {
	case v := <-values:
		if len(v) != 1 || v[0] != 9 {
			t.Errorf("expected [9], got %v", v)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for value notification")
	}

	if got := sv.Value(); len(got) != 1 || got[0] != 9 {
		t.Errorf("expected cache [9], got %v", got)
	}
}
