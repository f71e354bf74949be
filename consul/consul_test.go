package consul

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zoobzio/unison"
)

func setupConsul(t *testing.T) *api.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "hashicorp/consul:1.15",
			ExposedPorts: []string{"8500/tcp"},
			WaitingFor:   wait.ForListeningPort("8500/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start consul container: %v", err)
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

	port, err := container.MappedPort(ctx, "8500/tcp")
	if err != nil {
		t.Fatalf("failed to get port: %v", err)
	}

	client, err := api.NewClient(&api.Config{
		Address: host + ":" + port.Port(),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return client
}

func TestStore_CreateReadWrite(t *testing.T) {
	store := New(setupConsul(t))
	ctx := context.Background()

	if err := store.Create(ctx, "unison/value", []byte{0}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(ctx, "unison/value", []byte{1}); !errors.Is(err, unison.ErrNodeExists) {
		t.Fatalf("expected ErrNodeExists, got %v", err)
	}

	data, stat, watch, err := store.Read(ctx, "unison/value")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(data) != 1 || data[0] != 0 {
		t.Errorf("expected [0], got %v", data)
	}

	if err := store.Write(ctx, "unison/value", []byte{9}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	select {
	case <-watch:
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not fire on write")
	}

	// The version observed at read is stale now.
	err = store.WriteIfVersion(ctx, "unison/value", []byte{7}, stat.Version)
	if !errors.Is(err, unison.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	data, stat, _, err = store.Read(ctx, "unison/value")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(data) != 1 || data[0] != 9 {
		t.Errorf("expected [9], got %v", data)
	}
	if err := store.WriteIfVersion(ctx, "unison/value", []byte{7}, stat.Version); err != nil {
		t.Fatalf("WriteIfVersion() error = %v", err)
	}
}

func TestStore_ReadMissing(t *testing.T) {
	store := New(setupConsul(t))
	if _, _, _, err := store.Read(context.Background(), "unison/missing"); !errors.Is(err, unison.ErrNoNode) {
		t.Fatalf("expected ErrNoNode, got %v", err)
	}
}
