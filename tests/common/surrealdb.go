// Package common provides shared test infrastructure
package common

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// EnvSurrealAddress points integration tests at an already running SurrealDB
// instead of starting a container.
const EnvSurrealAddress = "STACKER_TEST_SURREALDB_ADDRESS"

var (
	surrealOnce     sync.Once
	surrealInstance *SurrealDB
	surrealError    error
)

// SurrealDB is the database used by integration tests: either a
// testcontainers instance or an external server.
type SurrealDB struct {
	container testcontainers.Container
	address   string
}

// StartSurrealDB returns the shared SurrealDB for the test run, starting a
// container on first use. Tests are skipped in -short mode.
func StartSurrealDB(t *testing.T) *SurrealDB {
	t.Helper()

	if testing.Short() {
		t.Skip("SurrealDB integration test skipped in -short mode")
	}

	surrealOnce.Do(func() {
		if addr := os.Getenv(EnvSurrealAddress); addr != "" {
			surrealInstance = &SurrealDB{address: addr}
			return
		}
		surrealInstance, surrealError = startContainer(context.Background())
	})

	if surrealError != nil {
		t.Fatalf("SurrealDB unavailable: %v", surrealError)
	}
	return surrealInstance
}

func startContainer(ctx context.Context) (*SurrealDB, error) {
	req := testcontainers.ContainerRequest{
		Image:        "surrealdb/surrealdb:v2.3.7",
		ExposedPorts: []string{"8000/tcp"},
		Cmd:          []string{"start", "--user", "root", "--pass", "root", "memory"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("8000/tcp"),
			wait.ForLog("Started web server"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "8000/tcp", "ws")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("resolve endpoint: %w", err)
	}

	return &SurrealDB{container: container, address: endpoint + "/rpc"}, nil
}

// Address returns the WebSocket RPC address.
func (s *SurrealDB) Address() string {
	return s.address
}

// Cleanup terminates the container, if one was started. Call from TestMain.
func (s *SurrealDB) Cleanup() {
	if s != nil && s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}
