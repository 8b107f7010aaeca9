package testutil

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartMemcached starts a memcached container and returns its "host:port".
// The test is skipped when no container runtime is available.
func StartMemcached(t *testing.T) string {
	t.Helper()
	addr, _ := StartMemcachedNode(t)
	return addr
}

// StartMemcachedNode starts a memcached container and returns its
// "host:port" and a function that kills the node, for failover tests.
func StartMemcachedNode(t *testing.T) (string, func()) {
	t.Helper()
	return startContainer(t, testcontainers.ContainerRequest{
		Image:        "memcached:1.6-alpine",
		ExposedPorts: []string{"11211/tcp"},
		WaitingFor:   wait.ForListeningPort("11211/tcp"),
	})
}

// StartRedis starts a Redis container and returns its "host:port".
// The test is skipped when no container runtime is available.
func StartRedis(t *testing.T) string {
	t.Helper()
	addr, _ := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	})
	return addr
}

func startContainer(t *testing.T, req testcontainers.ContainerRequest) (string, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Failed to start %s container: %v", req.Image, err)
	}

	terminate := func() {
		container.Terminate(context.Background())
	}
	t.Cleanup(terminate)

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get %s endpoint: %v", req.Image, err)
	}

	return endpoint, terminate
}
