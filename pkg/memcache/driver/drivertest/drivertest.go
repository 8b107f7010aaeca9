// Package drivertest provides an acceptance suite that every driver.Driver
// implementation is expected to pass.
package drivertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/memcache-storage/pkg/memcache/driver"
)

// Factory returns a connected driver with servers registered and an empty
// keyspace, plus a cleanup function.
type Factory func(t *testing.T) (driver.Driver, func())

// Run runs the standard suite against the drivers built by factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()
	t.Run("SetAndGet", func(t *testing.T) { testSetAndGet(t, factory) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory) })
	t.Run("EmptyValueIsHit", func(t *testing.T) { testEmptyValueIsHit(t, factory) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory) })
	t.Run("GetNonexistent", func(t *testing.T) { testGetNonexistent(t, factory) })
	t.Run("DeleteNonexistent", func(t *testing.T) { testDeleteNonexistent(t, factory) })
	t.Run("ServerList", func(t *testing.T) { testServerList(t, factory) })
}

func open(t *testing.T, factory Factory) driver.Driver {
	d, cleanup := factory(t)
	t.Cleanup(cleanup)
	return d
}

func testSetAndGet(t *testing.T, factory Factory) {
	d := open(t, factory)
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "drivertest:foo", []byte("bar"), 0))
	got, err := d.Get(ctx, "drivertest:foo")
	require.NoError(t, err)
	assert.Equal(t, []byte("bar"), got)
}

func testOverwrite(t *testing.T, factory Factory) {
	d := open(t, factory)
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "drivertest:foo", []byte("bar"), 0))
	require.NoError(t, d.Set(ctx, "drivertest:foo", []byte("baz"), 0))
	got, err := d.Get(ctx, "drivertest:foo")
	require.NoError(t, err)
	assert.Equal(t, []byte("baz"), got)
}

func testEmptyValueIsHit(t *testing.T, factory Factory) {
	d := open(t, factory)
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "drivertest:empty", []byte{}, 0))
	got, err := d.Get(ctx, "drivertest:empty")
	require.NoError(t, err, "an empty stored value must not read as a miss")
	assert.Empty(t, got)
}

func testDelete(t *testing.T, factory Factory) {
	d := open(t, factory)
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "drivertest:foo", []byte("bar"), 0))
	require.NoError(t, d.Delete(ctx, "drivertest:foo"))
	_, err := d.Get(ctx, "drivertest:foo")
	assert.ErrorIs(t, err, driver.ErrNotFound)

	// A second delete reports the key as absent.
	assert.ErrorIs(t, d.Delete(ctx, "drivertest:foo"), driver.ErrNotFound)
}

func testGetNonexistent(t *testing.T, factory Factory) {
	d := open(t, factory)

	_, err := d.Get(context.Background(), "drivertest:doesnotexist")
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func testDeleteNonexistent(t *testing.T, factory Factory) {
	d := open(t, factory)

	err := d.Delete(context.Background(), "drivertest:doesnotexist")
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func testServerList(t *testing.T, factory Factory) {
	d := open(t, factory)
	assert.NotEmpty(t, d.ServerList(), "factory drivers must have servers registered")
}
