package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/memcache-storage/pkg/memcache/driver"
)

var fakeNames atomic.Int64

// FakeDriver is an in-memory driver.Driver that records every call and can
// be told to fail.
type FakeDriver struct {
	mu      sync.Mutex
	items   map[string]fakeItem
	servers []driver.Server
	options *driver.Options
	now     func() time.Time

	// AddServersErr, when set, is returned by AddServers.
	AddServersErr error
	// OpErr, when set, is returned by Get, Set and Delete.
	OpErr error

	calls  atomic.Int64
	closes atomic.Int64
}

type fakeItem struct {
	value   []byte
	expires time.Time
}

var _ driver.Driver = (*FakeDriver)(nil)

// NewFakeDriver creates an empty fake driver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		items: make(map[string]fakeItem),
		now:   time.Now,
	}
}

// Opener returns an Opener that always hands out d.
func (d *FakeDriver) Opener() driver.Opener {
	return driver.OpenerFunc(func() (driver.Driver, error) { return d, nil })
}

// Register registers d in the global driver registry under a fresh name
// and returns that name.
func (d *FakeDriver) Register() string {
	name := fmt.Sprintf("fake-%d", fakeNames.Add(1))
	driver.Register(name, d.Opener())
	return name
}

// SetClock overrides the clock used for expirations.
func (d *FakeDriver) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// Calls returns the number of Get, Set and Delete calls made.
func (d *FakeDriver) Calls() int {
	return int(d.calls.Load())
}

// Options returns the options applied through SetOptions, or nil.
func (d *FakeDriver) Options() *driver.Options {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.options
}

// SetOptions implements driver.Driver.
func (d *FakeDriver) SetOptions(opts driver.Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.options = &opts
	return nil
}

// AddServers implements driver.Driver.
func (d *FakeDriver) AddServers(servers []driver.Server) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.AddServersErr != nil {
		return &driver.OpError{Op: "add_servers", Err: d.AddServersErr}
	}
	d.servers = append(d.servers, servers...)
	return nil
}

// ServerList implements driver.Driver.
func (d *FakeDriver) ServerList() []driver.Server {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.Server(nil), d.servers...)
}

// Get implements driver.Driver.
func (d *FakeDriver) Get(_ context.Context, key string) ([]byte, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpErr != nil {
		return nil, &driver.OpError{Op: "get", Key: key, Err: d.OpErr}
	}
	item, ok := d.items[key]
	if !ok || d.expired(item) {
		delete(d.items, key)
		return nil, &driver.OpError{Op: "get", Key: key, Err: driver.ErrNotFound}
	}
	return append([]byte{}, item.value...), nil
}

// Set implements driver.Driver.
func (d *FakeDriver) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpErr != nil {
		return &driver.OpError{Op: "set", Key: key, Err: d.OpErr}
	}
	item := fakeItem{value: append([]byte{}, value...)}
	if expiration > 0 {
		item.expires = d.now().Add(expiration)
	}
	d.items[key] = item
	return nil
}

// Delete implements driver.Driver.
func (d *FakeDriver) Delete(_ context.Context, key string) error {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpErr != nil {
		return &driver.OpError{Op: "delete", Key: key, Err: d.OpErr}
	}
	item, ok := d.items[key]
	delete(d.items, key)
	if !ok || d.expired(item) {
		return &driver.OpError{Op: "delete", Key: key, Err: driver.ErrNotFound}
	}
	return nil
}

// Close implements driver.Driver.
func (d *FakeDriver) Close() error {
	d.closes.Add(1)
	return nil
}

// Closes returns how often Close was called.
func (d *FakeDriver) Closes() int {
	return int(d.closes.Load())
}

func (d *FakeDriver) expired(item fakeItem) bool {
	return !item.expires.IsZero() && !d.now().Before(item.expires)
}
