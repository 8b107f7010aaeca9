package driver

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

type registry struct {
	mu      sync.RWMutex
	openers map[string]Opener

	// shared holds handles opened with a persistent id, keyed by
	// driver name and id.
	shared map[sharedKey]Driver
}

type sharedKey struct {
	driver string
	id     string
}

func newRegistry() *registry {
	return &registry{
		openers: make(map[string]Opener),
		shared:  make(map[sharedKey]Driver),
	}
}

func (r *registry) register(name string, opener Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if opener == nil {
		panic("memcache: Register opener is nil")
	}
	if _, dup := r.openers[name]; dup {
		panic("memcache: Register called twice for driver " + name)
	}
	r.openers[name] = opener
}

func (r *registry) lookup(name string) (Opener, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	opener, ok := r.openers[name]
	return opener, ok
}

func (r *registry) open(name, persistentID string) (Driver, error) {
	opener, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	if persistentID == "" {
		return opener.Open()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := sharedKey{driver: name, id: persistentID}
	if d, ok := r.shared[key]; ok {
		return d, nil
	}
	d, err := opener.Open()
	if err != nil {
		return nil, err
	}
	r.shared[key] = d
	return d, nil
}

func (r *registry) drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.openers))
}

func (r *registry) release(name, persistentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shared, sharedKey{driver: name, id: persistentID})
}

var defaultRegistry = newRegistry()

// Register makes a driver available under the provided name.
// If Register is called twice with the same name or if opener is nil, it panics.
func Register(name string, opener Opener) {
	defaultRegistry.register(name, opener)
}

// Available reports whether a driver was registered under name.
func Available(name string) bool {
	_, ok := defaultRegistry.lookup(name)
	return ok
}

// Drivers returns a sorted list of the names of the registered drivers.
func Drivers() []string {
	return defaultRegistry.drivers()
}

// Open returns a driver handle for the named driver. With a non-empty
// persistentID the handle is shared process-wide: later calls with the same
// name and id return the same handle, whose ServerList then reports the
// servers registered by the first owner.
func Open(name, persistentID string) (Driver, error) {
	return defaultRegistry.open(name, persistentID)
}

// Release forgets a shared handle so the next Open with the same id creates
// a fresh one. It does not close the handle.
func Release(name, persistentID string) {
	defaultRegistry.release(name, persistentID)
}
