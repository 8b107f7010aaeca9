// Package driver defines the surface a cache cluster backend must implement
// to be used by the memcache storage, plus a registry that backends join
// from their init functions.
//
// A backend package is linked into a binary with a blank import:
//
//	import _ "github.com/Sternrassler/memcache-storage/pkg/memcache/driver/memcached"
//
// A driver name that was never registered is reported as unavailable, the
// same way a missing native client library would be.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is the reserved not-found signal. Get and Delete return an
	// error satisfying errors.Is(err, ErrNotFound) when the key is absent,
	// which keeps a miss distinct from a stored empty value.
	ErrNotFound = errors.New("memcache: key not found")

	// ErrUnknownDriver is returned by Open when no driver was registered
	// under the requested name.
	ErrUnknownDriver = errors.New("memcache: unknown driver")

	// ErrNoServers is returned when an operation is attempted before any
	// server was registered, or after every server was removed.
	ErrNoServers = errors.New("memcache: no servers available")
)

// Distribution selects how keys are assigned to servers.
type Distribution int

const (
	// DistributionModula hashes the key modulo the number of servers.
	// Any membership change remaps almost every key.
	DistributionModula Distribution = iota

	// DistributionConsistent places servers on a hash ring so that a
	// membership change only remaps the keys owned by the changed server.
	DistributionConsistent
)

// String returns the distribution name.
func (d Distribution) String() string {
	switch d {
	case DistributionModula:
		return "modula"
	case DistributionConsistent:
		return "consistent"
	default:
		return fmt.Sprintf("distribution(%d)", int(d))
	}
}

// Options are the policy knobs applied to a driver handle before servers
// are registered.
type Options struct {
	// ConnectTimeout bounds establishing a connection to a single server.
	ConnectTimeout time.Duration

	// Distribution is the key to server assignment strategy.
	Distribution Distribution

	// RemoveFailedServers ejects a server from the distribution once it
	// failed ServerFailureLimit consecutive times.
	RemoveFailedServers bool

	// ServerFailureLimit is the number of consecutive failures tolerated
	// before a server is ejected.
	ServerFailureLimit int
}

// DefaultOptions returns the options tuned for fluent fail-over: a 100ms
// connect timeout, consistent distribution and removal of failed servers.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:      100 * time.Millisecond,
		Distribution:        DistributionConsistent,
		RemoveFailedServers: true,
		ServerFailureLimit:  2,
	}
}

// Driver is a client handle to a pool of cache servers.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Driver interface {
	// SetOptions applies policy options. It is called before AddServers.
	SetOptions(opts Options) error

	// AddServers registers all servers in one batch. The returned error
	// carries the driver's diagnostic message.
	AddServers(servers []Server) error

	// ServerList returns the servers currently registered with the handle.
	// A non-empty list on a fresh handle means the handle is shared and was
	// already initialized.
	ServerList() []Server

	// Get returns the stored value or an error satisfying
	// errors.Is(err, ErrNotFound).
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero expiration means no expiration.
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete removes key, returning an error satisfying
	// errors.Is(err, ErrNotFound) if it was absent.
	Delete(ctx context.Context, key string) error

	// Close releases connections held by the handle.
	Close() error
}

// Opener creates fresh driver handles.
type Opener interface {
	Open() (Driver, error)
}

// OpenerFunc is an adapter to allow the use of ordinary functions as Openers.
type OpenerFunc func() (Driver, error)

// Open calls f.
func (f OpenerFunc) Open() (Driver, error) {
	return f()
}
