// Package memcached implements the memcache storage driver on top of
// github.com/bradfitz/gomemcache, adding consistent hashing and removal of
// failed servers.
//
// Importing the package registers the driver under the name "memcached".
package memcached

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/memcache-storage/pkg/memcache/driver"
)

// Name is the registry name of this driver.
const Name = "memcached"

// maxRelativeExpiration is the longest expiration memcached accepts as a
// relative number of seconds. Longer ones must be sent as Unix timestamps.
const maxRelativeExpiration = 30 * 24 * time.Hour

var serverEjections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "memcache_server_ejections_total",
		Help: "Total number of servers removed from the distribution after repeated failures",
	},
	[]string{"server"},
)

//nolint:gochecknoinits // We use init to register the driver.
func init() {
	driver.Register(Name, driver.OpenerFunc(func() (driver.Driver, error) {
		return New(), nil
	}))
}

// Driver is a gomemcache client whose server selection is owned by a
// consistent hash ring.
type Driver struct {
	ring   *ring
	client *memcache.Client
}

var _ driver.Driver = (*Driver)(nil)

// New creates a driver with no servers and the default options applied.
func New() *Driver {
	r := newRing()
	client := memcache.NewFromSelector(r)
	client.Timeout = driver.DefaultOptions().ConnectTimeout
	return &Driver{ring: r, client: client}
}

// SetOptions implements driver.Driver.
func (d *Driver) SetOptions(opts driver.Options) error {
	if opts.ConnectTimeout > 0 {
		d.client.Timeout = opts.ConnectTimeout
	}
	d.ring.configure(opts)
	return nil
}

// AddServers implements driver.Driver.
func (d *Driver) AddServers(servers []driver.Server) error {
	if len(servers) == 0 {
		return &driver.OpError{Op: "add_servers", Err: driver.ErrNoServers}
	}
	if err := d.ring.add(servers); err != nil {
		return &driver.OpError{Op: "add_servers", Err: err}
	}
	return nil
}

// ServerList implements driver.Driver.
func (d *Driver) ServerList() []driver.Server {
	return d.ring.servers()
}

// Get implements driver.Driver.
func (d *Driver) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &driver.OpError{Op: "get", Key: key, Err: err}
	}

	addr, _ := d.ring.PickServer(key)
	item, err := d.client.Get(key)
	d.observe(addr, err)
	if err != nil {
		return nil, d.wrap("get", key, addr, err)
	}
	return item.Value, nil
}

// Set implements driver.Driver.
func (d *Driver) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := ctx.Err(); err != nil {
		return &driver.OpError{Op: "set", Key: key, Err: err}
	}

	addr, _ := d.ring.PickServer(key)
	err := d.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: expirationSeconds(expiration, time.Now()),
	})
	d.observe(addr, err)
	if err != nil {
		return d.wrap("set", key, addr, err)
	}
	return nil
}

// Delete implements driver.Driver.
func (d *Driver) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return &driver.OpError{Op: "delete", Key: key, Err: err}
	}

	addr, _ := d.ring.PickServer(key)
	err := d.client.Delete(key)
	d.observe(addr, err)
	if err != nil {
		return d.wrap("delete", key, addr, err)
	}
	return nil
}

// Close implements driver.Driver. It removes every server so the handle
// stops dialing; operations afterwards fail with driver.ErrNoServers.
func (d *Driver) Close() error {
	d.ring.reset()
	return nil
}

// observe feeds the outcome of an operation against addr into the ring's
// failure accounting.
func (d *Driver) observe(addr net.Addr, err error) {
	if !isServerFailure(err) {
		d.ring.recordSuccess(addr)
		return
	}
	if server, ejected := d.ring.recordFailure(addr); ejected {
		serverEjections.WithLabelValues(server.Addr()).Inc()
		log.Warn().
			Str("component", "memcached-driver").
			Str("server", server.Addr()).
			Err(err).
			Msg("Removed failed server from distribution")
	}
}

func (d *Driver) wrap(op, key string, addr net.Addr, err error) error {
	switch {
	case errors.Is(err, memcache.ErrCacheMiss):
		err = driver.ErrNotFound
	case errors.Is(err, memcache.ErrNoServers):
		err = driver.ErrNoServers
	}
	opErr := &driver.OpError{Op: op, Key: key, Err: err}
	if addr != nil {
		opErr.Server = addr.String()
	}
	return opErr
}

// isServerFailure reports whether err means the server could not be
// reached or dropped the connection, as opposed to a protocol-level answer
// such as a miss.
func isServerFailure(err error) bool {
	if err == nil {
		return false
	}
	var timeoutErr *memcache.ConnectTimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// expirationSeconds converts an expiration into memcached's wire form:
// relative seconds up to 30 days, an absolute Unix timestamp beyond.
// Timestamps past the 32-bit range are clamped; a wrapped negative value
// would make memcached expire the item immediately.
func expirationSeconds(expiration time.Duration, now time.Time) int32 {
	if expiration <= 0 {
		return 0
	}
	if expiration > maxRelativeExpiration {
		return int32(min(now.Add(expiration).Unix(), math.MaxInt32))
	}
	secs := int32((expiration + time.Second - 1) / time.Second)
	return max(secs, 1)
}
