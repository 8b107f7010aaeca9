// Package redisring implements the memcache storage driver on top of a
// go-redis Ring, for deployments whose cache cluster is a set of Redis
// nodes instead of memcached.
//
// Importing the package registers the driver under the name "redis".
//
// go-redis shards keys with rendezvous hashing and takes shards that fail
// their heartbeats out of the ring, which covers the consistent
// distribution and failed-server removal policies. RemoveFailedServers and
// ServerFailureLimit are therefore fixed by go-redis and not configurable.
package redisring

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/memcache-storage/pkg/memcache/driver"
)

// Name is the registry name of this driver.
const Name = "redis"

// heartbeatFrequency is how often go-redis pings shards to detect failures.
const heartbeatFrequency = 500 * time.Millisecond

//nolint:gochecknoinits // We use init to register the driver.
func init() {
	driver.Register(Name, driver.OpenerFunc(func() (driver.Driver, error) {
		return New(), nil
	}))
}

// Driver wraps a redis.Ring. The ring is created lazily by AddServers so
// the options set before it are honored.
type Driver struct {
	mu      sync.RWMutex
	opts    driver.Options
	ring    *redis.Ring
	servers []driver.Server
}

var _ driver.Driver = (*Driver)(nil)

// New creates a driver with no servers and the default options applied.
func New() *Driver {
	return &Driver{opts: driver.DefaultOptions()}
}

// SetOptions implements driver.Driver.
func (d *Driver) SetOptions(opts driver.Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts = opts
	return nil
}

// AddServers implements driver.Driver.
func (d *Driver) AddServers(servers []driver.Server) error {
	if len(servers) == 0 {
		return &driver.OpError{Op: "add_servers", Err: driver.ErrNoServers}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range servers {
		if !slices.Contains(d.servers, s) {
			d.servers = append(d.servers, s)
		}
	}

	addrs := make(map[string]string, len(d.servers))
	for _, s := range d.servers {
		addrs[s.Addr()] = s.Addr()
	}

	if d.ring == nil {
		d.ring = redis.NewRing(d.ringOptions(addrs))
		return nil
	}
	d.ring.SetAddrs(addrs)
	return nil
}

func (d *Driver) ringOptions(addrs map[string]string) *redis.RingOptions {
	opts := &redis.RingOptions{
		Addrs:              addrs,
		HeartbeatFrequency: heartbeatFrequency,
	}
	if d.opts.ConnectTimeout > 0 {
		opts.DialTimeout = d.opts.ConnectTimeout
	}
	if d.opts.Distribution == driver.DistributionModula {
		opts.NewConsistentHash = newModulaHash
	}
	return opts
}

// ServerList implements driver.Driver.
func (d *Driver) ServerList() []driver.Server {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.servers)
}

func (d *Driver) client() (*redis.Ring, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ring == nil {
		return nil, driver.ErrNoServers
	}
	return d.ring, nil
}

// Get implements driver.Driver.
func (d *Driver) Get(ctx context.Context, key string) ([]byte, error) {
	ring, err := d.client()
	if err != nil {
		return nil, &driver.OpError{Op: "get", Key: key, Err: err}
	}

	value, err := ring.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = driver.ErrNotFound
		}
		return nil, &driver.OpError{Op: "get", Key: key, Err: err}
	}
	return value, nil
}

// Set implements driver.Driver.
func (d *Driver) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	ring, err := d.client()
	if err != nil {
		return &driver.OpError{Op: "set", Key: key, Err: err}
	}

	if expiration < 0 {
		expiration = 0
	}
	if err := ring.Set(ctx, key, value, expiration).Err(); err != nil {
		return &driver.OpError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete implements driver.Driver.
func (d *Driver) Delete(ctx context.Context, key string) error {
	ring, err := d.client()
	if err != nil {
		return &driver.OpError{Op: "delete", Key: key, Err: err}
	}

	n, err := ring.Del(ctx, key).Result()
	if err != nil {
		return &driver.OpError{Op: "delete", Key: key, Err: err}
	}
	if n == 0 {
		return &driver.OpError{Op: "delete", Key: key, Err: driver.ErrNotFound}
	}
	return nil
}

// Close implements driver.Driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ring == nil {
		return nil
	}
	err := d.ring.Close()
	d.ring = nil
	d.servers = nil
	return err
}

// modulaHash assigns keys to shards modulo the shard count.
type modulaHash struct {
	shards []string
}

func newModulaHash(shards []string) redis.ConsistentHash {
	sorted := slices.Clone(shards)
	slices.Sort(sorted)
	return &modulaHash{shards: sorted}
}

// Get implements redis.ConsistentHash.
func (h *modulaHash) Get(key string) string {
	if len(h.shards) == 0 {
		return ""
	}
	return h.shards[xxhash.Sum64String(key)%uint64(len(h.shards))]
}
