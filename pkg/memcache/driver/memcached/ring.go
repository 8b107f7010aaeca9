package memcached

import (
	"fmt"
	"net"
	"slices"
	"sort"
	"sync"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/cespare/xxhash/v2"

	"github.com/Sternrassler/memcache-storage/pkg/memcache/driver"
)

// pointsPerServer is the number of virtual nodes each server gets on the
// consistent ring (the ketama convention).
const pointsPerServer = 160

type member struct {
	server driver.Server
	addr   net.Addr
}

type point struct {
	hash   uint64
	member int
}

// ring is a gomemcache ServerSelector that distributes keys either modulo
// the server count or on a consistent hash ring, and ejects servers that
// keep failing.
type ring struct {
	mu sync.RWMutex

	distribution driver.Distribution
	removeFailed bool
	failureLimit int

	members  []member
	points   []point
	failures map[string]int
}

var _ memcache.ServerSelector = (*ring)(nil)

func newRing() *ring {
	opts := driver.DefaultOptions()
	return &ring{
		distribution: opts.Distribution,
		removeFailed: opts.RemoveFailedServers,
		failureLimit: opts.ServerFailureLimit,
		failures:     make(map[string]int),
	}
}

func (r *ring) configure(opts driver.Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.distribution = opts.Distribution
	r.removeFailed = opts.RemoveFailedServers
	r.failureLimit = max(opts.ServerFailureLimit, 1)
	r.rebuild()
}

// add resolves and registers servers as one batch: if any address fails to
// resolve, none are added. Servers already on the ring are skipped.
func (r *ring) add(servers []driver.Server) error {
	resolved := make([]member, 0, len(servers))
	for _, s := range servers {
		addr, err := net.ResolveTCPAddr("tcp", s.Addr())
		if err != nil {
			return fmt.Errorf("resolve %s: %w", s.Addr(), err)
		}
		resolved = append(resolved, member{server: s, addr: addr})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range resolved {
		if r.indexOf(m.addr.String()) >= 0 {
			continue
		}
		r.members = append(r.members, m)
	}
	r.rebuild()
	return nil
}

func (r *ring) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = nil
	r.points = r.points[:0]
	clear(r.failures)
}

func (r *ring) servers() []driver.Server {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]driver.Server, len(r.members))
	for i, m := range r.members {
		out[i] = m.server
	}
	return out
}

// PickServer implements memcache.ServerSelector.
func (r *ring) PickServer(key string) (net.Addr, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.members) == 0 {
		return nil, memcache.ErrNoServers
	}
	return r.members[r.pick(key)].addr, nil
}

// Each implements memcache.ServerSelector.
func (r *ring) Each(f func(net.Addr) error) error {
	r.mu.RLock()
	addrs := make([]net.Addr, len(r.members))
	for i, m := range r.members {
		addrs[i] = m.addr
	}
	r.mu.RUnlock()

	for _, a := range addrs {
		if err := f(a); err != nil {
			return err
		}
	}
	return nil
}

// recordSuccess clears the failure count of addr.
func (r *ring) recordSuccess(addr net.Addr) {
	if addr == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, addr.String())
}

// recordFailure counts a failure against addr and ejects it once the limit
// is reached. It returns the ejected server, if any.
func (r *ring) recordFailure(addr net.Addr) (driver.Server, bool) {
	if addr == nil {
		return driver.Server{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := addr.String()
	r.failures[key]++
	if !r.removeFailed || r.failures[key] < r.failureLimit {
		return driver.Server{}, false
	}

	i := r.indexOf(key)
	if i < 0 {
		return driver.Server{}, false
	}
	ejected := r.members[i].server
	r.members = slices.Delete(r.members, i, i+1)
	delete(r.failures, key)
	r.rebuild()
	return ejected, true
}

func (r *ring) indexOf(addr string) int {
	return slices.IndexFunc(r.members, func(m member) bool {
		return m.addr.String() == addr
	})
}

// pick returns the member index owning key. Callers hold r.mu and have
// checked that the ring is not empty.
func (r *ring) pick(key string) int {
	h := xxhash.Sum64String(key)
	if r.distribution != driver.DistributionConsistent {
		return int(h % uint64(len(r.members)))
	}

	i := sort.Search(len(r.points), func(i int) bool {
		return r.points[i].hash >= h
	})
	if i == len(r.points) {
		i = 0
	}
	return r.points[i].member
}

// rebuild recomputes the consistent ring. Callers hold r.mu.
func (r *ring) rebuild() {
	r.points = r.points[:0]
	if r.distribution != driver.DistributionConsistent {
		return
	}
	for idx, m := range r.members {
		for v := 0; v < pointsPerServer; v++ {
			h := xxhash.Sum64String(fmt.Sprintf("%s-%d", m.server.Addr(), v))
			r.points = append(r.points, point{hash: h, member: idx})
		}
	}
	slices.SortFunc(r.points, func(a, b point) int {
		switch {
		case a.hash < b.hash:
			return -1
		case a.hash > b.hash:
			return 1
		default:
			return a.member - b.member
		}
	})
}
